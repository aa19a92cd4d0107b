package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/gaboluque/monthly-budget-sub000/internal/api/handlers"
	"github.com/gaboluque/monthly-budget-sub000/internal/api/middleware"
	"github.com/gaboluque/monthly-budget-sub000/internal/common/clock"
	envconfig "github.com/gaboluque/monthly-budget-sub000/internal/common/config"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/account"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/obligation"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/transaction"
	dynamoClient "github.com/gaboluque/monthly-budget-sub000/internal/platform/dynamodb/client"
	dynamodbRepository "github.com/gaboluque/monthly-budget-sub000/internal/platform/dynamodb/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	config, err := envconfig.LoadFromEnv()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		logger.Error("Failed to initialize zap logger", "error", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	// Initialize DynamoDB client
	client, err := dynamoClient.NewDynamoDBClient(context.Background(), config.AWSRegion)
	if err != nil {
		logger.Error("Failed to initialize DynamoDB client", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	factory := dynamodbRepository.NewFactory(client, config.DynamoDBTableName, logger)

	// Initialize services
	clk := clock.System()
	accountService := account.NewService(factory.AccountRepository(), clk)
	ledger := transaction.NewLedger(factory.TransactionRepository(), accountService, clk)
	obligationService := obligation.NewService(factory.ObligationRepository(), ledger, clk)

	// Initialize handlers
	router := handlers.NewRouter(
		handlers.NewAccountHandler(accountService, ledger),
		handlers.NewTransactionHandler(ledger),
		handlers.NewObligationHandler(obligationService, clk),
	)

	// Chain middleware: recovery outermost, then logging, then auth
	handler := middleware.NewRecoveryMiddleware().Handle(
		middleware.NewLoggingMiddleware().Handle(
			middleware.NewAuthMiddleware(config, zapLogger).Handle(
				router.Route,
			),
		),
	)

	lambda.Start(func(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return handler(ctx, logger, request)
	})
}
