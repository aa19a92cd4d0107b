package repository

import (
	"log/slog"

	"github.com/gaboluque/monthly-budget-sub000/internal/domain/account"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/obligation"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/transaction"
	"github.com/gaboluque/monthly-budget-sub000/internal/platform/dynamodb/client"
)

// Factory creates repository instances
type Factory struct {
	client    client.Client
	tableName string
	logger    *slog.Logger
}

// NewFactory creates a new repository factory
func NewFactory(client client.Client, tableName string, logger *slog.Logger) *Factory {
	return &Factory{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// AccountRepository returns an implementation of the account.Repository interface
func (f *Factory) AccountRepository() account.Repository {
	return NewDynamoDBAccountRepository(f.client, f.tableName, f.logger)
}

// TransactionRepository returns an implementation of the transaction.Repository interface
func (f *Factory) TransactionRepository() transaction.Repository {
	return NewDynamoDBTransactionRepository(f.client, f.tableName, f.logger)
}

// ObligationRepository returns an implementation of the obligation.Repository interface
func (f *Factory) ObligationRepository() obligation.Repository {
	return NewDynamoDBObligationRepository(f.client, f.tableName, f.logger)
}
