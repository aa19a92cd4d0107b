package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/gaboluque/monthly-budget-sub000/internal/api/response"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/transaction"
)

// TransactionHandler handles transaction endpoints
type TransactionHandler struct {
	ledger *transaction.Ledger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(ledger *transaction.Ledger) *TransactionHandler {
	return &TransactionHandler{ledger: ledger}
}

// Create handles POST /transactions
func (h *TransactionHandler) Create(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	oid, ok := ownerID(ctx)
	if !ok {
		return response.AuthenticationError("owner scope missing", request.RequestContext.RequestID), nil
	}

	var params transaction.CreateParams
	if err := json.Unmarshal([]byte(request.Body), &params); err != nil {
		return response.BadRequest("Invalid request body", request.RequestContext.RequestID), nil
	}

	tx, err := h.ledger.CreateTransaction(ctx, oid, &params)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.Created(tx, request.RequestContext.RequestID), nil
}

// Get handles GET /transactions/{transactionId}
func (h *TransactionHandler) Get(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	oid, ok := ownerID(ctx)
	if !ok {
		return response.AuthenticationError("owner scope missing", request.RequestContext.RequestID), nil
	}

	tx, err := h.ledger.GetTransaction(ctx, oid, request.PathParameters["transactionId"])
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.OK(tx, request.RequestContext.RequestID), nil
}

// Update handles PUT /transactions/{transactionId}
func (h *TransactionHandler) Update(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	oid, ok := ownerID(ctx)
	if !ok {
		return response.AuthenticationError("owner scope missing", request.RequestContext.RequestID), nil
	}

	var params transaction.UpdateParams
	if err := json.Unmarshal([]byte(request.Body), &params); err != nil {
		return response.BadRequest("Invalid request body", request.RequestContext.RequestID), nil
	}

	tx, err := h.ledger.UpdateTransaction(ctx, oid, request.PathParameters["transactionId"], &params)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.OK(tx, request.RequestContext.RequestID), nil
}

// Destroy handles DELETE /transactions/{transactionId}
func (h *TransactionHandler) Destroy(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	oid, ok := ownerID(ctx)
	if !ok {
		return response.AuthenticationError("owner scope missing", request.RequestContext.RequestID), nil
	}

	// Destroying an already-deleted transaction reports success with no body.
	if _, err := h.ledger.DestroyTransaction(ctx, oid, request.PathParameters["transactionId"]); err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.NoContent(), nil
}
