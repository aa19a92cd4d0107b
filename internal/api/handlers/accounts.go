package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/gaboluque/monthly-budget-sub000/internal/api/response"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/account"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/owner"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/transaction"
)

// AccountHandler handles account endpoints
type AccountHandler struct {
	accounts *account.Service
	ledger   *transaction.Ledger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts *account.Service, ledger *transaction.Ledger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		ledger:   ledger,
	}
}

// ownerID extracts the owner scope the auth middleware attached.
func ownerID(ctx context.Context) (string, bool) {
	oc, ok := owner.FromContext(ctx)
	if !ok || oc.OwnerID == "" {
		return "", false
	}
	return oc.OwnerID, true
}

// Create handles POST /accounts
func (h *AccountHandler) Create(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	oid, ok := ownerID(ctx)
	if !ok {
		return response.AuthenticationError("owner scope missing", request.RequestContext.RequestID), nil
	}

	var req account.CreateAccountRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return response.BadRequest("Invalid request body", request.RequestContext.RequestID), nil
	}

	acc, err := h.accounts.CreateAccount(ctx, oid, &req)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.Created(acc, request.RequestContext.RequestID), nil
}

// List handles GET /accounts
func (h *AccountHandler) List(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	oid, ok := ownerID(ctx)
	if !ok {
		return response.AuthenticationError("owner scope missing", request.RequestContext.RequestID), nil
	}

	accounts, err := h.accounts.GetAccounts(ctx, oid)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.OK(accounts, request.RequestContext.RequestID), nil
}

// Get handles GET /accounts/{accountId}
func (h *AccountHandler) Get(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	oid, ok := ownerID(ctx)
	if !ok {
		return response.AuthenticationError("owner scope missing", request.RequestContext.RequestID), nil
	}

	acc, err := h.accounts.GetAccount(ctx, oid, request.PathParameters["accountId"])
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.OK(acc, request.RequestContext.RequestID), nil
}

// Delete handles DELETE /accounts/{accountId}
func (h *AccountHandler) Delete(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	oid, ok := ownerID(ctx)
	if !ok {
		return response.AuthenticationError("owner scope missing", request.RequestContext.RequestID), nil
	}

	if err := h.accounts.DeleteAccount(ctx, oid, request.PathParameters["accountId"]); err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.NoContent(), nil
}

// GetBalance handles GET /accounts/{accountId}/balance
func (h *AccountHandler) GetBalance(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	oid, ok := ownerID(ctx)
	if !ok {
		return response.AuthenticationError("owner scope missing", request.RequestContext.RequestID), nil
	}

	accountID := request.PathParameters["accountId"]
	balance, err := h.accounts.GetBalance(ctx, oid, accountID)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	body := map[string]interface{}{
		"accountId": accountID,
		"balance":   balance,
	}
	return response.OK(body, request.RequestContext.RequestID), nil
}

// ListTransactions handles GET /accounts/{accountId}/transactions
func (h *AccountHandler) ListTransactions(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	oid, ok := ownerID(ctx)
	if !ok {
		return response.AuthenticationError("owner scope missing", request.RequestContext.RequestID), nil
	}

	txs, err := h.ledger.GetTransactionsByAccount(ctx, oid, request.PathParameters["accountId"])
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.OK(txs, request.RequestContext.RequestID), nil
}
