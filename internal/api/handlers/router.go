package handlers

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/gaboluque/monthly-budget-sub000/internal/api/middleware"
	"github.com/gaboluque/monthly-budget-sub000/internal/api/response"
)

// Router dispatches API Gateway requests to the handler for their resource
type Router struct {
	accounts     *AccountHandler
	transactions *TransactionHandler
	obligations  *ObligationHandler
}

// NewRouter creates a new router
func NewRouter(accounts *AccountHandler, transactions *TransactionHandler, obligations *ObligationHandler) *Router {
	return &Router{
		accounts:     accounts,
		transactions: transactions,
		obligations:  obligations,
	}
}

// Route resolves the handler for a request by its gateway resource and method
func (r *Router) Route(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if request.HTTPMethod == "OPTIONS" {
		return response.NoContent(), nil
	}

	if handler := r.resolve(request.Resource, request.HTTPMethod); handler != nil {
		return handler(ctx, logger, request)
	}
	return response.NotFound("resource not found", request.RequestContext.RequestID), nil
}

func (r *Router) resolve(resource, method string) middleware.APIGatewayHandler {
	switch resource {
	case "/accounts":
		switch method {
		case "POST":
			return r.accounts.Create
		case "GET":
			return r.accounts.List
		}
	case "/accounts/{accountId}":
		switch method {
		case "GET":
			return r.accounts.Get
		case "DELETE":
			return r.accounts.Delete
		}
	case "/accounts/{accountId}/balance":
		if method == "GET" {
			return r.accounts.GetBalance
		}
	case "/accounts/{accountId}/transactions":
		if method == "GET" {
			return r.accounts.ListTransactions
		}
	case "/transactions":
		if method == "POST" {
			return r.transactions.Create
		}
	case "/transactions/{transactionId}":
		switch method {
		case "GET":
			return r.transactions.Get
		case "PUT":
			return r.transactions.Update
		case "DELETE":
			return r.transactions.Destroy
		}
	case "/obligations":
		switch method {
		case "POST":
			return r.obligations.Create
		case "GET":
			return r.obligations.List
		}
	case "/obligations/{obligationId}":
		switch method {
		case "GET":
			return r.obligations.Get
		case "DELETE":
			return r.obligations.Delete
		}
	case "/obligations/{obligationId}/settle":
		if method == "POST" {
			return r.obligations.Settle
		}
	case "/obligations/{obligationId}/pending":
		if method == "POST" {
			return r.obligations.Pend
		}
	}
	return nil
}
