package middleware

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/aws/aws-lambda-go/events"

	"github.com/gaboluque/monthly-budget-sub000/internal/api/response"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/errors"
)

// RecoveryMiddleware is a middleware for recovering from panics and turning
// handler errors into the error response envelope
type RecoveryMiddleware struct{}

// NewRecoveryMiddleware creates a new recovery middleware
func NewRecoveryMiddleware() RecoveryMiddleware {
	return RecoveryMiddleware{}
}

// Handle handles the recovery middleware
func (m RecoveryMiddleware) Handle(next APIGatewayHandler) APIGatewayHandler {
	return func(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("PANIC", "panic", r, "stack", string(debug.Stack()))
				resp = response.InternalError("An unexpected error occurred", nil, request.RequestContext.RequestID)
				retErr = nil
			}
		}()

		resp, err := next(ctx, logger, request)
		if err != nil {
			var appErr errors.AppError
			if e, ok := err.(errors.AppError); ok {
				appErr = e
			} else {
				appErr = errors.NewInternalError("An unexpected error occurred", err)
			}

			logger.Error("handler error", "code", appErr.Code, "error", appErr.Error())
			return response.Error(appErr, request.RequestContext.RequestID), nil
		}

		return resp, nil
	}
}
