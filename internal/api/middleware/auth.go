package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/gaboluque/monthly-budget-sub000/internal/api/response"
	"github.com/gaboluque/monthly-budget-sub000/internal/common/config"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/owner"
)

// AuthMiddleware resolves the owner scope from a bearer token. Token issuance
// and signature verification live in the external auth collaborator (the API
// Gateway authorizer); here the token is already trusted and only its subject
// claim is needed.
type AuthMiddleware struct {
	cfg *config.Config
	log *zap.Logger
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(cfg *config.Config, log *zap.Logger) AuthMiddleware {
	return AuthMiddleware{
		cfg: cfg,
		log: log,
	}
}

// Handle handles the auth middleware
func (m AuthMiddleware) Handle(next APIGatewayHandler) APIGatewayHandler {
	return func(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		// CORS preflight never carries credentials
		if request.HTTPMethod == "OPTIONS" {
			return next(ctx, logger, request)
		}

		authHeader := request.Headers["Authorization"]
		if authHeader == "" {
			authHeader = request.Headers["authorization"]
		}
		if authHeader == "" {
			return response.AuthenticationError("authorization header is required", request.RequestContext.RequestID), nil
		}

		token, err := extractBearerToken(authHeader)
		if err != nil {
			return response.AuthenticationError(err.Error(), request.RequestContext.RequestID), nil
		}

		ownerID, err := m.resolveOwnerID(token)
		if err != nil {
			m.log.Warn("token rejected", zap.Error(err))
			return response.AuthenticationError("invalid token", request.RequestContext.RequestID), nil
		}

		ctx = owner.NewContext(ctx, &owner.Context{OwnerID: ownerID})
		return next(ctx, logger, request)
	}
}

// resolveOwnerID extracts the subject claim from a gateway-verified token.
func (m AuthMiddleware) resolveOwnerID(token string) (string, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", err
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if subject == "" {
		return "", errors.New("token has no subject claim")
	}
	return subject, nil
}

// extractBearerToken extracts the token from a bearer authorization header
func extractBearerToken(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("authorization header must be in the format 'Bearer {token}'")
	}
	return parts[1], nil
}
