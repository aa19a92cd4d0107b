package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/gaboluque/monthly-budget-sub000/internal/api/response"
	"github.com/gaboluque/monthly-budget-sub000/internal/common/clock"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/obligation"
)

// ObligationHandler handles recurring-obligation endpoints
type ObligationHandler struct {
	obligations *obligation.Service
	clock       clock.Clock
}

// NewObligationHandler creates a new obligation handler
func NewObligationHandler(obligations *obligation.Service, clk clock.Clock) *ObligationHandler {
	return &ObligationHandler{obligations: obligations, clock: clk}
}

// Create handles POST /obligations
func (h *ObligationHandler) Create(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	oid, ok := ownerID(ctx)
	if !ok {
		return response.AuthenticationError("owner scope missing", request.RequestContext.RequestID), nil
	}

	var req obligation.CreateObligationRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return response.BadRequest("Invalid request body", request.RequestContext.RequestID), nil
	}

	o, err := h.obligations.CreateObligation(ctx, oid, &req)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.Created(h.obligationView(o), request.RequestContext.RequestID), nil
}

// List handles GET /obligations
func (h *ObligationHandler) List(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	oid, ok := ownerID(ctx)
	if !ok {
		return response.AuthenticationError("owner scope missing", request.RequestContext.RequestID), nil
	}

	obligations, err := h.obligations.GetObligations(ctx, oid)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	views := make([]map[string]interface{}, 0, len(obligations))
	for _, o := range obligations {
		views = append(views, h.obligationView(o))
	}
	return response.OK(views, request.RequestContext.RequestID), nil
}

// Get handles GET /obligations/{obligationId}
func (h *ObligationHandler) Get(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	oid, ok := ownerID(ctx)
	if !ok {
		return response.AuthenticationError("owner scope missing", request.RequestContext.RequestID), nil
	}

	o, err := h.obligations.GetObligation(ctx, oid, request.PathParameters["obligationId"])
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.OK(h.obligationView(o), request.RequestContext.RequestID), nil
}

// Delete handles DELETE /obligations/{obligationId}
func (h *ObligationHandler) Delete(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	oid, ok := ownerID(ctx)
	if !ok {
		return response.AuthenticationError("owner scope missing", request.RequestContext.RequestID), nil
	}

	if err := h.obligations.DeleteObligation(ctx, oid, request.PathParameters["obligationId"]); err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.NoContent(), nil
}

// Settle handles POST /obligations/{obligationId}/settle
func (h *ObligationHandler) Settle(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	oid, ok := ownerID(ctx)
	if !ok {
		return response.AuthenticationError("owner scope missing", request.RequestContext.RequestID), nil
	}

	o, err := h.obligations.MarkAsSettled(ctx, oid, request.PathParameters["obligationId"])
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.OK(h.obligationView(o), request.RequestContext.RequestID), nil
}

// Pend handles POST /obligations/{obligationId}/pending
func (h *ObligationHandler) Pend(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	oid, ok := ownerID(ctx)
	if !ok {
		return response.AuthenticationError("owner scope missing", request.RequestContext.RequestID), nil
	}

	o, err := h.obligations.MarkAsPending(ctx, oid, request.PathParameters["obligationId"])
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response.OK(h.obligationView(o), request.RequestContext.RequestID), nil
}

// obligationView renders an obligation with its derived state. The state is
// computed at response time, never stored.
func (h *ObligationHandler) obligationView(o *obligation.RecurringObligation) map[string]interface{} {
	return map[string]interface{}{
		"state":         o.State(h.clock.Now()),
		"obligationId":  o.ObligationID,
		"ownerId":       o.OwnerID,
		"name":          o.Name,
		"kind":          o.Kind,
		"amount":        o.Amount,
		"frequency":     o.Frequency,
		"accountId":     o.AccountID,
		"lastSettledAt": o.LastSettledAt,
		"createdAt":     o.CreatedAt,
		"updatedAt":     o.UpdatedAt,
	}
}
