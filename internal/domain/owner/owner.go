package owner

import "context"

// Context carries the owner scope for a request. Every ledger and obligation
// operation is implicitly scoped to one owner; cross-owner visibility does not
// exist. Token issuance and user management live in the external auth
// collaborator, so this is deliberately just an identifier.
type Context struct {
	OwnerID string
}

type contextKey string

const ownerContextKey contextKey = "owner"

// NewContext returns a copy of ctx with the owner context attached.
func NewContext(ctx context.Context, oc *Context) context.Context {
	return context.WithValue(ctx, ownerContextKey, oc)
}

// FromContext extracts the owner context from ctx.
func FromContext(ctx context.Context) (*Context, bool) {
	oc, ok := ctx.Value(ownerContextKey).(*Context)
	return oc, ok
}
