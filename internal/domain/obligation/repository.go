package obligation

import (
	"context"
	"time"
)

// Repository defines the interface for obligation data operations
type Repository interface {
	// Create a new obligation
	CreateObligation(ctx context.Context, o *RecurringObligation) (*RecurringObligation, error)

	// Get an obligation by ID
	GetObligation(ctx context.Context, ownerID, obligationID string) (*RecurringObligation, error)

	// Get all obligations for an owner
	GetObligations(ctx context.Context, ownerID string) ([]*RecurringObligation, error)

	// Persist lastSettledAt (nil clears it), conditioned on expectedVersion.
	// A concurrent writer surfaces as a storage-conflict error and nothing is
	// applied.
	SetLastSettledAt(ctx context.Context, ownerID, obligationID string, ts *time.Time, expectedVersion int64) error

	// Delete an obligation
	DeleteObligation(ctx context.Context, ownerID, obligationID string) error
}
