package account

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for account data operations
type Repository interface {
	// Create a new account
	CreateAccount(ctx context.Context, acc *Account) (*Account, error)

	// Get an account by ID
	GetAccount(ctx context.Context, ownerID, accountID string) (*Account, error)

	// Get all accounts for an owner
	GetAccounts(ctx context.Context, ownerID string) ([]*Account, error)

	// Persist a new balance for acc, conditioned on acc.Version. A concurrent
	// writer surfaces as a storage-conflict error and nothing is applied.
	ApplyBalance(ctx context.Context, acc *Account, balance decimal.Decimal) error

	// Delete an account together with the transactions it owns
	DeleteAccount(ctx context.Context, ownerID, accountID string) error
}
