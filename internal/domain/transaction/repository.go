package transaction

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gaboluque/monthly-budget-sub000/internal/domain/account"
)

// AccountMutation is one balance write belonging to a transaction's effect
// set. Account carries the state the ledger read (including the version the
// write is conditioned on); Balance is the value to persist.
type AccountMutation struct {
	Account *account.Account
	Balance decimal.Decimal
}

// Repository defines the interface for transaction data operations. The two
// mutating calls are atomic units: the transaction row and every balance
// mutation are applied together or not at all, and any lost version check
// surfaces as a storage-conflict error with nothing applied.
type Repository interface {
	// Persist a transaction together with its balance effects
	CreateTransaction(ctx context.Context, tx *Transaction, mutations []AccountMutation) error

	// Delete a transaction together with the balance writes reversing it.
	// Deleting a row that is already gone fails the whole unit.
	DeleteTransaction(ctx context.Context, ownerID, transactionID string, mutations []AccountMutation) error

	// Get a transaction by ID
	GetTransaction(ctx context.Context, ownerID, transactionID string) (*Transaction, error)

	// Get the transactions touching an account as source or recipient
	GetTransactionsByAccount(ctx context.Context, ownerID, accountID string) ([]*Transaction, error)

	// Find the transaction settling the given obligation with executedAt in
	// [from, to)
	FindSettlementTransaction(ctx context.Context, ownerID string, settlement Settlement, from, to time.Time) (*Transaction, error)

	// Update descriptive fields of an existing transaction
	UpdateTransaction(ctx context.Context, tx *Transaction) (*Transaction, error)
}
