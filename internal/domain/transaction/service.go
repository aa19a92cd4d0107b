package transaction

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/gaboluque/monthly-budget-sub000/internal/common/clock"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/account"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/errors"
	"github.com/gaboluque/monthly-budget-sub000/pkg/validator"
)

// writeRetries bounds how often an atomic write is retried after losing a
// version check to a writer in another process. In-process races are already
// serialized by the account locks.
const writeRetries = 3

// Ledger applies and reverses balance-affecting entries. It is the only code
// allowed to mutate account balances: each create computes the signed effect
// of the transaction kind and persists row plus balance writes as one atomic
// unit, and each destroy applies the exact inverse the same way.
type Ledger struct {
	repo     Repository
	accounts *account.Service
	clock    clock.Clock
}

// NewLedger creates a new ledger
func NewLedger(repo Repository, accounts *account.Service, clk clock.Clock) *Ledger {
	return &Ledger{
		repo:     repo,
		accounts: accounts,
		clock:    clk,
	}
}

// CreateTransaction validates params, applies the balance effect(s) of the
// transaction kind and persists the row, all in one atomic unit. On failure
// nothing is persisted.
func (l *Ledger) CreateTransaction(ctx context.Context, ownerID string, params *CreateParams) (*Transaction, error) {
	if err := validateCreate(ownerID, params); err != nil {
		return nil, err
	}

	unlock := l.accounts.Lock(involvedAccountIDs(params)...)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < writeRetries; attempt++ {
		mutations, err := l.createMutations(ctx, ownerID, params)
		if err != nil {
			return nil, err
		}

		now := l.clock.Now()
		tx := &Transaction{
			TransactionID:      ulid.Make().String(),
			OwnerID:            ownerID,
			AccountID:          params.AccountID,
			RecipientAccountID: params.RecipientAccountID,
			Amount:             params.Amount,
			Kind:               params.Kind,
			Description:        params.Description,
			ExecutedAt:         params.ExecutedAt.UTC(),
			Settlement:         params.Settlement,
			CreatedAt:          now,
			UpdatedAt:          now,
		}

		if err := l.repo.CreateTransaction(ctx, tx, mutations); err != nil {
			if errors.IsStorageConflict(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return tx, nil
	}
	return nil, lastErr
}

// DestroyTransaction reverses the original balance effect and deletes the row
// as one atomic unit. If the reversal cannot be applied the row remains.
// Destroying an already-deleted transaction is a no-op success and returns a
// nil transaction.
func (l *Ledger) DestroyTransaction(ctx context.Context, ownerID, transactionID string) (*Transaction, error) {
	tx, err := l.repo.GetTransaction(ctx, ownerID, transactionID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	unlock := l.accounts.Lock(tx.AccountIDs()...)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < writeRetries; attempt++ {
		// Re-read inside the lock; a concurrent destroy may have won.
		tx, err = l.repo.GetTransaction(ctx, ownerID, transactionID)
		if err != nil {
			if errors.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}

		mutations, err := l.reverseMutations(ctx, tx)
		if err != nil {
			return nil, err
		}

		if err := l.repo.DeleteTransaction(ctx, ownerID, transactionID, mutations); err != nil {
			if errors.IsStorageConflict(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return tx, nil
	}
	return nil, lastErr
}

// UpdateTransaction updates descriptive fields of a transaction. Changing the
// amount, kind or account references in place would leave the already-applied
// balance effect orphaned, so those edits are rejected; callers destroy and
// recreate instead.
func (l *Ledger) UpdateTransaction(ctx context.Context, ownerID, transactionID string, params *UpdateParams) (*Transaction, error) {
	errs := validator.New()
	if params.Amount != nil {
		errs.Add("amount", "cannot be changed in place; destroy and recreate the transaction")
	}
	if params.Kind != nil {
		errs.Add("kind", "cannot be changed in place; destroy and recreate the transaction")
	}
	if params.AccountID != nil {
		errs.Add("accountId", "cannot be changed in place; destroy and recreate the transaction")
	}
	if params.RecipientID != nil {
		errs.Add("recipientAccountId", "cannot be changed in place; destroy and recreate the transaction")
	}
	if !errs.Empty() {
		return nil, errors.NewValidationError("invalid transaction update").WithDetails(errs.Details())
	}

	tx, err := l.repo.GetTransaction(ctx, ownerID, transactionID)
	if err != nil {
		return nil, err
	}

	if params.Description != nil {
		tx.Description = *params.Description
	}
	if params.ExecutedAt != nil {
		tx.ExecutedAt = params.ExecutedAt.UTC()
	}
	tx.UpdatedAt = l.clock.Now()

	return l.repo.UpdateTransaction(ctx, tx)
}

// GetTransaction retrieves a transaction by ID
func (l *Ledger) GetTransaction(ctx context.Context, ownerID, transactionID string) (*Transaction, error) {
	return l.repo.GetTransaction(ctx, ownerID, transactionID)
}

// GetTransactionsByAccount retrieves the transactions touching an account
func (l *Ledger) GetTransactionsByAccount(ctx context.Context, ownerID, accountID string) ([]*Transaction, error) {
	return l.repo.GetTransactionsByAccount(ctx, ownerID, accountID)
}

// FindSettlementTransaction finds the transaction settling the given
// obligation with executedAt inside [from, to).
func (l *Ledger) FindSettlementTransaction(ctx context.Context, ownerID string, settlement Settlement, from, to time.Time) (*Transaction, error) {
	return l.repo.FindSettlementTransaction(ctx, ownerID, settlement, from, to)
}

// effectSign maps a single-account transaction kind to the sign of its
// balance effect. Transfers are handled separately.
func effectSign(kind Kind) decimal.Decimal {
	switch kind {
	case Deposit, Income:
		return decimal.NewFromInt(1)
	case Withdrawal, Payment, Expense:
		return decimal.NewFromInt(-1)
	}
	return decimal.Zero
}

// createMutations resolves the involved accounts and computes the balance
// writes applying the transaction's effect.
func (l *Ledger) createMutations(ctx context.Context, ownerID string, params *CreateParams) ([]AccountMutation, error) {
	if params.Kind == Transfer {
		return l.transferMutations(ctx, ownerID, params, false)
	}

	acc, err := l.resolveAccount(ctx, ownerID, params.AccountID, "accountId")
	if err != nil {
		return nil, err
	}
	delta := params.Amount.Mul(effectSign(params.Kind))
	return []AccountMutation{{Account: acc, Balance: acc.Balance.Add(delta)}}, nil
}

// reverseMutations resolves the involved accounts and computes the balance
// writes applying the exact inverse of the transaction's original effect.
func (l *Ledger) reverseMutations(ctx context.Context, tx *Transaction) ([]AccountMutation, error) {
	if tx.Kind == Transfer {
		params := &CreateParams{
			AccountID:          tx.AccountID,
			RecipientAccountID: tx.RecipientAccountID,
			Amount:             tx.Amount,
			Kind:               Transfer,
		}
		return l.transferMutations(ctx, tx.OwnerID, params, true)
	}

	acc, err := l.reversalAccount(ctx, tx.OwnerID, tx.AccountID)
	if err != nil {
		return nil, err
	}
	delta := tx.Amount.Mul(effectSign(tx.Kind)).Neg()
	return []AccountMutation{{Account: acc, Balance: acc.Balance.Add(delta)}}, nil
}

// resolveAccount fetches an account for a create; a missing account is a
// caller mistake, so it surfaces as a field-level validation error.
func (l *Ledger) resolveAccount(ctx context.Context, ownerID, accountID, field string) (*account.Account, error) {
	acc, err := l.accounts.GetAccount(ctx, ownerID, accountID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewValidationError("invalid transaction").
				WithDetail(field, "account not found")
		}
		return nil, err
	}
	return acc, nil
}

// reversalAccount fetches an account for a destroy; a missing reversal target
// means the ledger can no longer undo the effect, which is an invariant
// violation, not a validation problem.
func (l *Ledger) reversalAccount(ctx context.Context, ownerID, accountID string) (*account.Account, error) {
	acc, err := l.accounts.GetAccount(ctx, ownerID, accountID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewInvariantViolationError("reversal target account no longer exists")
		}
		return nil, err
	}
	return acc, nil
}

func involvedAccountIDs(params *CreateParams) []string {
	if params.Kind == Transfer {
		return []string{params.AccountID, params.RecipientAccountID}
	}
	return []string{params.AccountID}
}

// validateCreate checks the create parameters and reports every broken field
// at once.
func validateCreate(ownerID string, params *CreateParams) error {
	errs := validator.New()
	errs.Required("ownerId", ownerID)
	errs.Required("accountId", params.AccountID)
	errs.PositiveAmount("amount", params.Amount)
	errs.OneOf("kind", string(params.Kind), KnownKinds...)
	if params.ExecutedAt.IsZero() {
		errs.Add("executedAt", "is required")
	}

	if params.Kind == Transfer {
		validateTransfer(errs, params)
	}

	if !params.Settlement.None() && params.Kind != Income && params.Kind != Expense {
		errs.Add("settlement", "only income and expense transactions settle an obligation")
	}

	if !errs.Empty() {
		return errors.NewValidationError("invalid transaction").WithDetails(errs.Details())
	}
	return nil
}
