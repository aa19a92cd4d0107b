package obligation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gaboluque/monthly-budget-sub000/internal/common/clock"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/errors"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/transaction"
	"github.com/gaboluque/monthly-budget-sub000/pkg/validator"
)

// Ledger is the slice of the transaction ledger the state machine drives.
type Ledger interface {
	CreateTransaction(ctx context.Context, ownerID string, params *transaction.CreateParams) (*transaction.Transaction, error)
	DestroyTransaction(ctx context.Context, ownerID, transactionID string) (*transaction.Transaction, error)
	FindSettlementTransaction(ctx context.Context, ownerID string, settlement transaction.Settlement, from, to time.Time) (*transaction.Transaction, error)
}

// Service is the recurring-obligation state machine. MarkAsSettled and
// MarkAsPending are idempotent transitions between the derived Pending and
// SettledThisMonth states; each transition drives the ledger and the
// lastSettledAt timestamp together, never one without the other.
//
// When MarkAsPending cannot find the linked transaction it fails and leaves
// lastSettledAt untouched. The behavior used to differ between income sources
// and budget items (incomes cleared the timestamp anyway); both kinds now get
// the strict rule.
type Service struct {
	repo   Repository
	ledger Ledger
	clock  clock.Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new obligation service
func NewService(repo Repository, ledger Ledger, clk clock.Clock) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		clock:  clk,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockFor(obligationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.locks[obligationID]; !exists {
		s.locks[obligationID] = &sync.Mutex{}
	}
	return s.locks[obligationID]
}

// CreateObligation creates a new recurring obligation in the Pending state.
func (s *Service) CreateObligation(ctx context.Context, ownerID string, req *CreateObligationRequest) (*RecurringObligation, error) {
	errs := validator.New()
	errs.Required("ownerId", ownerID)
	errs.Required("name", req.Name)
	errs.Required("accountId", req.AccountID)
	errs.PositiveAmount("amount", req.Amount)
	errs.OneOf("kind", string(req.Kind), KnownKinds...)
	frequency := req.Frequency
	if frequency == "" {
		frequency = Monthly
	}
	errs.OneOf("frequency", string(frequency), KnownFrequencies...)
	if !errs.Empty() {
		return nil, errors.NewValidationError("invalid obligation").WithDetails(errs.Details())
	}

	now := s.clock.Now()
	o := &RecurringObligation{
		ObligationID: uuid.New().String(),
		OwnerID:      ownerID,
		Name:         req.Name,
		Kind:         req.Kind,
		Amount:       req.Amount,
		Frequency:    frequency,
		AccountID:    req.AccountID,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	return s.repo.CreateObligation(ctx, o)
}

// GetObligation retrieves an obligation by ID
func (s *Service) GetObligation(ctx context.Context, ownerID, obligationID string) (*RecurringObligation, error) {
	return s.repo.GetObligation(ctx, ownerID, obligationID)
}

// GetObligations retrieves every obligation of an owner
func (s *Service) GetObligations(ctx context.Context, ownerID string) ([]*RecurringObligation, error) {
	return s.repo.GetObligations(ctx, ownerID)
}

// DeleteObligation deletes an obligation. Transactions that settled it in
// past months stay in the ledger; their effects already happened.
func (s *Service) DeleteObligation(ctx context.Context, ownerID, obligationID string) error {
	m := s.lockFor(obligationID)
	m.Lock()
	defer m.Unlock()

	if _, err := s.repo.GetObligation(ctx, ownerID, obligationID); err != nil {
		return err
	}
	return s.repo.DeleteObligation(ctx, ownerID, obligationID)
}

// MarkAsSettled transitions the obligation to SettledThisMonth: it records
// lastSettledAt and creates the linked income/expense transaction through the
// ledger. Calling it on an already-settled obligation is a no-op success.
func (s *Service) MarkAsSettled(ctx context.Context, ownerID, obligationID string) (*RecurringObligation, error) {
	m := s.lockFor(obligationID)
	m.Lock()
	defer m.Unlock()

	o, err := s.repo.GetObligation(ctx, ownerID, obligationID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if o.State(now) == SettledThisMonth {
		return o, nil
	}

	tx, err := s.ledger.CreateTransaction(ctx, ownerID, s.settlementParams(o, now))
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetLastSettledAt(ctx, ownerID, obligationID, &now, o.Version); err != nil {
		// The timestamp must not outlive a failed write, and the transaction
		// must not outlive the timestamp. Undo the ledger entry and surface
		// the failure; a lost version check means another process settled
		// first.
		if _, undoErr := s.ledger.DestroyTransaction(ctx, ownerID, tx.TransactionID); undoErr != nil {
			return nil, errors.NewStorageError(
				fmt.Sprintf("settlement write failed and transaction %s could not be reversed", tx.TransactionID),
				undoErr,
			)
		}
		return nil, err
	}

	o.LastSettledAt = &now
	o.Version++
	o.UpdatedAt = now
	return o, nil
}

// MarkAsPending transitions the obligation back to Pending: it destroys the
// transaction that settled it this month (reversing the balance effect) and
// only then clears lastSettledAt. Calling it on a pending obligation is a
// no-op success; a settled obligation without a matching transaction is an
// invariant violation and the timestamp stays put.
func (s *Service) MarkAsPending(ctx context.Context, ownerID, obligationID string) (*RecurringObligation, error) {
	m := s.lockFor(obligationID)
	m.Lock()
	defer m.Unlock()

	o, err := s.repo.GetObligation(ctx, ownerID, obligationID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if o.State(now) == Pending {
		return o, nil
	}

	from, to := clock.MonthWindow(now)
	tx, err := s.ledger.FindSettlementTransaction(ctx, ownerID, s.settlementRef(o), from, to)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewInvariantViolationError(
				fmt.Sprintf("obligation %s is settled but has no settlement transaction this month", obligationID))
		}
		return nil, err
	}

	if _, err := s.ledger.DestroyTransaction(ctx, ownerID, tx.TransactionID); err != nil {
		return nil, err
	}

	if err := s.repo.SetLastSettledAt(ctx, ownerID, obligationID, nil, o.Version); err != nil {
		// Recreate the settlement so the timestamp and the ledger stay in
		// agreement, then surface the failure.
		params := s.settlementParams(o, tx.ExecutedAt)
		if _, undoErr := s.ledger.CreateTransaction(ctx, ownerID, params); undoErr != nil {
			return nil, errors.NewStorageError(
				fmt.Sprintf("pending write failed and settlement for obligation %s could not be restored", obligationID),
				undoErr,
			)
		}
		return nil, err
	}

	o.LastSettledAt = nil
	o.Version++
	o.UpdatedAt = now
	return o, nil
}

// settlementParams builds the ledger call for settling o at the given time:
// income obligations credit their account, expense obligations debit it.
func (s *Service) settlementParams(o *RecurringObligation, at time.Time) *transaction.CreateParams {
	kind := transaction.Income
	if o.Kind == Expense {
		kind = transaction.Expense
	}
	return &transaction.CreateParams{
		AccountID:   o.AccountID,
		Amount:      o.Amount,
		Kind:        kind,
		Description: fmt.Sprintf("Settlement: %s", o.Name),
		ExecutedAt:  at,
		Settlement:  s.settlementRef(o),
	}
}

func (s *Service) settlementRef(o *RecurringObligation) transaction.Settlement {
	kind := transaction.SettlementIncome
	if o.Kind == Expense {
		kind = transaction.SettlementExpense
	}
	return transaction.Settlement{Kind: kind, ObligationID: o.ObligationID}
}
