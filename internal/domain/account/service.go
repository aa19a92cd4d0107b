package account

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gaboluque/monthly-budget-sub000/internal/common/clock"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/errors"
	"github.com/gaboluque/monthly-budget-sub000/pkg/validator"
)

// balanceRetries bounds how often a balance write is retried after losing an
// optimistic version check to a writer in another process.
const balanceRetries = 3

// Service is the account store. It owns Account aggregates and exposes the
// atomic credit/debit primitives the ledger builds on. Every balance
// read-modify-write runs under the per-account lock and a version-checked
// storage write, so concurrent callers observe linearizable updates.
type Service struct {
	repo  Repository
	clock clock.Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new account store
func NewService(repo Repository, clk clock.Clock) *Service {
	return &Service{
		repo:  repo,
		clock: clk,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) lockFor(accountID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.locks[accountID]; !exists {
		s.locks[accountID] = &sync.Mutex{}
	}
	return s.locks[accountID]
}

// Lock acquires the mutex of every given account in ascending-id order and
// returns the matching unlock function. The fixed global order keeps two
// transfers that touch the same pair of accounts from deadlocking.
func (s *Service) Lock(accountIDs ...string) func() {
	ids := make([]string, 0, len(accountIDs))
	seen := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	held := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		m := s.lockFor(id)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// CreateAccount creates a new account for its owner
func (s *Service) CreateAccount(ctx context.Context, ownerID string, req *CreateAccountRequest) (*Account, error) {
	errs := validator.New()
	errs.Required("ownerId", ownerID)
	errs.Required("name", req.Name)
	errs.Required("currency", req.Currency)
	errs.OneOf("accountType", string(req.AccountType), KnownAccountTypes...)
	if !errs.Empty() {
		return nil, errors.NewValidationError("invalid account").WithDetails(errs.Details())
	}

	now := s.clock.Now()
	acc := &Account{
		OwnerID:        ownerID,
		AccountID:      uuid.New().String(),
		Name:           req.Name,
		AccountType:    req.AccountType,
		Currency:       req.Currency,
		OpeningBalance: req.OpeningBalance,
		Balance:        req.OpeningBalance,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	return s.repo.CreateAccount(ctx, acc)
}

// GetAccount retrieves an account by ID
func (s *Service) GetAccount(ctx context.Context, ownerID, accountID string) (*Account, error) {
	return s.repo.GetAccount(ctx, ownerID, accountID)
}

// GetAccounts retrieves every account of an owner
func (s *Service) GetAccounts(ctx context.Context, ownerID string) ([]*Account, error) {
	return s.repo.GetAccounts(ctx, ownerID)
}

// DeleteAccount deletes an account. The delete cascades to the transactions
// the account owns; their balance effects die with the aggregate.
func (s *Service) DeleteAccount(ctx context.Context, ownerID, accountID string) error {
	unlock := s.Lock(accountID)
	defer unlock()

	if _, err := s.repo.GetAccount(ctx, ownerID, accountID); err != nil {
		return err
	}
	return s.repo.DeleteAccount(ctx, ownerID, accountID)
}

// Credit increases the account balance by amount and persists it.
func (s *Service) Credit(ctx context.Context, ownerID, accountID string, amount decimal.Decimal) (*Account, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return nil, errors.NewValidationError("invalid credit").
			WithDetail("amount", "must be positive")
	}

	unlock := s.Lock(accountID)
	defer unlock()

	return s.applyDelta(ctx, ownerID, accountID, amount)
}

// Debit decreases the account balance by amount and persists it. No floor is
// enforced here; overdraft policy belongs to callers.
func (s *Service) Debit(ctx context.Context, ownerID, accountID string, amount decimal.Decimal) (*Account, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		return nil, errors.NewValidationError("invalid debit").
			WithDetail("amount", "must be positive")
	}

	unlock := s.Lock(accountID)
	defer unlock()

	return s.applyDelta(ctx, ownerID, accountID, amount.Neg())
}

// GetBalance returns the current balance of an account
func (s *Service) GetBalance(ctx context.Context, ownerID, accountID string) (decimal.Decimal, error) {
	acc, err := s.repo.GetAccount(ctx, ownerID, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Balance, nil
}

// applyDelta runs one read-compute-write cycle under the caller-held account
// lock, retrying when a writer in another process wins the version check.
func (s *Service) applyDelta(ctx context.Context, ownerID, accountID string, delta decimal.Decimal) (*Account, error) {
	var lastErr error
	for attempt := 0; attempt < balanceRetries; attempt++ {
		acc, err := s.repo.GetAccount(ctx, ownerID, accountID)
		if err != nil {
			return nil, err
		}

		balance := acc.Balance.Add(delta)
		if err := s.repo.ApplyBalance(ctx, acc, balance); err != nil {
			if errors.IsStorageConflict(err) {
				lastErr = err
				continue
			}
			return nil, err
		}

		acc.Balance = balance
		acc.Version++
		return acc, nil
	}
	return nil, lastErr
}
