package account

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaboluque/monthly-budget-sub000/internal/common/clock"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/errors"
)

// fakeAccountRepo is an in-memory implementation of the Repository interface.
// ApplyBalance enforces the version condition the way the storage layer does,
// so the retry path is exercised for real.
type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*Account

	// forcedConflicts makes the next n ApplyBalance calls lose their version
	// check regardless of the actual version.
	forcedConflicts int
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[string]*Account)}
}

func (r *fakeAccountRepo) key(ownerID, accountID string) string {
	return ownerID + "|" + accountID
}

func (r *fakeAccountRepo) CreateAccount(ctx context.Context, acc *Account) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := r.key(acc.OwnerID, acc.AccountID)
	if _, exists := r.accounts[key]; exists {
		return nil, errors.NewConflictError("account already exists")
	}
	stored := *acc
	r.accounts[key] = &stored
	return acc, nil
}

func (r *fakeAccountRepo) GetAccount(ctx context.Context, ownerID, accountID string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, exists := r.accounts[r.key(ownerID, accountID)]
	if !exists {
		return nil, errors.NewNotFoundError("account not found")
	}
	copied := *acc
	return &copied, nil
}

func (r *fakeAccountRepo) GetAccounts(ctx context.Context, ownerID string) ([]*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Account
	for _, acc := range r.accounts {
		if acc.OwnerID == ownerID {
			copied := *acc
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) ApplyBalance(ctx context.Context, acc *Account, balance decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.forcedConflicts > 0 {
		r.forcedConflicts--
		return errors.NewStorageConflictError("failed to apply account balance: concurrent modification")
	}

	stored, exists := r.accounts[r.key(acc.OwnerID, acc.AccountID)]
	if !exists || stored.Version != acc.Version {
		return errors.NewStorageConflictError("failed to apply account balance: concurrent modification")
	}
	stored.Balance = balance
	stored.Version++
	return nil
}

func (r *fakeAccountRepo) DeleteAccount(ctx context.Context, ownerID, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.accounts, r.key(ownerID, accountID))
	return nil
}

func newTestService() (*Service, *fakeAccountRepo) {
	repo := newFakeAccountRepo()
	clk := clock.NewFixed(time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC))
	return NewService(repo, clk), repo
}

func mustCreateAccount(t *testing.T, svc *Service, ownerID string, opening decimal.Decimal) *Account {
	t.Helper()
	acc, err := svc.CreateAccount(context.Background(), ownerID, &CreateAccountRequest{
		Name:           "Main Checking",
		AccountType:    Checking,
		Currency:       "USD",
		OpeningBalance: opening,
	})
	require.NoError(t, err)
	return acc
}

func TestCreateAccount(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	t.Run("creates with opening balance", func(t *testing.T) {
		acc := mustCreateAccount(t, svc, "owner-1", decimal.NewFromInt(100))
		assert.NotEmpty(t, acc.AccountID)
		assert.True(t, acc.Balance.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, int64(1), acc.Version)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		_, err := svc.CreateAccount(ctx, "owner-1", &CreateAccountRequest{})
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("rejects unknown account type", func(t *testing.T) {
		_, err := svc.CreateAccount(ctx, "owner-1", &CreateAccountRequest{
			Name:        "Junk",
			AccountType: "bitcoin",
			Currency:    "USD",
		})
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})
}

func TestCreditAndDebit(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	acc := mustCreateAccount(t, svc, "owner-1", decimal.NewFromInt(100))

	t.Run("credit increases the balance", func(t *testing.T) {
		updated, err := svc.Credit(ctx, "owner-1", acc.AccountID, decimal.NewFromInt(40))
		require.NoError(t, err)
		assert.True(t, updated.Balance.Equal(decimal.NewFromInt(140)))
	})

	t.Run("debit decreases the balance", func(t *testing.T) {
		updated, err := svc.Debit(ctx, "owner-1", acc.AccountID, decimal.NewFromInt(60))
		require.NoError(t, err)
		assert.True(t, updated.Balance.Equal(decimal.NewFromInt(80)))
	})

	t.Run("debit past zero is allowed", func(t *testing.T) {
		updated, err := svc.Debit(ctx, "owner-1", acc.AccountID, decimal.NewFromInt(200))
		require.NoError(t, err)
		assert.True(t, updated.Balance.Equal(decimal.NewFromInt(-120)))
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := svc.Credit(ctx, "owner-1", acc.AccountID, decimal.Zero)
		assert.True(t, errors.IsValidation(err))

		_, err = svc.Debit(ctx, "owner-1", acc.AccountID, decimal.NewFromInt(-5))
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := svc.Credit(ctx, "owner-1", "missing", decimal.NewFromInt(1))
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestGetBalance(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	acc := mustCreateAccount(t, svc, "owner-1", decimal.NewFromFloat(10.50))

	balance, err := svc.GetBalance(ctx, "owner-1", acc.AccountID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromFloat(10.50)))

	_, err = svc.GetBalance(ctx, "owner-1", "missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestConcurrentCredits(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	acc := mustCreateAccount(t, svc, "owner-1", decimal.Zero)

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Credit(ctx, "owner-1", acc.AccountID, decimal.NewFromInt(5))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := svc.GetBalance(ctx, "owner-1", acc.AccountID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(workers*5)))
}

func TestApplyDeltaRetriesOnConflict(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	acc := mustCreateAccount(t, svc, "owner-1", decimal.NewFromInt(10))

	t.Run("recovers from transient conflicts", func(t *testing.T) {
		repo.forcedConflicts = 2
		updated, err := svc.Credit(ctx, "owner-1", acc.AccountID, decimal.NewFromInt(5))
		require.NoError(t, err)
		assert.True(t, updated.Balance.Equal(decimal.NewFromInt(15)))
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		repo.forcedConflicts = balanceRetries
		_, err := svc.Credit(ctx, "owner-1", acc.AccountID, decimal.NewFromInt(5))
		require.Error(t, err)
		assert.True(t, errors.IsStorageConflict(err))
		repo.forcedConflicts = 0

		// The failed credit left no trace.
		balance, err := svc.GetBalance(ctx, "owner-1", acc.AccountID)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(15)))
	})
}

func TestDeleteAccount(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	acc := mustCreateAccount(t, svc, "owner-1", decimal.Zero)

	require.NoError(t, svc.DeleteAccount(ctx, "owner-1", acc.AccountID))

	_, err := svc.GetAccount(ctx, "owner-1", acc.AccountID)
	assert.True(t, errors.IsNotFound(err))

	err = svc.DeleteAccount(ctx, "owner-1", acc.AccountID)
	assert.True(t, errors.IsNotFound(err))
}
