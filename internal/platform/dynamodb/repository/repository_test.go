package repository

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaboluque/monthly-budget-sub000/internal/domain/account"
	commonErrors "github.com/gaboluque/monthly-budget-sub000/internal/domain/errors"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/obligation"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/transaction"
	"github.com/gaboluque/monthly-budget-sub000/internal/platform/dynamodb/client"
)

const testTable = "budget-test"

func testLogger() *slog.Logger {
	return slog.Default()
}

func testAccount(ownerID, accountID string, balance int64) *account.Account {
	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	return &account.Account{
		OwnerID:        ownerID,
		AccountID:      accountID,
		Name:           "Checking",
		AccountType:    account.Checking,
		Currency:       "USD",
		OpeningBalance: decimal.NewFromInt(balance),
		Balance:        decimal.NewFromInt(balance),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func testTransaction(ownerID, txID, accountID string, amount int64, kind transaction.Kind) *transaction.Transaction {
	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	return &transaction.Transaction{
		TransactionID: txID,
		OwnerID:       ownerID,
		AccountID:     accountID,
		Amount:        decimal.NewFromInt(amount),
		Kind:          kind,
		ExecutedAt:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestAccountRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get round trip", func(t *testing.T) {
		mock := client.NewMockClient()
		repo := NewDynamoDBAccountRepository(mock, testTable, testLogger())

		acc := testAccount("owner-1", "acc-1", 100)
		_, err := repo.CreateAccount(ctx, acc)
		require.NoError(t, err)

		got, err := repo.GetAccount(ctx, "owner-1", "acc-1")
		require.NoError(t, err)
		assert.Equal(t, acc.AccountID, got.AccountID)
		assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("create refuses to overwrite", func(t *testing.T) {
		mock := client.NewMockClient()
		repo := NewDynamoDBAccountRepository(mock, testTable, testLogger())

		_, err := repo.CreateAccount(ctx, testAccount("owner-1", "acc-1", 100))
		require.NoError(t, err)

		_, err = repo.CreateAccount(ctx, testAccount("owner-1", "acc-1", 999))
		require.Error(t, err)
		assert.True(t, commonErrors.HasCode(err, commonErrors.CodeConflict))
	})

	t.Run("get missing account", func(t *testing.T) {
		mock := client.NewMockClient()
		repo := NewDynamoDBAccountRepository(mock, testTable, testLogger())

		_, err := repo.GetAccount(ctx, "owner-1", "missing")
		assert.True(t, commonErrors.IsNotFound(err))
	})

	t.Run("list accounts of an owner", func(t *testing.T) {
		mock := client.NewMockClient()
		repo := NewDynamoDBAccountRepository(mock, testTable, testLogger())

		for _, id := range []string{"acc-1", "acc-2"} {
			_, err := repo.CreateAccount(ctx, testAccount("owner-1", id, 10))
			require.NoError(t, err)
		}
		_, err := repo.CreateAccount(ctx, testAccount("owner-2", "acc-3", 10))
		require.NoError(t, err)

		accounts, err := repo.GetAccounts(ctx, "owner-1")
		require.NoError(t, err)
		assert.Len(t, accounts, 2)
	})

	t.Run("apply balance bumps the version", func(t *testing.T) {
		mock := client.NewMockClient()
		repo := NewDynamoDBAccountRepository(mock, testTable, testLogger())

		acc := testAccount("owner-1", "acc-1", 100)
		_, err := repo.CreateAccount(ctx, acc)
		require.NoError(t, err)

		require.NoError(t, repo.ApplyBalance(ctx, acc, decimal.NewFromInt(150)))

		got, err := repo.GetAccount(ctx, "owner-1", "acc-1")
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.NewFromInt(150)))
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("apply balance loses a stale version check", func(t *testing.T) {
		mock := client.NewMockClient()
		repo := NewDynamoDBAccountRepository(mock, testTable, testLogger())

		acc := testAccount("owner-1", "acc-1", 100)
		_, err := repo.CreateAccount(ctx, acc)
		require.NoError(t, err)

		// First write wins and bumps the stored version.
		require.NoError(t, repo.ApplyBalance(ctx, acc, decimal.NewFromInt(150)))

		// A writer still holding version 1 must lose.
		err = repo.ApplyBalance(ctx, acc, decimal.NewFromInt(175))
		require.Error(t, err)
		assert.True(t, commonErrors.IsStorageConflict(err))

		got, err := repo.GetAccount(ctx, "owner-1", "acc-1")
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.NewFromInt(150)))
	})
}

func TestTransactionRepository(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*client.MockClient, *DynamoDBAccountRepository, *DynamoDBTransactionRepository, *account.Account) {
		t.Helper()
		mock := client.NewMockClient()
		accountRepo := NewDynamoDBAccountRepository(mock, testTable, testLogger())
		txRepo := NewDynamoDBTransactionRepository(mock, testTable, testLogger())

		acc := testAccount("owner-1", "acc-1", 100)
		_, err := accountRepo.CreateAccount(ctx, acc)
		require.NoError(t, err)
		return mock, accountRepo, txRepo, acc
	}

	t.Run("create writes row and balance together", func(t *testing.T) {
		_, accountRepo, txRepo, acc := setup(t)

		tx := testTransaction("owner-1", "tx-1", acc.AccountID, 25, transaction.Deposit)
		err := txRepo.CreateTransaction(ctx, tx, []transaction.AccountMutation{
			{Account: acc, Balance: decimal.NewFromInt(125)},
		})
		require.NoError(t, err)

		got, err := txRepo.GetTransaction(ctx, "owner-1", "tx-1")
		require.NoError(t, err)
		assert.Equal(t, transaction.Deposit, got.Kind)
		assert.True(t, got.Amount.Equal(decimal.NewFromInt(25)))

		updated, err := accountRepo.GetAccount(ctx, "owner-1", acc.AccountID)
		require.NoError(t, err)
		assert.True(t, updated.Balance.Equal(decimal.NewFromInt(125)))
		assert.Equal(t, int64(2), updated.Version)
	})

	t.Run("stale version cancels the whole unit", func(t *testing.T) {
		_, accountRepo, txRepo, acc := setup(t)

		// Another writer bumps the account first.
		require.NoError(t, accountRepo.ApplyBalance(ctx, acc, decimal.NewFromInt(500)))

		tx := testTransaction("owner-1", "tx-1", acc.AccountID, 25, transaction.Deposit)
		err := txRepo.CreateTransaction(ctx, tx, []transaction.AccountMutation{
			{Account: acc, Balance: decimal.NewFromInt(125)},
		})
		require.Error(t, err)
		assert.True(t, commonErrors.IsStorageConflict(err))

		// Neither the row nor the balance write landed.
		_, err = txRepo.GetTransaction(ctx, "owner-1", "tx-1")
		assert.True(t, commonErrors.IsNotFound(err))

		current, err := accountRepo.GetAccount(ctx, "owner-1", acc.AccountID)
		require.NoError(t, err)
		assert.True(t, current.Balance.Equal(decimal.NewFromInt(500)))
	})

	t.Run("delete applies reversal atomically", func(t *testing.T) {
		_, accountRepo, txRepo, acc := setup(t)

		tx := testTransaction("owner-1", "tx-1", acc.AccountID, 25, transaction.Deposit)
		require.NoError(t, txRepo.CreateTransaction(ctx, tx, []transaction.AccountMutation{
			{Account: acc, Balance: decimal.NewFromInt(125)},
		}))

		updated, err := accountRepo.GetAccount(ctx, "owner-1", acc.AccountID)
		require.NoError(t, err)

		err = txRepo.DeleteTransaction(ctx, "owner-1", "tx-1", []transaction.AccountMutation{
			{Account: updated, Balance: decimal.NewFromInt(100)},
		})
		require.NoError(t, err)

		_, err = txRepo.GetTransaction(ctx, "owner-1", "tx-1")
		assert.True(t, commonErrors.IsNotFound(err))

		final, err := accountRepo.GetAccount(ctx, "owner-1", acc.AccountID)
		require.NoError(t, err)
		assert.True(t, final.Balance.Equal(decimal.NewFromInt(100)))
	})

	t.Run("deleting a missing row fails the unit", func(t *testing.T) {
		_, accountRepo, txRepo, acc := setup(t)

		err := txRepo.DeleteTransaction(ctx, "owner-1", "never-existed", []transaction.AccountMutation{
			{Account: acc, Balance: decimal.NewFromInt(75)},
		})
		require.Error(t, err)
		assert.True(t, commonErrors.IsStorageConflict(err))

		// The balance write was cancelled with it.
		current, err := accountRepo.GetAccount(ctx, "owner-1", acc.AccountID)
		require.NoError(t, err)
		assert.True(t, current.Balance.Equal(decimal.NewFromInt(100)))
	})

	t.Run("list by account includes transfers in", func(t *testing.T) {
		_, _, txRepo, acc := setup(t)

		out := testTransaction("owner-1", "tx-1", acc.AccountID, 10, transaction.Withdrawal)
		require.NoError(t, txRepo.CreateTransaction(ctx, out, nil))

		in := testTransaction("owner-1", "tx-2", "acc-other", 10, transaction.Transfer)
		in.RecipientAccountID = acc.AccountID
		require.NoError(t, txRepo.CreateTransaction(ctx, in, nil))

		unrelated := testTransaction("owner-1", "tx-3", "acc-other", 10, transaction.Deposit)
		require.NoError(t, txRepo.CreateTransaction(ctx, unrelated, nil))

		txs, err := txRepo.GetTransactionsByAccount(ctx, "owner-1", acc.AccountID)
		require.NoError(t, err)
		assert.Len(t, txs, 2)
	})

	t.Run("find settlement respects the month window", func(t *testing.T) {
		_, _, txRepo, acc := setup(t)

		ref := transaction.Settlement{Kind: transaction.SettlementExpense, ObligationID: "ob-1"}

		march := testTransaction("owner-1", "tx-1", acc.AccountID, 10, transaction.Expense)
		march.ExecutedAt = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
		march.Settlement = ref
		require.NoError(t, txRepo.CreateTransaction(ctx, march, nil))

		from := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

		found, err := txRepo.FindSettlementTransaction(ctx, "owner-1", ref, from, to)
		require.NoError(t, err)
		assert.Equal(t, "tx-1", found.TransactionID)

		// April's window misses it.
		_, err = txRepo.FindSettlementTransaction(ctx, "owner-1", ref, to, to.AddDate(0, 1, 0))
		assert.True(t, commonErrors.IsNotFound(err))

		// A different obligation misses it too.
		other := transaction.Settlement{Kind: transaction.SettlementExpense, ObligationID: "ob-2"}
		_, err = txRepo.FindSettlementTransaction(ctx, "owner-1", other, from, to)
		assert.True(t, commonErrors.IsNotFound(err))
	})

	t.Run("update requires an existing row", func(t *testing.T) {
		_, _, txRepo, acc := setup(t)

		tx := testTransaction("owner-1", "tx-1", acc.AccountID, 10, transaction.Payment)
		_, err := txRepo.UpdateTransaction(ctx, tx)
		require.Error(t, err)

		require.NoError(t, txRepo.CreateTransaction(ctx, tx, nil))
		tx.Description = "updated"
		updated, err := txRepo.UpdateTransaction(ctx, tx)
		require.NoError(t, err)
		assert.Equal(t, "updated", updated.Description)
	})
}

func TestObligationRepository(t *testing.T) {
	ctx := context.Background()

	newObligation := func(ownerID, obligationID string) *obligation.RecurringObligation {
		now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
		return &obligation.RecurringObligation{
			ObligationID: obligationID,
			OwnerID:      ownerID,
			Name:         "Rent",
			Kind:         obligation.Expense,
			Amount:       decimal.NewFromInt(900),
			Frequency:    obligation.Monthly,
			AccountID:    "acc-1",
			Version:      1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	t.Run("create and get round trip", func(t *testing.T) {
		mock := client.NewMockClient()
		repo := NewDynamoDBObligationRepository(mock, testTable, testLogger())

		_, err := repo.CreateObligation(ctx, newObligation("owner-1", "ob-1"))
		require.NoError(t, err)

		got, err := repo.GetObligation(ctx, "owner-1", "ob-1")
		require.NoError(t, err)
		assert.Equal(t, obligation.Expense, got.Kind)
		assert.Nil(t, got.LastSettledAt)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("set and clear lastSettledAt", func(t *testing.T) {
		mock := client.NewMockClient()
		repo := NewDynamoDBObligationRepository(mock, testTable, testLogger())

		_, err := repo.CreateObligation(ctx, newObligation("owner-1", "ob-1"))
		require.NoError(t, err)

		settledAt := time.Date(2025, time.March, 20, 8, 0, 0, 0, time.UTC)
		require.NoError(t, repo.SetLastSettledAt(ctx, "owner-1", "ob-1", &settledAt, 1))

		got, err := repo.GetObligation(ctx, "owner-1", "ob-1")
		require.NoError(t, err)
		require.NotNil(t, got.LastSettledAt)
		assert.Equal(t, settledAt, got.LastSettledAt.UTC())
		assert.Equal(t, int64(2), got.Version)

		require.NoError(t, repo.SetLastSettledAt(ctx, "owner-1", "ob-1", nil, 2))
		got, err = repo.GetObligation(ctx, "owner-1", "ob-1")
		require.NoError(t, err)
		assert.Nil(t, got.LastSettledAt)
		assert.Equal(t, int64(3), got.Version)
	})

	t.Run("stale version loses", func(t *testing.T) {
		mock := client.NewMockClient()
		repo := NewDynamoDBObligationRepository(mock, testTable, testLogger())

		_, err := repo.CreateObligation(ctx, newObligation("owner-1", "ob-1"))
		require.NoError(t, err)

		settledAt := time.Date(2025, time.March, 20, 8, 0, 0, 0, time.UTC)
		require.NoError(t, repo.SetLastSettledAt(ctx, "owner-1", "ob-1", &settledAt, 1))

		err = repo.SetLastSettledAt(ctx, "owner-1", "ob-1", nil, 1)
		require.Error(t, err)
		assert.True(t, commonErrors.IsStorageConflict(err))

		got, err := repo.GetObligation(ctx, "owner-1", "ob-1")
		require.NoError(t, err)
		assert.NotNil(t, got.LastSettledAt)
	})

	t.Run("delete", func(t *testing.T) {
		mock := client.NewMockClient()
		repo := NewDynamoDBObligationRepository(mock, testTable, testLogger())

		_, err := repo.CreateObligation(ctx, newObligation("owner-1", "ob-1"))
		require.NoError(t, err)

		require.NoError(t, repo.DeleteObligation(ctx, "owner-1", "ob-1"))
		_, err = repo.GetObligation(ctx, "owner-1", "ob-1")
		assert.True(t, commonErrors.IsNotFound(err))

		err = repo.DeleteObligation(ctx, "owner-1", "ob-1")
		assert.True(t, commonErrors.IsNotFound(err))
	})
}

func TestDeleteAccountCascade(t *testing.T) {
	ctx := context.Background()
	mock := client.NewMockClient()
	accountRepo := NewDynamoDBAccountRepository(mock, testTable, testLogger())
	txRepo := NewDynamoDBTransactionRepository(mock, testTable, testLogger())

	acc := testAccount("owner-1", "acc-1", 100)
	_, err := accountRepo.CreateAccount(ctx, acc)
	require.NoError(t, err)
	other := testAccount("owner-1", "acc-2", 100)
	_, err = accountRepo.CreateAccount(ctx, other)
	require.NoError(t, err)

	mine := testTransaction("owner-1", "tx-1", "acc-1", 10, transaction.Deposit)
	require.NoError(t, txRepo.CreateTransaction(ctx, mine, nil))
	theirs := testTransaction("owner-1", "tx-2", "acc-2", 10, transaction.Deposit)
	require.NoError(t, txRepo.CreateTransaction(ctx, theirs, nil))

	require.NoError(t, accountRepo.DeleteAccount(ctx, "owner-1", "acc-1"))

	_, err = accountRepo.GetAccount(ctx, "owner-1", "acc-1")
	assert.True(t, commonErrors.IsNotFound(err))
	_, err = txRepo.GetTransaction(ctx, "owner-1", "tx-1")
	assert.True(t, commonErrors.IsNotFound(err))

	// The other account and its history are untouched.
	_, err = accountRepo.GetAccount(ctx, "owner-1", "acc-2")
	require.NoError(t, err)
	_, err = txRepo.GetTransaction(ctx, "owner-1", "tx-2")
	require.NoError(t, err)
}
