package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	commonErrors "github.com/gaboluque/monthly-budget-sub000/internal/domain/errors"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/transaction"
	"github.com/gaboluque/monthly-budget-sub000/internal/platform/dynamodb/client"
)

// DynamoDBTransactionRepository implements the transaction.Repository
// interface. Writes that carry balance effects go through TransactWriteItems
// so the transaction row and its account mutations land together or not at
// all.
type DynamoDBTransactionRepository struct {
	client client.Client
	table  string
	logger *slog.Logger
}

// NewDynamoDBTransactionRepository creates a new DynamoDBTransactionRepository
func NewDynamoDBTransactionRepository(client client.Client, table string, logger *slog.Logger) *DynamoDBTransactionRepository {
	return &DynamoDBTransactionRepository{
		client: client,
		table:  table,
		logger: logger,
	}
}

type transactionItem struct {
	PK                 string    `dynamodbav:"PK"`
	SK                 string    `dynamodbav:"SK"`
	Type               string    `dynamodbav:"type"`
	TransactionID      string    `dynamodbav:"transactionId"`
	OwnerID            string    `dynamodbav:"ownerId"`
	AccountID          string    `dynamodbav:"accountId"`
	RecipientAccountID string    `dynamodbav:"recipientAccountId,omitempty"`
	Amount             string    `dynamodbav:"amount"`
	Kind               string    `dynamodbav:"kind"`
	Description        string    `dynamodbav:"description,omitempty"`
	ExecutedAt         time.Time `dynamodbav:"executedAt"`
	SettlementKind     string    `dynamodbav:"settlementKind,omitempty"`
	SettlementID       string    `dynamodbav:"settlementId,omitempty"`
	CreatedAt          time.Time `dynamodbav:"createdAt"`
	UpdatedAt          time.Time `dynamodbav:"updatedAt"`
}

func newTransactionItem(tx *transaction.Transaction) transactionItem {
	return transactionItem{
		PK:                 ownerPK(tx.OwnerID),
		SK:                 transactionSK(tx.TransactionID),
		Type:               itemTypeTransaction,
		TransactionID:      tx.TransactionID,
		OwnerID:            tx.OwnerID,
		AccountID:          tx.AccountID,
		RecipientAccountID: tx.RecipientAccountID,
		Amount:             tx.Amount.String(),
		Kind:               string(tx.Kind),
		Description:        tx.Description,
		ExecutedAt:         tx.ExecutedAt,
		SettlementKind:     string(tx.Settlement.Kind),
		SettlementID:       tx.Settlement.ObligationID,
		CreatedAt:          tx.CreatedAt,
		UpdatedAt:          tx.UpdatedAt,
	}
}

func (i transactionItem) toTransaction() (*transaction.Transaction, error) {
	amount, err := decimal.NewFromString(i.Amount)
	if err != nil {
		return nil, commonErrors.NewInternalError("corrupt transaction amount", err)
	}
	return &transaction.Transaction{
		TransactionID:      i.TransactionID,
		OwnerID:            i.OwnerID,
		AccountID:          i.AccountID,
		RecipientAccountID: i.RecipientAccountID,
		Amount:             amount,
		Kind:               transaction.Kind(i.Kind),
		Description:        i.Description,
		ExecutedAt:         i.ExecutedAt,
		Settlement: transaction.Settlement{
			Kind:         transaction.SettlementKind(i.SettlementKind),
			ObligationID: i.SettlementID,
		},
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}, nil
}

// mutationPuts builds one conditioned Put per balance mutation. Each write is
// conditioned on the version the ledger read, so a concurrent balance change
// cancels the whole transaction.
func (r *DynamoDBTransactionRepository) mutationPuts(mutations []transaction.AccountMutation) ([]types.TransactWriteItem, error) {
	writes := make([]types.TransactWriteItem, 0, len(mutations))
	for _, m := range mutations {
		item := newAccountItem(m.Account)
		item.Balance = m.Balance.String()
		item.Version = m.Account.Version + 1
		item.UpdatedAt = time.Now().UTC()

		marshaled, err := attributevalue.MarshalMap(item)
		if err != nil {
			return nil, commonErrors.NewInternalError("failed to marshal account", err)
		}

		condition, names, values := versionCondition(m.Account.Version)
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{
				TableName:                 aws.String(r.table),
				Item:                      marshaled,
				ConditionExpression:       condition,
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			},
		})
	}
	return writes, nil
}

// CreateTransaction persists the transaction row together with its balance
// effects in a single transactional write.
func (r *DynamoDBTransactionRepository) CreateTransaction(ctx context.Context, tx *transaction.Transaction, mutations []transaction.AccountMutation) error {
	txItem, err := attributevalue.MarshalMap(newTransactionItem(tx))
	if err != nil {
		return commonErrors.NewInternalError("failed to marshal transaction", err)
	}

	writes := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(r.table),
			Item:                txItem,
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		},
	}}
	balanceWrites, err := r.mutationPuts(mutations)
	if err != nil {
		return err
	}
	writes = append(writes, balanceWrites...)

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	if err != nil {
		return mapWriteError(err, "failed to create transaction")
	}
	return nil
}

// DeleteTransaction removes the transaction row and applies the reversing
// balance writes atomically. The delete is conditioned on the row still
// existing, so two concurrent destroys cannot both reverse the balances.
func (r *DynamoDBTransactionRepository) DeleteTransaction(ctx context.Context, ownerID, transactionID string, mutations []transaction.AccountMutation) error {
	writes := []types.TransactWriteItem{{
		Delete: &types.Delete{
			TableName:           aws.String(r.table),
			Key:                 itemKeyOf(ownerPK(ownerID), transactionSK(transactionID)),
			ConditionExpression: aws.String("attribute_exists(PK)"),
		},
	}}
	balanceWrites, err := r.mutationPuts(mutations)
	if err != nil {
		return err
	}
	writes = append(writes, balanceWrites...)

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	if err != nil {
		return mapWriteError(err, "failed to delete transaction")
	}
	return nil
}

// GetTransaction retrieves a transaction by ID
func (r *DynamoDBTransactionRepository) GetTransaction(ctx context.Context, ownerID, transactionID string) (*transaction.Transaction, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       itemKeyOf(ownerPK(ownerID), transactionSK(transactionID)),
	})
	if err != nil {
		return nil, commonErrors.NewStorageError("failed to get transaction", err)
	}
	if len(out.Item) == 0 {
		return nil, commonErrors.NewNotFoundError("transaction not found")
	}

	var item transactionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, commonErrors.NewInternalError("failed to unmarshal transaction", err)
	}
	return item.toTransaction()
}

// GetTransactionsByAccount retrieves the transactions touching an account as
// source or recipient.
func (r *DynamoDBTransactionRepository) GetTransactionsByAccount(ctx context.Context, ownerID, accountID string) ([]*transaction.Transaction, error) {
	items, err := r.queryTransactions(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var txs []*transaction.Transaction
	for _, item := range items {
		if item.AccountID != accountID && item.RecipientAccountID != accountID {
			continue
		}
		tx, err := item.toTransaction()
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// FindSettlementTransaction finds the transaction settling the given
// obligation with executedAt in [from, to).
func (r *DynamoDBTransactionRepository) FindSettlementTransaction(ctx context.Context, ownerID string, settlement transaction.Settlement, from, to time.Time) (*transaction.Transaction, error) {
	items, err := r.queryTransactions(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		ref := transaction.Settlement{
			Kind:         transaction.SettlementKind(item.SettlementKind),
			ObligationID: item.SettlementID,
		}
		if !ref.Matches(settlement) {
			continue
		}
		executed := item.ExecutedAt.UTC()
		if executed.Before(from) || !executed.Before(to) {
			continue
		}
		return item.toTransaction()
	}
	return nil, commonErrors.NewNotFoundError("settlement transaction not found")
}

// UpdateTransaction replaces an existing transaction row
func (r *DynamoDBTransactionRepository) UpdateTransaction(ctx context.Context, tx *transaction.Transaction) (*transaction.Transaction, error) {
	item, err := attributevalue.MarshalMap(newTransactionItem(tx))
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to marshal transaction", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		return nil, mapWriteError(err, "failed to update transaction")
	}
	return tx, nil
}

func (r *DynamoDBTransactionRepository) queryTransactions(ctx context.Context, ownerID string) ([]transactionItem, error) {
	raw, err := queryByPrefix(ctx, r.client, r.table, ownerPK(ownerID), "TXN#")
	if err != nil {
		return nil, err
	}

	items := make([]transactionItem, 0, len(raw))
	for _, attrs := range raw {
		var item transactionItem
		if err := attributevalue.UnmarshalMap(attrs, &item); err != nil {
			return nil, commonErrors.NewInternalError("failed to unmarshal transaction", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// Compile-time check: ensure the repository implements transaction.Repository
var _ transaction.Repository = (*DynamoDBTransactionRepository)(nil)
