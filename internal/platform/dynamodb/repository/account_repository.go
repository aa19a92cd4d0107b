package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/gaboluque/monthly-budget-sub000/internal/domain/account"
	commonErrors "github.com/gaboluque/monthly-budget-sub000/internal/domain/errors"
	"github.com/gaboluque/monthly-budget-sub000/internal/platform/dynamodb/client"
)

// DynamoDBAccountRepository implements the account.Repository interface
type DynamoDBAccountRepository struct {
	client client.Client
	table  string
	logger *slog.Logger
}

// NewDynamoDBAccountRepository creates a new DynamoDBAccountRepository
func NewDynamoDBAccountRepository(client client.Client, table string, logger *slog.Logger) *DynamoDBAccountRepository {
	return &DynamoDBAccountRepository{
		client: client,
		table:  table,
		logger: logger,
	}
}

// accountItem is the DynamoDB shape of an account. Balances travel as number
// strings so the decimal type keeps exact precision.
type accountItem struct {
	PK             string    `dynamodbav:"PK"`
	SK             string    `dynamodbav:"SK"`
	Type           string    `dynamodbav:"type"`
	OwnerID        string    `dynamodbav:"ownerId"`
	AccountID      string    `dynamodbav:"accountId"`
	Name           string    `dynamodbav:"name"`
	AccountType    string    `dynamodbav:"accountType"`
	Currency       string    `dynamodbav:"currency"`
	OpeningBalance string    `dynamodbav:"openingBalance"`
	Balance        string    `dynamodbav:"balance"`
	Version        int64     `dynamodbav:"version"`
	CreatedAt      time.Time `dynamodbav:"createdAt"`
	UpdatedAt      time.Time `dynamodbav:"updatedAt"`
}

func newAccountItem(acc *account.Account) accountItem {
	return accountItem{
		PK:             ownerPK(acc.OwnerID),
		SK:             accountSK(acc.AccountID),
		Type:           itemTypeAccount,
		OwnerID:        acc.OwnerID,
		AccountID:      acc.AccountID,
		Name:           acc.Name,
		AccountType:    string(acc.AccountType),
		Currency:       acc.Currency,
		OpeningBalance: acc.OpeningBalance.String(),
		Balance:        acc.Balance.String(),
		Version:        acc.Version,
		CreatedAt:      acc.CreatedAt,
		UpdatedAt:      acc.UpdatedAt,
	}
}

func (i accountItem) toAccount() (*account.Account, error) {
	balance, err := decimal.NewFromString(i.Balance)
	if err != nil {
		return nil, commonErrors.NewInternalError("corrupt account balance", err)
	}
	opening, err := decimal.NewFromString(i.OpeningBalance)
	if err != nil {
		return nil, commonErrors.NewInternalError("corrupt account opening balance", err)
	}
	return &account.Account{
		OwnerID:        i.OwnerID,
		AccountID:      i.AccountID,
		Name:           i.Name,
		AccountType:    account.AccountType(i.AccountType),
		Currency:       i.Currency,
		OpeningBalance: opening,
		Balance:        balance,
		Version:        i.Version,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}, nil
}

// CreateAccount creates a new account
func (r *DynamoDBAccountRepository) CreateAccount(ctx context.Context, acc *account.Account) (*account.Account, error) {
	item, err := attributevalue.MarshalMap(newAccountItem(acc))
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to marshal account", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, commonErrors.NewConflictError("account already exists")
		}
		return nil, commonErrors.NewStorageError("failed to create account", err)
	}

	return acc, nil
}

// GetAccount retrieves an account by ID
func (r *DynamoDBAccountRepository) GetAccount(ctx context.Context, ownerID, accountID string) (*account.Account, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       itemKeyOf(ownerPK(ownerID), accountSK(accountID)),
	})
	if err != nil {
		return nil, commonErrors.NewStorageError("failed to get account", err)
	}
	if len(out.Item) == 0 {
		return nil, commonErrors.NewNotFoundError("account not found")
	}

	var item accountItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, commonErrors.NewInternalError("failed to unmarshal account", err)
	}
	return item.toAccount()
}

// GetAccounts retrieves every account of an owner
func (r *DynamoDBAccountRepository) GetAccounts(ctx context.Context, ownerID string) ([]*account.Account, error) {
	items, err := queryByPrefix(ctx, r.client, r.table, ownerPK(ownerID), "ACCOUNT#")
	if err != nil {
		return nil, err
	}

	accounts := make([]*account.Account, 0, len(items))
	for _, raw := range items {
		var item accountItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, commonErrors.NewInternalError("failed to unmarshal account", err)
		}
		acc, err := item.toAccount()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

// ApplyBalance persists a new balance for acc, conditioned on acc.Version.
func (r *DynamoDBAccountRepository) ApplyBalance(ctx context.Context, acc *account.Account, balance decimal.Decimal) error {
	item := newAccountItem(acc)
	item.Balance = balance.String()
	item.Version = acc.Version + 1
	item.UpdatedAt = time.Now().UTC()

	marshaled, err := attributevalue.MarshalMap(item)
	if err != nil {
		return commonErrors.NewInternalError("failed to marshal account", err)
	}

	condition, names, values := versionCondition(acc.Version)
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.table),
		Item:                      marshaled,
		ConditionExpression:       condition,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return mapWriteError(err, "failed to apply account balance")
	}
	return nil
}

// DeleteAccount deletes an account and cascades to the transactions whose
// source it is. Balances are not reversed; the aggregate owns its history.
func (r *DynamoDBAccountRepository) DeleteAccount(ctx context.Context, ownerID, accountID string) error {
	items, err := queryByPrefix(ctx, r.client, r.table, ownerPK(ownerID), "TXN#")
	if err != nil {
		return err
	}

	deletes := []types.WriteRequest{{
		DeleteRequest: &types.DeleteRequest{Key: itemKeyOf(ownerPK(ownerID), accountSK(accountID))},
	}}
	for _, raw := range items {
		var item transactionItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return commonErrors.NewInternalError("failed to unmarshal transaction", err)
		}
		if item.AccountID != accountID {
			continue
		}
		deletes = append(deletes, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: itemKeyOf(item.PK, item.SK)},
		})
	}

	// BatchWriteItem accepts at most 25 requests per call.
	for start := 0; start < len(deletes); start += 25 {
		end := start + 25
		if end > len(deletes) {
			end = len(deletes)
		}
		_, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{r.table: deletes[start:end]},
		})
		if err != nil {
			return commonErrors.NewStorageError("failed to delete account", err)
		}
	}

	r.logger.Info("account deleted", "accountId", accountID, "cascadedTransactions", len(deletes)-1)
	return nil
}

// Compile-time check: ensure the repository implements account.Repository
var _ account.Repository = (*DynamoDBAccountRepository)(nil)
