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

	commonErrors "github.com/gaboluque/monthly-budget-sub000/internal/domain/errors"
	"github.com/gaboluque/monthly-budget-sub000/internal/domain/obligation"
	"github.com/gaboluque/monthly-budget-sub000/internal/platform/dynamodb/client"
)

// DynamoDBObligationRepository implements the obligation.Repository interface
type DynamoDBObligationRepository struct {
	client client.Client
	table  string
	logger *slog.Logger
}

// NewDynamoDBObligationRepository creates a new DynamoDBObligationRepository
func NewDynamoDBObligationRepository(client client.Client, table string, logger *slog.Logger) *DynamoDBObligationRepository {
	return &DynamoDBObligationRepository{
		client: client,
		table:  table,
		logger: logger,
	}
}

type obligationItem struct {
	PK            string     `dynamodbav:"PK"`
	SK            string     `dynamodbav:"SK"`
	Type          string     `dynamodbav:"type"`
	ObligationID  string     `dynamodbav:"obligationId"`
	OwnerID       string     `dynamodbav:"ownerId"`
	Name          string     `dynamodbav:"name"`
	Kind          string     `dynamodbav:"kind"`
	Amount        string     `dynamodbav:"amount"`
	Frequency     string     `dynamodbav:"frequency"`
	AccountID     string     `dynamodbav:"accountId"`
	LastSettledAt *time.Time `dynamodbav:"lastSettledAt,omitempty"`
	Version       int64      `dynamodbav:"version"`
	CreatedAt     time.Time  `dynamodbav:"createdAt"`
	UpdatedAt     time.Time  `dynamodbav:"updatedAt"`
}

func newObligationItem(o *obligation.RecurringObligation) obligationItem {
	return obligationItem{
		PK:            ownerPK(o.OwnerID),
		SK:            obligationSK(o.ObligationID),
		Type:          itemTypeObligation,
		ObligationID:  o.ObligationID,
		OwnerID:       o.OwnerID,
		Name:          o.Name,
		Kind:          string(o.Kind),
		Amount:        o.Amount.String(),
		Frequency:     string(o.Frequency),
		AccountID:     o.AccountID,
		LastSettledAt: o.LastSettledAt,
		Version:       o.Version,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func (i obligationItem) toObligation() (*obligation.RecurringObligation, error) {
	amount, err := decimal.NewFromString(i.Amount)
	if err != nil {
		return nil, commonErrors.NewInternalError("corrupt obligation amount", err)
	}
	return &obligation.RecurringObligation{
		ObligationID:  i.ObligationID,
		OwnerID:       i.OwnerID,
		Name:          i.Name,
		Kind:          obligation.Kind(i.Kind),
		Amount:        amount,
		Frequency:     obligation.Frequency(i.Frequency),
		AccountID:     i.AccountID,
		LastSettledAt: i.LastSettledAt,
		Version:       i.Version,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}, nil
}

// CreateObligation creates a new obligation
func (r *DynamoDBObligationRepository) CreateObligation(ctx context.Context, o *obligation.RecurringObligation) (*obligation.RecurringObligation, error) {
	item, err := attributevalue.MarshalMap(newObligationItem(o))
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to marshal obligation", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, commonErrors.NewConflictError("obligation already exists")
		}
		return nil, commonErrors.NewStorageError("failed to create obligation", err)
	}

	return o, nil
}

// GetObligation retrieves an obligation by ID
func (r *DynamoDBObligationRepository) GetObligation(ctx context.Context, ownerID, obligationID string) (*obligation.RecurringObligation, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       itemKeyOf(ownerPK(ownerID), obligationSK(obligationID)),
	})
	if err != nil {
		return nil, commonErrors.NewStorageError("failed to get obligation", err)
	}
	if len(out.Item) == 0 {
		return nil, commonErrors.NewNotFoundError("obligation not found")
	}

	var item obligationItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, commonErrors.NewInternalError("failed to unmarshal obligation", err)
	}
	return item.toObligation()
}

// GetObligations retrieves every obligation of an owner
func (r *DynamoDBObligationRepository) GetObligations(ctx context.Context, ownerID string) ([]*obligation.RecurringObligation, error) {
	raw, err := queryByPrefix(ctx, r.client, r.table, ownerPK(ownerID), "OBLIGATION#")
	if err != nil {
		return nil, err
	}

	obligations := make([]*obligation.RecurringObligation, 0, len(raw))
	for _, attrs := range raw {
		var item obligationItem
		if err := attributevalue.UnmarshalMap(attrs, &item); err != nil {
			return nil, commonErrors.NewInternalError("failed to unmarshal obligation", err)
		}
		o, err := item.toObligation()
		if err != nil {
			return nil, err
		}
		obligations = append(obligations, o)
	}
	return obligations, nil
}

// SetLastSettledAt persists lastSettledAt (nil clears it), conditioned on
// expectedVersion. A lost condition check surfaces as a storage conflict.
func (r *DynamoDBObligationRepository) SetLastSettledAt(ctx context.Context, ownerID, obligationID string, ts *time.Time, expectedVersion int64) error {
	current, err := r.GetObligation(ctx, ownerID, obligationID)
	if err != nil {
		return err
	}

	item := newObligationItem(current)
	item.LastSettledAt = ts
	item.Version = expectedVersion + 1
	item.UpdatedAt = time.Now().UTC()

	marshaled, err := attributevalue.MarshalMap(item)
	if err != nil {
		return commonErrors.NewInternalError("failed to marshal obligation", err)
	}

	condition, names, values := versionCondition(expectedVersion)
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.table),
		Item:                      marshaled,
		ConditionExpression:       condition,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return mapWriteError(err, "failed to set obligation settlement timestamp")
	}
	return nil
}

// DeleteObligation deletes an obligation
func (r *DynamoDBObligationRepository) DeleteObligation(ctx context.Context, ownerID, obligationID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.table),
		Key:                 itemKeyOf(ownerPK(ownerID), obligationSK(obligationID)),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return commonErrors.NewNotFoundError("obligation not found")
		}
		return commonErrors.NewStorageError("failed to delete obligation", err)
	}
	return nil
}

// Compile-time check: ensure the repository implements obligation.Repository
var _ obligation.Repository = (*DynamoDBObligationRepository)(nil)
