package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	commonErrors "github.com/gaboluque/monthly-budget-sub000/internal/domain/errors"
	"github.com/gaboluque/monthly-budget-sub000/internal/platform/dynamodb/client"
)

// Single-table layout: every row of an owner shares one partition.
//
//	PK = OWNER#<ownerId>
//	SK = ACCOUNT#<accountId> | TXN#<transactionId> | OBLIGATION#<obligationId>
const (
	itemTypeAccount     = "account"
	itemTypeTransaction = "transaction"
	itemTypeObligation  = "obligation"
)

func ownerPK(ownerID string) string {
	return fmt.Sprintf("OWNER#%s", ownerID)
}

func accountSK(accountID string) string {
	return fmt.Sprintf("ACCOUNT#%s", accountID)
}

func transactionSK(transactionID string) string {
	return fmt.Sprintf("TXN#%s", transactionID)
}

func obligationSK(obligationID string) string {
	return fmt.Sprintf("OBLIGATION#%s", obligationID)
}

func itemKeyOf(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// versionCondition builds the optimistic-concurrency condition shared by
// every versioned write.
func versionCondition(expectedVersion int64) (*string, map[string]string, map[string]types.AttributeValue) {
	return aws.String("#version = :expectedVersion"),
		map[string]string{"#version": "version"},
		map[string]types.AttributeValue{
			":expectedVersion": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expectedVersion)},
		}
}

// queryByPrefix queries every item of one owner whose sort key starts with
// prefix.
func queryByPrefix(ctx context.Context, c client.Client, table, pk, prefix string) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(pk)).
		And(expression.Key("SK").BeginsWith(prefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to build query expression", err)
	}

	out, err := c.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, commonErrors.NewStorageError("query failed", err)
	}
	return out.Items, nil
}

// mapWriteError converts driver failures into the domain taxonomy: a lost
// condition check is a retryable storage conflict, everything else a storage
// error.
func mapWriteError(err error, message string) error {
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return commonErrors.NewStorageConflictError(message + ": concurrent modification")
	}

	var cancelErr *types.TransactionCanceledException
	if errors.As(err, &cancelErr) {
		for _, reason := range cancelErr.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return commonErrors.NewStorageConflictError(message + ": concurrent modification")
			}
		}
	}

	return commonErrors.NewStorageError(message, err)
}
