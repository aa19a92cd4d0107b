package client

import (
	"context"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MockClient is an in-memory implementation of the Client interface for
// tests. It honors the condition expressions the repositories actually use
// (attribute_not_exists, attribute_exists, version equality) and applies
// TransactWriteItems all-or-nothing, so version-conflict and atomicity paths
// are exercised for real. Errors assigned to the *Err fields are returned
// verbatim to simulate storage failures.
type MockClient struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	GetErr      error
	PutErr      error
	DeleteErr   error
	QueryErr    error
	TransactErr error
	BatchErr    error
}

// NewMockClient creates a new mock client with an empty item store
func NewMockClient() *MockClient {
	return &MockClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func itemKey(item map[string]types.AttributeValue) string {
	pk := item["PK"].(*types.AttributeValueMemberS).Value
	sk := item["SK"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

// checkCondition evaluates the condition expressions used by this module's
// repositories against the currently stored item (nil when absent).
func checkCondition(existing map[string]types.AttributeValue, expr *string, values map[string]types.AttributeValue) bool {
	if expr == nil {
		return true
	}
	switch {
	case strings.Contains(*expr, "attribute_not_exists"):
		return existing == nil
	case strings.Contains(*expr, "attribute_exists"):
		if existing == nil {
			return false
		}
	}
	if strings.Contains(*expr, ":expectedVersion") {
		if existing == nil {
			return false
		}
		want, ok := values[":expectedVersion"].(*types.AttributeValueMemberN)
		if !ok {
			return false
		}
		have, ok := existing["version"].(*types.AttributeValueMemberN)
		if !ok || have.Value != want.Value {
			return false
		}
	}
	return true
}

// GetItem retrieves an item from the in-memory store
func (c *MockClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if c.GetErr != nil {
		return nil, c.GetErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[itemKey(params.Key)]; exists {
		return &dynamodb.GetItemOutput{Item: item}, nil
	}
	return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{}}, nil
}

// PutItem adds or replaces an item, honoring the condition expression
func (c *MockClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if c.PutErr != nil {
		return nil, c.PutErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := itemKey(params.Item)
	if !checkCondition(c.items[key], params.ConditionExpression, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional check failed")}
	}
	c.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

// DeleteItem removes an item, honoring the condition expression
func (c *MockClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if c.DeleteErr != nil {
		return nil, c.DeleteErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := itemKey(params.Key)
	if !checkCondition(c.items[key], params.ConditionExpression, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional check failed")}
	}
	delete(c.items, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query returns the items matching a "PK = :pk AND begins_with(SK, :prefix)"
// key condition, resolving the placeholder names the expression builder
// generated.
func (c *MockClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if c.QueryErr != nil {
		return nil, c.QueryErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	pk, skPrefix := resolveKeyCondition(params)

	var items []map[string]types.AttributeValue
	for key, item := range c.items {
		parts := strings.SplitN(key, "|", 2)
		if parts[0] != pk {
			continue
		}
		if skPrefix != "" && !strings.HasPrefix(parts[1], skPrefix) {
			continue
		}
		items = append(items, item)
	}
	return &dynamodb.QueryOutput{Items: items, Count: int32(len(items))}, nil
}

// resolveKeyCondition maps the generated #n/:n placeholders back onto the PK
// equality value and the SK begins_with prefix.
func resolveKeyCondition(params *dynamodb.QueryInput) (pk, skPrefix string) {
	expr := aws.ToString(params.KeyConditionExpression)

	var pkPlaceholder, skPlaceholder string
	for placeholder, attr := range params.ExpressionAttributeNames {
		switch attr {
		case "PK":
			pkPlaceholder = placeholder
		case "SK":
			skPlaceholder = placeholder
		}
	}

	if v, ok := params.ExpressionAttributeValues[valueFor(expr, pkPlaceholder+" = ")].(*types.AttributeValueMemberS); ok {
		pk = v.Value
	}
	if skPlaceholder != "" {
		if v, ok := params.ExpressionAttributeValues[valueFor(expr, skPlaceholder+", ")].(*types.AttributeValueMemberS); ok {
			skPrefix = v.Value
		}
	}
	return pk, skPrefix
}

// valueFor extracts the :placeholder token following the given marker in the
// expression string.
func valueFor(expr, marker string) string {
	idx := strings.Index(expr, marker)
	if idx < 0 {
		return ""
	}
	rest := expr[idx+len(marker):]
	end := strings.IndexAny(rest, ") ")
	if end < 0 {
		end = len(rest)
	}
	return rest[:end]
}

// TransactWriteItems applies every write or none: all conditions are checked
// against the pre-transaction state before anything mutates.
func (c *MockClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	if c.TransactErr != nil {
		return nil, c.TransactErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	for i, item := range params.TransactItems {
		reasons[i] = types.CancellationReason{Code: aws.String("None")}
		switch {
		case item.Put != nil:
			key := itemKey(item.Put.Item)
			if !checkCondition(c.items[key], item.Put.ConditionExpression, item.Put.ExpressionAttributeValues) {
				reasons[i].Code = aws.String("ConditionalCheckFailed")
				failed = true
			}
		case item.Delete != nil:
			key := itemKey(item.Delete.Key)
			if !checkCondition(c.items[key], item.Delete.ConditionExpression, item.Delete.ExpressionAttributeValues) {
				reasons[i].Code = aws.String("ConditionalCheckFailed")
				failed = true
			}
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("transaction canceled"),
			CancellationReasons: reasons,
		}
	}

	for _, item := range params.TransactItems {
		switch {
		case item.Put != nil:
			c.items[itemKey(item.Put.Item)] = item.Put.Item
		case item.Delete != nil:
			delete(c.items, itemKey(item.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// BatchWriteItem applies put and delete requests without conditions
func (c *MockClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if c.BatchErr != nil {
		return nil, c.BatchErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, requests := range params.RequestItems {
		for _, req := range requests {
			switch {
			case req.PutRequest != nil:
				c.items[itemKey(req.PutRequest.Item)] = req.PutRequest.Item
			case req.DeleteRequest != nil:
				delete(c.items, itemKey(req.DeleteRequest.Key))
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

// ItemCount returns the number of stored items; test helper.
func (c *MockClient) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Compile-time check: ensure MockClient implements the Client interface
var _ Client = (*MockClient)(nil)
