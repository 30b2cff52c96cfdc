// Package ddbtest provides an in-memory stand-in for the DynamoDB calls made
// by the shopping cart repository.
package ddbtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Table is a single table keyed by category and id. It understands only the
// condition expressions issued by repository.DynamoShoppingCartRepository.
type Table struct {
	mu      sync.Mutex
	Items   map[string]map[string]types.AttributeValue
	ScanErr error
	Scans   []*dynamodb.ScanInput
}

// New returns an empty table.
func New() *Table {
	return &Table{Items: make(map[string]map[string]types.AttributeValue)}
}

// StringAttr returns the string attribute name of m, or "" when absent.
func StringAttr(m map[string]types.AttributeValue, name string) string {
	if s, ok := m[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

// Key is the map key Items uses for an item: "category/id".
func Key(m map[string]types.AttributeValue) string {
	return StringAttr(m, "category") + "/" + StringAttr(m, "id")
}

func numberAttr(m map[string]types.AttributeValue, name string) (string, bool) {
	n, ok := m[name].(*types.AttributeValueMemberN)
	if !ok {
		return "", false
	}
	return n.Value, true
}

func conditionFailed(old map[string]types.AttributeValue) error {
	msg := "The conditional request failed"
	return &types.ConditionalCheckFailedException{Message: &msg, Item: old}
}

func check(cond *string, old, values map[string]types.AttributeValue) error {
	if cond == nil {
		return nil
	}
	exists := old != nil
	switch *cond {
	case "attribute_not_exists(id)":
		if exists {
			return conditionFailed(nil)
		}
	case "attribute_exists(id)":
		if !exists {
			return conditionFailed(nil)
		}
	case "attribute_exists(id) AND #version = :expected":
		if !exists {
			return conditionFailed(nil)
		}
		stored, _ := numberAttr(old, "version")
		expected, _ := numberAttr(values, ":expected")
		if stored != expected {
			return conditionFailed(old)
		}
	case "attribute_exists(id) AND attribute_not_exists(#version)":
		if !exists {
			return conditionFailed(nil)
		}
		if _, ok := numberAttr(old, "version"); ok {
			return conditionFailed(old)
		}
	default:
		return fmt.Errorf("unsupported condition %q", *cond)
	}
	return nil
}

func (t *Table) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: t.Items[Key(in.Key)]}, nil
}

func (t *Table) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := Key(in.Item)
	if err := check(in.ConditionExpression, t.Items[k], in.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	t.Items[k] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (t *Table) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := Key(in.Key)
	if err := check(in.ConditionExpression, t.Items[k], in.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	delete(t.Items, k)
	return &dynamodb.DeleteItemOutput{}, nil
}

// Scan returns at most Limit items in map order and records every input.
func (t *Table) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Scans = append(t.Scans, in)
	if t.ScanErr != nil {
		return nil, t.ScanErr
	}
	out := &dynamodb.ScanOutput{}
	for _, item := range t.Items {
		if in.Limit != nil && len(out.Items) == int(*in.Limit) {
			out.LastEvaluatedKey = map[string]types.AttributeValue{"id": item["id"], "category": item["category"]}
			break
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}
