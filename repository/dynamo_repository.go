package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/yashrajoria/shoppingcart-service/models"
)

// DynamoDBAPI is the subset of *dynamodb.Client used by the repository.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoShoppingCartRepository stores items in a table keyed by
// category (partition key) and id (sort key).
type DynamoShoppingCartRepository struct {
	client DynamoDBAPI
	table  string
}

// NewDynamoShoppingCartRepository creates a DynamoDB backed shopping cart repository
func NewDynamoShoppingCartRepository(client DynamoDBAPI, table string) *DynamoShoppingCartRepository {
	return &DynamoShoppingCartRepository{client: client, table: table}
}

type ddbShoppingCartItem struct {
	ID        string    `dynamodbav:"id"`
	Category  string    `dynamodbav:"category"`
	ItemName  string    `dynamodbav:"itemName"`
	Collected bool      `dynamodbav:"collected"`
	Created   time.Time `dynamodbav:"created"`
	Version   int64     `dynamodbav:"version"`
}

func toDDB(item *models.ShoppingCartItem) ddbShoppingCartItem {
	return ddbShoppingCartItem{
		ID:        item.ID,
		Category:  item.Category,
		ItemName:  item.ItemName,
		Collected: item.Collected,
		Created:   item.Created.UTC(),
		Version:   item.Version,
	}
}

// created is stored as an RFC3339Nano string; a value that does not parse
// fails the unmarshal instead of reading back as the zero time.
func (d ddbShoppingCartItem) toModel() models.ShoppingCartItem {
	return models.ShoppingCartItem{
		ID:        d.ID,
		Category:  d.Category,
		ItemName:  d.ItemName,
		Collected: d.Collected,
		Created:   d.Created,
		Version:   d.Version,
	}
}

func (r *DynamoShoppingCartRepository) key(id, category string) (map[string]types.AttributeValue, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"category": category, "id": id})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	return key, nil
}

func (r *DynamoShoppingCartRepository) List(ctx context.Context, limit int) ([]models.ShoppingCartItem, error) {
	input := &dynamodb.ScanInput{TableName: &r.table}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	// Single page only; LastEvaluatedKey is not followed.
	out, err := r.client.Scan(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("dynamodb Scan failed: %w", err)
	}

	items := make([]models.ShoppingCartItem, 0, len(out.Items))
	for _, raw := range out.Items {
		var di ddbShoppingCartItem
		if err := attributevalue.UnmarshalMap(raw, &di); err != nil {
			return nil, fmt.Errorf("unmarshal item: %w", err)
		}
		items = append(items, di.toModel())
	}
	return items, nil
}

func (r *DynamoShoppingCartRepository) Get(ctx context.Context, id, category string) (*models.ShoppingCartItem, error) {
	key, err := r.key(id, category)
	if err != nil {
		return nil, err
	}

	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &r.table,
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var di ddbShoppingCartItem
	if err := attributevalue.UnmarshalMap(out.Item, &di); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	item := di.toModel()
	return &item, nil
}

func (r *DynamoShoppingCartRepository) Create(ctx context.Context, item *models.ShoppingCartItem) error {
	av, err := attributevalue.MarshalMap(toDDB(item))
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	condExpr := "attribute_not_exists(id)"
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &r.table,
		Item:                av,
		ConditionExpression: &condExpr,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

func (r *DynamoShoppingCartRepository) Replace(ctx context.Context, item *models.ShoppingCartItem) error {
	expected := item.Version
	next := toDDB(item)
	next.Version = expected + 1

	av, err := attributevalue.MarshalMap(next)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	// Items written before versioning have no version attribute at all.
	condExpr := "attribute_exists(id) AND #version = :expected"
	exprVals := map[string]types.AttributeValue{}
	if expected == 0 {
		condExpr = "attribute_exists(id) AND attribute_not_exists(#version)"
	} else {
		expectedAV, err := attributevalue.Marshal(expected)
		if err != nil {
			return fmt.Errorf("marshal version: %w", err)
		}
		exprVals[":expected"] = expectedAV
	}

	input := &dynamodb.PutItemInput{
		TableName:                           &r.table,
		Item:                                av,
		ConditionExpression:                 &condExpr,
		ExpressionAttributeNames:            map[string]string{"#version": "version"},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}
	if len(exprVals) > 0 {
		input.ExpressionAttributeValues = exprVals
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return ErrNotFound
			}
			return ErrConflict
		}
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}

	item.Version = next.Version
	return nil
}

func (r *DynamoShoppingCartRepository) Delete(ctx context.Context, id, category string) error {
	key, err := r.key(id, category)
	if err != nil {
		return err
	}

	condExpr := "attribute_exists(id)"
	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           &r.table,
		Key:                 key,
		ConditionExpression: &condExpr,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("dynamodb DeleteItem failed: %w", err)
	}
	return nil
}
