package dynamodb

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTableAPI struct {
	exists    bool
	createErr error
	created   *dynamodb.CreateTableInput
	describes int
}

func (f *fakeTableAPI) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.describes++
	if !f.exists {
		return nil, &types.ResourceNotFoundException{Message: sdkaws.String("Requested resource not found")}
	}
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:   in.TableName,
		TableStatus: types.TableStatusActive,
	}}, nil
}

func (f *fakeTableAPI) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = in
	f.exists = true
	return &dynamodb.CreateTableOutput{}, nil
}

func TestEnsureTable_AlreadyExists(t *testing.T) {
	fake := &fakeTableAPI{exists: true}

	created, err := EnsureTable(context.Background(), fake, "ShoppingCartItems")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Nil(t, fake.created)
}

func TestEnsureTable_Creates(t *testing.T) {
	fake := &fakeTableAPI{}

	created, err := EnsureTable(context.Background(), fake, "ShoppingCartItems")
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, fake.created)

	assert.Equal(t, "ShoppingCartItems", *fake.created.TableName)
	assert.Equal(t, types.BillingModePayPerRequest, fake.created.BillingMode)
	require.Len(t, fake.created.KeySchema, 2)
	assert.Equal(t, "category", *fake.created.KeySchema[0].AttributeName)
	assert.Equal(t, types.KeyTypeHash, fake.created.KeySchema[0].KeyType)
	assert.Equal(t, "id", *fake.created.KeySchema[1].AttributeName)
	assert.Equal(t, types.KeyTypeRange, fake.created.KeySchema[1].KeyType)
	assert.GreaterOrEqual(t, fake.describes, 2, "waits for the table after creating it")
}

func TestEnsureTable_CreateRace(t *testing.T) {
	fake := &fakeTableAPI{createErr: &types.ResourceInUseException{Message: sdkaws.String("Table already exists")}}

	created, err := EnsureTable(context.Background(), fake, "ShoppingCartItems")
	assert.NoError(t, err)
	assert.False(t, created)
}

func TestEnsureTable_DescribeError(t *testing.T) {
	fake := &describeFails{err: errors.New("AccessDenied")}

	_, err := EnsureTable(context.Background(), fake, "ShoppingCartItems")
	assert.ErrorIs(t, err, fake.err)
}

type describeFails struct {
	fakeTableAPI
	err error
}

func (d *describeFails) DescribeTable(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return nil, d.err
}
