package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/shoppingcart-service/models"
	"github.com/yashrajoria/shoppingcart-service/repository"
)

type sliceSource struct {
	items      []models.ShoppingCartItem
	decodeErrs int
}

func (s *sliceSource) Walk(_ context.Context, _ int32, fn func(models.ShoppingCartItem) error, onDecodeErr func(error)) error {
	for i := 0; i < s.decodeErrs; i++ {
		onDecodeErr(errors.New("cannot decode"))
	}
	for _, it := range s.items {
		if err := fn(it); err != nil {
			return err
		}
	}
	return nil
}

type memTarget struct {
	repository.ShoppingCartRepository
	stored  map[string]models.ShoppingCartItem
	failFor string
}

func (m *memTarget) Create(_ context.Context, item *models.ShoppingCartItem) error {
	if item.ID == m.failFor {
		return errors.New("throughput exceeded")
	}
	if _, ok := m.stored[item.ID]; ok {
		return repository.ErrAlreadyExists
	}
	m.stored[item.ID] = *item
	return nil
}

func TestMigrate(t *testing.T) {
	target := &memTarget{
		stored:  map[string]models.ShoppingCartItem{"b2": {ID: "b2", Category: "Bakery"}},
		failFor: "c3",
	}
	source := &sliceSource{
		items: []models.ShoppingCartItem{
			{ID: "a1", Category: "Dairy", ItemName: "Milk"},
			{ID: "b2", Category: "Bakery", ItemName: "Bread"},
			{ID: "c3", Category: "Produce", ItemName: "Apples"},
			{Category: "Produce", ItemName: "Pears"},
		},
		decodeErrs: 1,
	}

	stats, err := migrate(context.Background(), source, target)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Migrated)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2, stats.Failed)

	milk := target.stored["a1"]
	assert.Equal(t, int64(1), milk.Version)
	assert.False(t, milk.Created.IsZero())
	assert.Len(t, target.stored, 3, "the item without an id gets a fresh one")
}

func TestRun_ConnectFailureIsReturned(t *testing.T) {
	stats, err := run(context.Background(), "bogus://localhost", "ShoppingCartItems", "Items", "ShoppingCartItems", false)

	require.Error(t, err)
	assert.ErrorContains(t, err, "mongo connect")
	assert.Zero(t, stats.Migrated)
}
