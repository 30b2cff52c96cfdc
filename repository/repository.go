package repository

import (
	"context"
	"errors"

	"github.com/yashrajoria/shoppingcart-service/models"
)

var (
	ErrNotFound      = errors.New("shopping cart item not found")
	ErrAlreadyExists = errors.New("shopping cart item already exists")
	ErrConflict      = errors.New("shopping cart item was modified concurrently")
)

// ShoppingCartRepository defines the data access operations for shopping cart items.
// Every keyed operation takes both the id and the category (partition key).
type ShoppingCartRepository interface {
	// List returns a single page of at most limit items.
	List(ctx context.Context, limit int) ([]models.ShoppingCartItem, error)
	Get(ctx context.Context, id, category string) (*models.ShoppingCartItem, error)
	// Create inserts the item and fails with ErrAlreadyExists if the key is taken.
	Create(ctx context.Context, item *models.ShoppingCartItem) error
	// Replace overwrites the item only if the stored version still equals item.Version.
	// On success item.Version holds the new version.
	Replace(ctx context.Context, item *models.ShoppingCartItem) error
	Delete(ctx context.Context, id, category string) error
}
