package models

import (
	"time"
)

// ShoppingCartItem is a single line on the shopping list. Category is the
// partition key of the backing store, so (ID, Category) addresses an item.
type ShoppingCartItem struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	ItemName  string    `json:"itemName"`
	Collected bool      `json:"collected"`
	Created   time.Time `json:"created"`
	// Version is bumped on every write and used as the concurrency token for updates.
	Version int64 `json:"-"`
}

// CreateShoppingCartItem is the payload for POST /shoppingcartitem
type CreateShoppingCartItem struct {
	ItemName string `json:"itemName" binding:"required"`
	Category string `json:"category" binding:"required"`
}

// UpdateShoppingCartItem is the payload for PUT /shoppingcartitem/:id/:category.
// Collected is a pointer so a missing field can be told apart from false.
type UpdateShoppingCartItem struct {
	Collected *bool `json:"collected" binding:"required"`
}

// ShoppingCartItemEvent is published to SNS whenever an item is created, updated or deleted.
type ShoppingCartItemEvent struct {
	EventType string            `json:"event_type"`
	Item      *ShoppingCartItem `json:"item,omitempty"`
	ItemID    string            `json:"item_id"`
	Category  string            `json:"category"`
	Timestamp time.Time         `json:"timestamp"`
}

const (
	EventItemCreated = "shopping_cart_item.created"
	EventItemUpdated = "shopping_cart_item.updated"
	EventItemDeleted = "shopping_cart_item.deleted"
)
