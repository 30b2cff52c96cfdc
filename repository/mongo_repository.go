package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yashrajoria/shoppingcart-service/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoShoppingCartRepository stores items in a MongoDB collection. The item id is
// the document _id and every keyed filter also matches on category.
type MongoShoppingCartRepository struct {
	collection *mongo.Collection
}

func NewMongoShoppingCartRepository(collection *mongo.Collection) *MongoShoppingCartRepository {
	return &MongoShoppingCartRepository{collection: collection}
}

type mongoShoppingCartItem struct {
	ID        string    `bson:"_id"`
	Category  string    `bson:"category"`
	ItemName  string    `bson:"itemName"`
	Collected bool      `bson:"collected"`
	Created   time.Time `bson:"created"`
	Version   int64     `bson:"version"`
}

func toMongo(item *models.ShoppingCartItem) mongoShoppingCartItem {
	return mongoShoppingCartItem{
		ID:        item.ID,
		Category:  item.Category,
		ItemName:  item.ItemName,
		Collected: item.Collected,
		Created:   item.Created.UTC(),
		Version:   item.Version,
	}
}

func (m mongoShoppingCartItem) toModel() models.ShoppingCartItem {
	return models.ShoppingCartItem{
		ID:        m.ID,
		Category:  m.Category,
		ItemName:  m.ItemName,
		Collected: m.Collected,
		Created:   m.Created.UTC(),
		Version:   m.Version,
	}
}

func keyFilter(id, category string) bson.M {
	return bson.M{"_id": id, "category": category}
}

// EnsureIndexes creates the category index used by keyed lookups.
func (r *MongoShoppingCartRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "category", Value: 1}, {Key: "_id", Value: 1}},
		Options: options.Index().SetName("category_id"),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoShoppingCartRepository) List(ctx context.Context, limit int) ([]models.ShoppingCartItem, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoShoppingCartItem
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}

	items := make([]models.ShoppingCartItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.toModel())
	}
	return items, nil
}

// Walk streams every item in the collection to fn in batches of batchSize.
// Documents that fail to decode are passed to onDecodeErr and skipped.
func (r *MongoShoppingCartRepository) Walk(ctx context.Context, batchSize int32, fn func(models.ShoppingCartItem) error, onDecodeErr func(error)) error {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetBatchSize(batchSize))
	if err != nil {
		return fmt.Errorf("failed to scan items: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc mongoShoppingCartItem
		if err := cursor.Decode(&doc); err != nil {
			if onDecodeErr != nil {
				onDecodeErr(err)
			}
			continue
		}
		if err := fn(doc.toModel()); err != nil {
			return err
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("cursor error: %w", err)
	}
	return nil
}

func (r *MongoShoppingCartRepository) Get(ctx context.Context, id, category string) (*models.ShoppingCartItem, error) {
	var doc mongoShoppingCartItem
	err := r.collection.FindOne(ctx, keyFilter(id, category)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	item := doc.toModel()
	return &item, nil
}

func (r *MongoShoppingCartRepository) Create(ctx context.Context, item *models.ShoppingCartItem) error {
	if _, err := r.collection.InsertOne(ctx, toMongo(item)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func (r *MongoShoppingCartRepository) Replace(ctx context.Context, item *models.ShoppingCartItem) error {
	expected := item.Version
	next := toMongo(item)
	next.Version = expected + 1

	filter := keyFilter(item.ID, item.Category)
	if expected == 0 {
		filter["version"] = bson.M{"$exists": false}
	} else {
		filter["version"] = expected
	}

	res, err := r.collection.ReplaceOne(ctx, filter, next)
	if err != nil {
		return fmt.Errorf("failed to replace item: %w", err)
	}
	if res.MatchedCount == 0 {
		// Tell a vanished item apart from a stale version.
		if _, err := r.Get(ctx, item.ID, item.Category); err != nil {
			return err
		}
		return ErrConflict
	}

	item.Version = next.Version
	return nil
}

func (r *MongoShoppingCartRepository) Delete(ctx context.Context, id, category string) error {
	res, err := r.collection.DeleteOne(ctx, keyFilter(id, category))
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
