package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/yashrajoria/shoppingcart-service/database"
	"github.com/yashrajoria/shoppingcart-service/models"
	awspkg "github.com/yashrajoria/shoppingcart-service/pkg/aws"
	ddbpkg "github.com/yashrajoria/shoppingcart-service/pkg/dynamodb"
	"github.com/yashrajoria/shoppingcart-service/repository"
	"go.uber.org/zap"
)

func main() {
	var mongoURI, dbName, collection, table string
	var createTable bool
	flag.StringVar(&mongoURI, "mongo", os.Getenv("MONGO_DB_URL"), "MongoDB URI")
	flag.StringVar(&dbName, "db", getEnv("MONGO_DB_NAME", "ShoppingCartItems"), "MongoDB database name")
	flag.StringVar(&collection, "collection", getEnv("MONGO_COLLECTION", "Items"), "MongoDB collection name")
	flag.StringVar(&table, "table", getEnv("DDB_TABLE_SHOPPING_CART_ITEMS", "ShoppingCartItems"), "DynamoDB table name")
	flag.BoolVar(&createTable, "create-table", false, "create the DynamoDB table if it does not exist")
	flag.Parse()

	if mongoURI == "" {
		log.Fatal("MONGO_DB_URL must be set or provided via -mongo")
	}

	stats, err := run(context.Background(), mongoURI, dbName, collection, table, createTable)
	if err != nil {
		log.Fatalf("migration aborted after %d items: %v", stats.Migrated, err)
	}
	fmt.Printf("Migration complete. migrated=%d skipped=%d failed=%d\n", stats.Migrated, stats.Skipped, stats.Failed)
}

// run owns every connection it opens so they are closed before main exits.
func run(ctx context.Context, mongoURI, dbName, collection, table string, createTable bool) (migrationStats, error) {
	mclient, err := database.ConnectMongo(ctx, mongoURI, zap.NewNop())
	if err != nil {
		return migrationStats{}, fmt.Errorf("mongo connect: %w", err)
	}
	defer func() {
		if err := database.Disconnect(mclient, zap.NewNop()); err != nil {
			log.Printf("mongo disconnect: %v", err)
		}
	}()

	source := repository.NewMongoShoppingCartRepository(mclient.Database(dbName).Collection(collection))

	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		return migrationStats{}, fmt.Errorf("aws config: %w", err)
	}
	ddbClient := ddbpkg.NewClientFromConfig(awsCfg)
	if createTable {
		if _, err := ddbpkg.EnsureTable(ctx, ddbClient, table); err != nil {
			return migrationStats{}, fmt.Errorf("ensure table: %w", err)
		}
	}
	target := repository.NewDynamoShoppingCartRepository(ddbClient, table)

	return migrate(ctx, source, target)
}

type itemSource interface {
	Walk(ctx context.Context, batchSize int32, fn func(models.ShoppingCartItem) error, onDecodeErr func(error)) error
}

type migrationStats struct {
	Migrated int
	Skipped  int // already present in the target
	Failed   int
}

// migrate copies every source item into target. Writes are insert-only so a
// rerun skips what an earlier run already copied.
func migrate(ctx context.Context, source itemSource, target repository.ShoppingCartRepository) (migrationStats, error) {
	var stats migrationStats

	err := source.Walk(ctx, 500, func(item models.ShoppingCartItem) error {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.Created.IsZero() {
			item.Created = time.Now().UTC().Truncate(time.Millisecond)
		}
		if item.Version == 0 {
			item.Version = 1
		}

		if err := target.Create(ctx, &item); err != nil {
			if errors.Is(err, repository.ErrAlreadyExists) {
				stats.Skipped++
				return nil
			}
			log.Printf("failed to write item %s/%s to ddb: %v", item.Category, item.ID, err)
			stats.Failed++
			return nil
		}
		stats.Migrated++
		if stats.Migrated%100 == 0 {
			log.Printf("migrated %d items", stats.Migrated)
		}
		return nil
	}, func(err error) {
		log.Printf("decode error: %v", err)
		stats.Failed++
	})

	return stats, err
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
