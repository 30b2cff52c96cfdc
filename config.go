package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	aws_pkg "github.com/yashrajoria/shoppingcart-service/pkg/aws"
)

const (
	StoreDynamoDB = "dynamodb"
	StoreMongo    = "mongo"
)

// Config holds all configuration for the shoppingcart-service.
type Config struct {
	Port   string // Service port (default: 8091)
	AppEnv string

	StoreDriver    string // dynamodb or mongo
	DDBTable       string
	DDBCreateTable bool // create the table on start (LocalStack/dev)

	MongoURL        string
	MongoDB         string
	MongoCollection string

	ListPageSize   int
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string

	// SNS topic for item lifecycle events; empty disables publishing
	SNSTopicARN string

	MetricsEnabled bool
	CloudWatchLogs bool
	LogGroupName   string
}

type secretLookup interface {
	Lookup(ctx context.Context, name, fallback string) string
}

// LoadConfig loads .env when present, reads environment variables into Config
// and applies the Secrets Manager override when AWS_USE_SECRETS=true.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := configFromEnv()
	if err != nil {
		return nil, err
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := aws_pkg.LoadAWSConfig(context.Background()); err == nil {
			applySecrets(context.Background(), cfg, aws_pkg.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFromEnv() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8091"),
		AppEnv:          getEnv("APP_ENV", "development"),
		StoreDriver:     strings.ToLower(getEnv("STORE_DRIVER", StoreDynamoDB)),
		DDBTable:        getEnv("DDB_TABLE_SHOPPING_CART_ITEMS", "ShoppingCartItems"),
		DDBCreateTable:  os.Getenv("DDB_CREATE_TABLE") == "true",
		MongoURL:        os.Getenv("MONGO_DB_URL"),
		MongoDB:         getEnv("MONGO_DB_NAME", "ShoppingCartItems"),
		MongoCollection: getEnv("MONGO_COLLECTION", "Items"),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "*")),
		SNSTopicARN:     os.Getenv("SHOPPING_CART_SNS_TOPIC_ARN"),
		MetricsEnabled:  os.Getenv("CLOUDWATCH_METRICS_ENABLED") == "true",
		CloudWatchLogs:  os.Getenv("CLOUDWATCH_LOGS_ENABLED") == "true",
		LogGroupName:    os.Getenv("CLOUDWATCH_LOG_GROUP"),
	}

	var err error
	if cfg.ListPageSize, err = strconv.Atoi(getEnv("LIST_PAGE_SIZE", "100")); err != nil {
		return nil, fmt.Errorf("invalid LIST_PAGE_SIZE: %w", err)
	}
	if cfg.RequestTimeout, err = time.ParseDuration(getEnv("REQUEST_TIMEOUT", "30s")); err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}
	if cfg.RateLimitRPS, err = strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "20"), 64); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	if cfg.RateLimitBurst, err = strconv.Atoi(getEnv("RATE_LIMIT_BURST", "50")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	return cfg, nil
}

// Override the Mongo connection string from Secrets Manager when running on AWS
func applySecrets(ctx context.Context, cfg *Config, sm secretLookup) {
	cfg.MongoURL = sm.Lookup(ctx, "shoppingcart/MONGO_DB_URL", cfg.MongoURL)
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDynamoDB:
		if c.DDBTable == "" {
			return fmt.Errorf("DDB_TABLE_SHOPPING_CART_ITEMS is required")
		}
	case StoreMongo:
		if c.MongoURL == "" {
			return fmt.Errorf("MONGO_DB_URL is required when STORE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.ListPageSize <= 0 {
		return fmt.Errorf("LIST_PAGE_SIZE must be positive, got %d", c.ListPageSize)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
