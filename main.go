package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/shoppingcart-service/common/errors"
	"github.com/yashrajoria/shoppingcart-service/common/logger"
	"github.com/yashrajoria/shoppingcart-service/common/middleware"
	"github.com/yashrajoria/shoppingcart-service/controllers"
	"github.com/yashrajoria/shoppingcart-service/database"
	awspkg "github.com/yashrajoria/shoppingcart-service/pkg/aws"
	ddbpkg "github.com/yashrajoria/shoppingcart-service/pkg/dynamodb"
	"github.com/yashrajoria/shoppingcart-service/repository"
	"github.com/yashrajoria/shoppingcart-service/routes"
	"github.com/yashrajoria/shoppingcart-service/services"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const serviceName = "shoppingcart-service"

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		panic("config load failed: " + err.Error())
	}

	if err := logger.Initialize(cfg.AppEnv); err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Log.Sync() }()

	ctx := context.Background()

	// --- AWS setup ---
	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		logger.Log.Fatal("Failed to load AWS config", zap.Error(err))
	}

	if cfg.CloudWatchLogs {
		cwLogs, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.LogGroupName, serviceName)
		if err != nil {
			logger.Log.Warn("CloudWatch logs client init failed (non-fatal)", zap.Error(err))
		} else if err := logger.InitializeWithWriter(cfg.AppEnv, cwLogs); err != nil {
			logger.Log.Warn("CloudWatch log sink not attached", zap.Error(err))
		}
	}

	// --- Store setup ---
	var (
		repo        repository.ShoppingCartRepository
		mongoClient *mongo.Client
	)
	switch cfg.StoreDriver {
	case StoreMongo:
		mongoClient, err = database.ConnectMongo(ctx, cfg.MongoURL, logger.Log)
		if err != nil {
			logger.Log.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		mongoRepo := repository.NewMongoShoppingCartRepository(mongoClient.Database(cfg.MongoDB).Collection(cfg.MongoCollection))
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			logger.Log.Warn("Failed to ensure MongoDB indexes (non-fatal)", zap.Error(err))
		}
		repo = mongoRepo
	default:
		ddbClient := ddbpkg.NewClientFromConfig(awsCfg)
		if cfg.DDBCreateTable {
			created, err := ddbpkg.EnsureTable(ctx, ddbClient, cfg.DDBTable)
			if err != nil {
				logger.Log.Fatal("Failed to ensure DynamoDB table", zap.String("table", cfg.DDBTable), zap.Error(err))
			}
			if created {
				logger.Log.Info("Created DynamoDB table", zap.String("table", cfg.DDBTable))
			}
		}
		repo = repository.NewDynamoShoppingCartRepository(ddbClient, cfg.DDBTable)
	}

	// --- Service wiring ---
	metricsClient := awspkg.NewMetricsClient(awsCfg, "ShoppingCart", cfg.MetricsEnabled)

	var publisher awspkg.SNSPublisher
	if cfg.SNSTopicARN != "" {
		publisher = awspkg.NewSNSClient(awsCfg)
	} else {
		logger.Log.Info("SHOPPING_CART_SNS_TOPIC_ARN not set, item events disabled")
	}

	cartService := services.NewShoppingCartService(repo, services.Options{
		PageSize:    cfg.ListPageSize,
		Metrics:     metricsClient,
		Publisher:   publisher,
		SNSTopicArn: cfg.SNSTopicARN,
	})
	cartController := controllers.NewShoppingCartController(cartService)

	// --- HTTP router ---
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(logger.RequestID())
	r.Use(middleware.RequestLogger(logger.Log))
	if metricsClient.IsEnabled() {
		r.Use(middleware.MetricsMiddleware(metricsClient, serviceName))
	}
	r.Use(apperrors.Recovery())
	// after the logger and metrics so they observe the rendered status
	r.Use(apperrors.ErrorMiddleware())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	stopCleanup := make(chan struct{})
	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 10*time.Minute)
	limiter.StartCleanup(stopCleanup)
	r.Use(middleware.RateLimitMiddleware(limiter))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	routes.RegisterShoppingCartRoutes(r, cartController)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName})
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		logger.Log.Info("Shopping Cart Service starting",
			zap.String("port", cfg.Port),
			zap.String("store", cfg.StoreDriver),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Shopping Cart Service...")
	close(stopCleanup)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := database.Disconnect(mongoClient, logger.Log); err != nil {
		logger.Log.Error("MongoDB disconnect failed", zap.Error(err))
	}

	logger.Log.Info("Shopping Cart Service stopped gracefully")
}
