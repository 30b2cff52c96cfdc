package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yashrajoria/shoppingcart-service/common/logger"
	"github.com/yashrajoria/shoppingcart-service/models"
	awspkg "github.com/yashrajoria/shoppingcart-service/pkg/aws"
	"github.com/yashrajoria/shoppingcart-service/repository"
	"go.uber.org/zap"
)

// ShoppingCartService defines the shopping cart item operations. Each one maps
// to a single store operation; repository sentinel errors are passed through
// unwrapped so callers can match them with errors.Is.
type ShoppingCartService interface {
	ListItems(ctx context.Context) ([]models.ShoppingCartItem, error)
	GetItem(ctx context.Context, id, category string) (*models.ShoppingCartItem, error)
	CreateItem(ctx context.Context, req *models.CreateShoppingCartItem) (*models.ShoppingCartItem, error)
	UpdateItem(ctx context.Context, id, category string, req *models.UpdateShoppingCartItem) (*models.ShoppingCartItem, error)
	DeleteItem(ctx context.Context, id, category string) error
}

// Options carries the optional collaborators of the service.
type Options struct {
	PageSize    int
	Metrics     awspkg.MetricsRecorder
	Publisher   awspkg.SNSPublisher
	SNSTopicArn string
	// Now is overridable in tests.
	Now func() time.Time
}

type shoppingCartService struct {
	repo        repository.ShoppingCartRepository
	pageSize    int
	metrics     awspkg.MetricsRecorder
	publisher   awspkg.SNSPublisher
	snsTopicArn string
	now         func() time.Time
}

// NewShoppingCartService creates a new ShoppingCartService
func NewShoppingCartService(repo repository.ShoppingCartRepository, opts Options) ShoppingCartService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &shoppingCartService{
		repo:        repo,
		pageSize:    opts.PageSize,
		metrics:     opts.Metrics,
		publisher:   opts.Publisher,
		snsTopicArn: opts.SNSTopicArn,
		now:         opts.Now,
	}
}

func (s *shoppingCartService) ListItems(ctx context.Context) ([]models.ShoppingCartItem, error) {
	items, err := s.repo.List(ctx, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

func (s *shoppingCartService) GetItem(ctx context.Context, id, category string) (*models.ShoppingCartItem, error) {
	return s.repo.Get(ctx, id, category)
}

func (s *shoppingCartService) CreateItem(ctx context.Context, req *models.CreateShoppingCartItem) (*models.ShoppingCartItem, error) {
	item := &models.ShoppingCartItem{
		ID:        uuid.NewString(),
		Category:  req.Category,
		ItemName:  req.ItemName,
		Collected: false,
		// Millisecond precision survives every store round trip unchanged.
		Created: s.now().UTC().Truncate(time.Millisecond),
		Version: 1,
	}

	if err := s.repo.Create(ctx, item); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.recordCount(ctx, awspkg.MetricItemsCreated, item.Category)
	s.publish(ctx, models.EventItemCreated, item.ID, item.Category, item)
	return item, nil
}

// UpdateItem is a read-modify-write guarded by the item version; a concurrent
// write between the read and the replace yields repository.ErrConflict.
func (s *shoppingCartService) UpdateItem(ctx context.Context, id, category string, req *models.UpdateShoppingCartItem) (*models.ShoppingCartItem, error) {
	item, err := s.repo.Get(ctx, id, category)
	if err != nil {
		return nil, err
	}

	item.Collected = *req.Collected
	if err := s.repo.Replace(ctx, item); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.recordCount(ctx, awspkg.MetricUpdateConflicts, category)
			return nil, err
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	s.recordCount(ctx, awspkg.MetricItemsUpdated, category)
	s.publish(ctx, models.EventItemUpdated, item.ID, item.Category, item)
	return item, nil
}

func (s *shoppingCartService) DeleteItem(ctx context.Context, id, category string) error {
	if err := s.repo.Delete(ctx, id, category); err != nil {
		return err
	}

	s.recordCount(ctx, awspkg.MetricItemsDeleted, category)
	s.publish(ctx, models.EventItemDeleted, id, category, nil)
	return nil
}

func (s *shoppingCartService) recordCount(ctx context.Context, metric, category string) {
	if s.metrics == nil || !s.metrics.IsEnabled() {
		return
	}
	if err := s.metrics.RecordCount(ctx, metric, map[string]string{"Category": category}); err != nil {
		logger.Warn(ctx, "Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}

// publish sends an item lifecycle event. Failures are logged and never fail the request.
func (s *shoppingCartService) publish(ctx context.Context, eventType, id, category string, item *models.ShoppingCartItem) {
	if s.publisher == nil || s.snsTopicArn == "" {
		return
	}

	event := models.ShoppingCartItemEvent{
		EventType: eventType,
		Item:      item,
		ItemID:    id,
		Category:  category,
		Timestamp: s.now().UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		logger.Error(ctx, "Failed to marshal shopping cart event", err, zap.String("event_type", eventType))
		return
	}

	if err := s.publisher.Publish(ctx, s.snsTopicArn, eventType, body); err != nil {
		logger.Error(ctx, "Failed to publish shopping cart event", err,
			zap.String("event_type", eventType),
			zap.String("item_id", id),
		)
		return
	}

	logger.Debug(ctx, "Published shopping cart event", zap.String("event_type", eventType), zap.String("item_id", id))
}
