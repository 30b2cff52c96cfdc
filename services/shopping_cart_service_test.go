package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/shoppingcart-service/models"
	awspkg "github.com/yashrajoria/shoppingcart-service/pkg/aws"
	"github.com/yashrajoria/shoppingcart-service/repository"
	"github.com/yashrajoria/shoppingcart-service/services"
)

// --- Mock Repository ---

type mockRepo struct {
	mu        sync.Mutex
	items     map[string]models.ShoppingCartItem
	listLimit int
	err       error
	// replaceHook runs before Replace and can simulate a concurrent writer.
	replaceHook func()
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[string]models.ShoppingCartItem)}
}

func key(id, category string) string { return category + "/" + id }

func (m *mockRepo) List(_ context.Context, limit int) ([]models.ShoppingCartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	result := make([]models.ShoppingCartItem, 0, len(m.items))
	for _, it := range m.items {
		if len(result) == limit {
			break
		}
		result = append(result, it)
	}
	return result, nil
}

func (m *mockRepo) Get(_ context.Context, id, category string) (*models.ShoppingCartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	it, ok := m.items[key(id, category)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &it, nil
}

func (m *mockRepo) Create(_ context.Context, item *models.ShoppingCartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.items[key(item.ID, item.Category)]; ok {
		return repository.ErrAlreadyExists
	}
	m.items[key(item.ID, item.Category)] = *item
	return nil
}

func (m *mockRepo) Replace(_ context.Context, item *models.ShoppingCartItem) error {
	if m.replaceHook != nil {
		m.replaceHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[key(item.ID, item.Category)]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != item.Version {
		return repository.ErrConflict
	}
	item.Version++
	m.items[key(item.ID, item.Category)] = *item
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key(id, category)]; !ok {
		return repository.ErrNotFound
	}
	delete(m.items, key(id, category))
	return nil
}

// --- Mock SNS Publisher ---

type publishedEvent struct {
	topicArn  string
	eventType string
	body      []byte
}

type mockSNSPublisher struct {
	published []publishedEvent
	err       error
}

func (m *mockSNSPublisher) Publish(_ context.Context, topicArn, eventType string, message []byte) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, publishedEvent{topicArn: topicArn, eventType: eventType, body: message})
	return nil
}

// --- Mock Metrics ---

type mockMetrics struct {
	counts map[string]int
}

func newMockMetrics() *mockMetrics { return &mockMetrics{counts: make(map[string]int)} }

func (m *mockMetrics) RecordCount(_ context.Context, metricName string, _ map[string]string) error {
	m.counts[metricName]++
	return nil
}

func (m *mockMetrics) RecordLatency(context.Context, string, time.Duration, map[string]string) error {
	return nil
}

func (m *mockMetrics) IsEnabled() bool { return true }

// --- Helpers ---

const testTopic = "arn:aws:sns:us-east-1:000000000000:shopping-cart-events"

var fixedNow = time.Date(2024, 5, 1, 10, 30, 0, 123456789, time.UTC)

func newTestService(repo repository.ShoppingCartRepository, sns *mockSNSPublisher, metrics *mockMetrics) services.ShoppingCartService {
	opts := services.Options{
		PageSize:    100,
		SNSTopicArn: testTopic,
		Now:         func() time.Time { return fixedNow },
	}
	if sns != nil {
		opts.Publisher = sns
	}
	if metrics != nil {
		opts.Metrics = metrics
	}
	return services.NewShoppingCartService(repo, opts)
}

func boolPtr(b bool) *bool { return &b }

// --- Tests ---

func TestService_CreateItem_Success(t *testing.T) {
	repo := newMockRepo()
	sns := &mockSNSPublisher{}
	metrics := newMockMetrics()
	svc := newTestService(repo, sns, metrics)

	item, err := svc.CreateItem(context.Background(), &models.CreateShoppingCartItem{ItemName: "Milk", Category: "Dairy"})
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "Milk", item.ItemName)
	assert.Equal(t, "Dairy", item.Category)
	assert.False(t, item.Collected)
	assert.Equal(t, fixedNow.Truncate(time.Millisecond), item.Created)
	assert.Equal(t, time.UTC, item.Created.Location())

	stored, err := repo.Get(context.Background(), item.ID, "Dairy")
	require.NoError(t, err)
	assert.Equal(t, item.ItemName, stored.ItemName)

	require.Len(t, sns.published, 1)
	assert.Equal(t, models.EventItemCreated, sns.published[0].eventType)
	assert.Equal(t, testTopic, sns.published[0].topicArn)
	assert.Equal(t, 1, metrics.counts[awspkg.MetricItemsCreated])
}

func TestService_CreateItem_UniqueIDs(t *testing.T) {
	svc := newTestService(newMockRepo(), nil, nil)

	a, err := svc.CreateItem(context.Background(), &models.CreateShoppingCartItem{ItemName: "Milk", Category: "Dairy"})
	require.NoError(t, err)
	b, err := svc.CreateItem(context.Background(), &models.CreateShoppingCartItem{ItemName: "Milk", Category: "Dairy"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestService_CreateItem_StoreError(t *testing.T) {
	repo := newMockRepo()
	repo.err = errors.New("connection refused")
	sns := &mockSNSPublisher{}
	svc := newTestService(repo, sns, nil)

	_, err := svc.CreateItem(context.Background(), &models.CreateShoppingCartItem{ItemName: "Milk", Category: "Dairy"})
	assert.Error(t, err)
	assert.Empty(t, sns.published)
}

func TestService_CreateItem_PublishFailureIgnored(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockSNSPublisher{err: errors.New("sns down")}, nil)

	item, err := svc.CreateItem(context.Background(), &models.CreateShoppingCartItem{ItemName: "Milk", Category: "Dairy"})
	assert.NoError(t, err)
	assert.NotNil(t, item)
}

func TestService_NoTopicSkipsPublish(t *testing.T) {
	sns := &mockSNSPublisher{}
	svc := services.NewShoppingCartService(newMockRepo(), services.Options{PageSize: 100, Publisher: sns})

	_, err := svc.CreateItem(context.Background(), &models.CreateShoppingCartItem{ItemName: "Milk", Category: "Dairy"})
	require.NoError(t, err)
	assert.Empty(t, sns.published)
}

func TestService_GetItem_NotFound(t *testing.T) {
	svc := newTestService(newMockRepo(), nil, nil)

	_, err := svc.GetItem(context.Background(), "missing", "Dairy")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestService_ListItems_UsesPageSize(t *testing.T) {
	repo := newMockRepo()
	svc := services.NewShoppingCartService(repo, services.Options{PageSize: 2})
	for i := 0; i < 5; i++ {
		_, err := svc.CreateItem(context.Background(), &models.CreateShoppingCartItem{ItemName: "Milk", Category: "Dairy"})
		require.NoError(t, err)
	}

	items, err := svc.ListItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, repo.listLimit)
}

func TestService_ListItems_Empty(t *testing.T) {
	svc := newTestService(newMockRepo(), nil, nil)

	items, err := svc.ListItems(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestService_UpdateItem_Success(t *testing.T) {
	repo := newMockRepo()
	sns := &mockSNSPublisher{}
	metrics := newMockMetrics()
	svc := newTestService(repo, sns, metrics)

	created, err := svc.CreateItem(context.Background(), &models.CreateShoppingCartItem{ItemName: "Milk", Category: "Dairy"})
	require.NoError(t, err)

	updated, err := svc.UpdateItem(context.Background(), created.ID, "Dairy", &models.UpdateShoppingCartItem{Collected: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, updated.Collected)
	assert.Equal(t, created.ItemName, updated.ItemName)
	assert.Equal(t, created.Created, updated.Created)

	stored, _ := repo.Get(context.Background(), created.ID, "Dairy")
	assert.True(t, stored.Collected)

	require.Len(t, sns.published, 2)
	assert.Equal(t, models.EventItemUpdated, sns.published[1].eventType)
	assert.Equal(t, 1, metrics.counts[awspkg.MetricItemsUpdated])
}

func TestService_UpdateItem_NotFound(t *testing.T) {
	svc := newTestService(newMockRepo(), nil, nil)

	_, err := svc.UpdateItem(context.Background(), "missing", "Dairy", &models.UpdateShoppingCartItem{Collected: boolPtr(true)})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestService_UpdateItem_ConcurrentWriteConflicts(t *testing.T) {
	repo := newMockRepo()
	metrics := newMockMetrics()
	svc := newTestService(repo, nil, metrics)

	created, err := svc.CreateItem(context.Background(), &models.CreateShoppingCartItem{ItemName: "Milk", Category: "Dairy"})
	require.NoError(t, err)

	// another writer lands between the read and the replace
	repo.replaceHook = func() {
		repo.mu.Lock()
		it := repo.items[key(created.ID, "Dairy")]
		it.Version++
		repo.items[key(created.ID, "Dairy")] = it
		repo.mu.Unlock()
		repo.replaceHook = nil
	}

	_, err = svc.UpdateItem(context.Background(), created.ID, "Dairy", &models.UpdateShoppingCartItem{Collected: boolPtr(true)})
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, 1, metrics.counts[awspkg.MetricUpdateConflicts])
}

func TestService_DeleteItem(t *testing.T) {
	repo := newMockRepo()
	sns := &mockSNSPublisher{}
	svc := newTestService(repo, sns, nil)

	created, err := svc.CreateItem(context.Background(), &models.CreateShoppingCartItem{ItemName: "Milk", Category: "Dairy"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteItem(context.Background(), created.ID, "Dairy"))

	_, err = svc.GetItem(context.Background(), created.ID, "Dairy")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.Len(t, sns.published, 2)
	var event models.ShoppingCartItemEvent
	require.NoError(t, json.Unmarshal(sns.published[1].body, &event))
	assert.Equal(t, models.EventItemDeleted, event.EventType)
	assert.Equal(t, created.ID, event.ItemID)
	assert.Nil(t, event.Item)
}

func TestService_DeleteItem_NotFound(t *testing.T) {
	sns := &mockSNSPublisher{}
	svc := newTestService(newMockRepo(), sns, nil)

	err := svc.DeleteItem(context.Background(), "missing", "Dairy")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, sns.published)
}
