package usecases_test

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
)

// --- Mock FeatureRepository ---

type mockFeatureRepo struct {
	upsertBatchFn  func(ctx context.Context, features []domain.Feature) error
	getByIDFn      func(ctx context.Context, id string) (*domain.Feature, error)
	getByIDsFn     func(ctx context.Context, ids []string) ([]domain.Feature, error)
	indexFn        func(ctx context.Context) ([]domain.FeatureSummary, error)
	findNearbyFn   func(ctx context.Context, p domain.GeoPoint, radius float64, limit int) ([]domain.NearbyFeature, error)
	findInBoundsFn func(ctx context.Context, b domain.Bounds, limit int) ([]domain.FeatureSummary, error)
}

func (m *mockFeatureRepo) UpsertBatch(ctx context.Context, features []domain.Feature) error {
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, features)
	}
	return nil
}

func (m *mockFeatureRepo) GetByID(ctx context.Context, id string) (*domain.Feature, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockFeatureRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Feature, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockFeatureRepo) Index(ctx context.Context) ([]domain.FeatureSummary, error) {
	if m.indexFn != nil {
		return m.indexFn(ctx)
	}
	return nil, nil
}

func (m *mockFeatureRepo) FindNearby(ctx context.Context, p domain.GeoPoint, radius float64, limit int) ([]domain.NearbyFeature, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, p, radius, limit)
	}
	return nil, nil
}

func (m *mockFeatureRepo) FindInBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.FeatureSummary, error) {
	if m.findInBoundsFn != nil {
		return m.findInBoundsFn(ctx, b, limit)
	}
	return nil, nil
}

// --- Mock ObservationRepository ---

type mockObservationRepo struct {
	upsertBatchFn    func(ctx context.Context, rows []domain.Observation) error
	listByFeaturesFn func(ctx context.Context, ids []string) ([]domain.Observation, error)
	listByFeatureFn  func(ctx context.Context, id string, offset, limit int) ([]domain.Observation, int, error)
	statsFn          func(ctx context.Context) (*domain.Stats, error)
}

func (m *mockObservationRepo) UpsertBatch(ctx context.Context, rows []domain.Observation) error {
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, rows)
	}
	return nil
}

func (m *mockObservationRepo) ListByFeatures(ctx context.Context, ids []string) ([]domain.Observation, error) {
	if m.listByFeaturesFn != nil {
		return m.listByFeaturesFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockObservationRepo) ListByFeature(ctx context.Context, id string, offset, limit int) ([]domain.Observation, int, error) {
	if m.listByFeatureFn != nil {
		return m.listByFeatureFn(ctx, id, offset, limit)
	}
	return nil, 0, nil
}

func (m *mockObservationRepo) Stats(ctx context.Context) (*domain.Stats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &domain.Stats{}, nil
}

// --- In-memory cache ---

var errCacheMiss = errors.New("cache miss")

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) DeletePrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	events []*domain.SyncEvent
	err    error
}

func (m *mockPublisher) PublishObservationsUpdated(_ context.Context, ev *domain.SyncEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}
