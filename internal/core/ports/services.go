package ports

import (
	"context"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishObservationsUpdated(ctx context.Context, event *domain.SyncEvent) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeObservationsUpdated(ctx context.Context, handler func(ctx context.Context, event *domain.SyncEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// FeedFetcher downloads an import feed from an upstream source.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (*domain.Feed, error)
}
