package workflows

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
	"github.com/jacobh/howitt-sub000/internal/core/ports"
	"github.com/jacobh/howitt-sub000/internal/core/usecases"
)

// Activity names, as registered from SyncActivities' methods.
const (
	ActivityFetchFeed       = "FetchFeed"
	ActivityStoreFeed       = "StoreFeed"
	ActivityInvalidateCache = "InvalidateCache"
	ActivityPublishUpdate   = "PublishUpdate"
)

// errTypeInvalidFeed marks feeds that will never import, however often they
// are retried.
const errTypeInvalidFeed = "InvalidFeed"

// SyncActivities holds the activity implementations for the sync workflow.
type SyncActivities struct {
	Fetcher ports.FeedFetcher
	Sync    *usecases.SyncService
}

// FetchFeed downloads the upstream feed.
func (a *SyncActivities) FetchFeed(ctx context.Context, url string) (*domain.Feed, error) {
	f, err := a.Fetcher.Fetch(ctx, url)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidFeed) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), errTypeInvalidFeed, err)
		}
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	activity.GetLogger(ctx).Info("feed fetched", "features", len(f.Features), "observations", len(f.Observations))
	return f, nil
}

// StoreFeed validates and upserts the feed.
func (a *SyncActivities) StoreFeed(ctx context.Context, feed *domain.Feed, source string) (*domain.SyncEvent, error) {
	ev, err := a.Sync.Store(ctx, feed, source)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidFeed) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), errTypeInvalidFeed, err)
		}
		return nil, fmt.Errorf("store feed: %w", err)
	}
	return ev, nil
}

// InvalidateCache drops cached feature queries.
func (a *SyncActivities) InvalidateCache(ctx context.Context) (int, error) {
	return a.Sync.InvalidateCache(ctx)
}

// PublishUpdate announces the import to API replicas.
func (a *SyncActivities) PublishUpdate(ctx context.Context, ev *domain.SyncEvent) error {
	return a.Sync.Publish(ctx, ev)
}
