package usecases

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
	"github.com/jacobh/howitt-sub000/internal/core/ports"
	"github.com/jacobh/howitt-sub000/internal/pkg/logging"
	"github.com/jacobh/howitt-sub000/internal/pkg/metrics"
	"github.com/jacobh/howitt-sub000/internal/pkg/telemetry"
)

// SyncService imports features and water beta.
type SyncService struct {
	features     ports.FeatureRepository
	observations ports.ObservationRepository
	cache        ports.CacheService
	publisher    ports.EventPublisher
	now          func() time.Time
}

// NewSyncService creates a new SyncService. cache and publisher may be nil.
func NewSyncService(
	features ports.FeatureRepository,
	observations ports.ObservationRepository,
	cache ports.CacheService,
	publisher ports.EventPublisher,
) *SyncService {
	return &SyncService{
		features:     features,
		observations: observations,
		cache:        cache,
		publisher:    publisher,
		now:          time.Now,
	}
}

// Import stores feed, then drops cached queries and announces the change.
// Only storing can fail the import; invalidation and publishing are logged.
func (s *SyncService) Import(ctx context.Context, feed *domain.Feed, source string) (*domain.SyncEvent, error) {
	ev, err := s.Store(ctx, feed, source)
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx)
	if _, err := s.InvalidateCache(ctx); err != nil {
		logger.Warn("cache invalidation failed", "source", source, "error", err)
	}
	if err := s.Publish(ctx, ev); err != nil {
		logger.Warn("publish sync event failed", "source", source, "error", err)
	}
	return ev, nil
}

// Store validates feed and upserts its features, then its observations.
func (s *SyncService) Store(ctx context.Context, feed *domain.Feed, source string) (*domain.SyncEvent, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "SyncService.Store")
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrFeedSource, source),
		attribute.Int(telemetry.AttrObservations, len(feed.Observations)),
	)

	ev, err := s.store(ctx, feed, source)
	if err != nil {
		metrics.ImportErrors.WithLabelValues(source).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.FeaturesImported.WithLabelValues(source).Add(float64(ev.Features))
	metrics.ObservationsImported.WithLabelValues(source).Add(float64(ev.Observations))
	logging.FromContext(ctx).Info("feed imported",
		"source", source,
		"features", ev.Features,
		"observations", ev.Observations,
	)
	return ev, nil
}

func (s *SyncService) store(ctx context.Context, feed *domain.Feed, source string) (*domain.SyncEvent, error) {
	feed.Normalize()

	known, err := s.storedFeatures(ctx, feed)
	if err != nil {
		return nil, err
	}
	if err := feed.Validate(known); err != nil {
		return nil, err
	}

	if len(feed.Features) > 0 {
		if err := s.features.UpsertBatch(ctx, feed.Features); err != nil {
			return nil, fmt.Errorf("upsert features: %w", err)
		}
	}
	if len(feed.Observations) > 0 {
		if err := s.observations.UpsertBatch(ctx, feed.Observations); err != nil {
			return nil, fmt.Errorf("upsert observations: %w", err)
		}
	}

	return &domain.SyncEvent{
		Source:       source,
		Features:     len(feed.Features),
		Observations: len(feed.Observations),
		At:           s.now().UTC(),
	}, nil
}

// storedFeatures looks up the features observations refer to that the feed
// itself does not carry.
func (s *SyncService) storedFeatures(ctx context.Context, feed *domain.Feed) (map[string]bool, error) {
	inFeed := make(map[string]bool, len(feed.Features))
	for _, f := range feed.Features {
		inFeed[f.ID] = true
	}

	var missing []string
	seen := make(map[string]bool)
	for _, o := range feed.Observations {
		if o.FeatureID == "" || inFeed[o.FeatureID] || seen[o.FeatureID] {
			continue
		}
		seen[o.FeatureID] = true
		missing = append(missing, o.FeatureID)
	}

	known := make(map[string]bool, len(missing))
	if len(missing) == 0 {
		return known, nil
	}
	stored, err := s.features.GetByIDs(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("look up features: %w", err)
	}
	for _, f := range stored {
		known[f.ID] = true
	}
	return known, nil
}

// InvalidateCache drops every cached feature query and returns how many keys
// were removed.
func (s *SyncService) InvalidateCache(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	n, err := s.cache.DeletePrefix(ctx, cachePrefix)
	metrics.CacheInvalidations.Add(float64(n))
	if err != nil {
		return n, fmt.Errorf("invalidate cache: %w", err)
	}
	return n, nil
}

// Publish announces an import to subscribers.
func (s *SyncService) Publish(ctx context.Context, ev *domain.SyncEvent) error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishObservationsUpdated(ctx, ev); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
