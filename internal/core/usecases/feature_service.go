package usecases

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
	"github.com/jacobh/howitt-sub000/internal/core/ports"
	"github.com/jacobh/howitt-sub000/internal/mapview"
	"github.com/jacobh/howitt-sub000/internal/pkg/metrics"
	"github.com/jacobh/howitt-sub000/internal/pkg/telemetry"
)

// Limits bounds the queries FeatureService runs.
type Limits struct {
	DefaultRadius float64 // meters
	MaxRadius     float64
	DefaultLimit  int
	MaxLimit      int
	MaxLayers     int // cap for viewport queries
	CacheTTL      int // seconds; 0 disables caching
	FitPadRatio   float64
	FitMinSpanDeg float64
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		DefaultRadius: 10000,
		MaxRadius:     100000,
		DefaultLimit:  50,
		MaxLimit:      200,
		MaxLayers:     500,
		CacheTTL:      300,
		FitPadRatio:   0.1,
		FitMinSpanDeg: 0.01,
	}
}

// FeatureService answers the spatial feature queries.
type FeatureService struct {
	features     ports.FeatureRepository
	observations ports.ObservationRepository
	cache        ports.CacheService
	limits       Limits
}

// NewFeatureService creates a new FeatureService. cache may be nil.
func NewFeatureService(
	features ports.FeatureRepository,
	observations ports.ObservationRepository,
	cache ports.CacheService,
	limits Limits,
) *FeatureService {
	return &FeatureService{features: features, observations: observations, cache: cache, limits: limits}
}

// Limits returns the configured query limits.
func (s *FeatureService) Limits() Limits { return s.limits }

// ClampRadius replaces a missing radius with the default and caps it.
func (s *FeatureService) ClampRadius(r float64) float64 {
	if r <= 0 {
		return s.limits.DefaultRadius
	}
	if r > s.limits.MaxRadius {
		return s.limits.MaxRadius
	}
	return r
}

// ClampLimit replaces a missing limit with the default and caps it.
func (s *FeatureService) ClampLimit(n int) int {
	if n <= 0 {
		return s.limits.DefaultLimit
	}
	if n > s.limits.MaxLimit {
		return s.limits.MaxLimit
	}
	return n
}

// Index returns every feature with its observation count.
func (s *FeatureService) Index(ctx context.Context) ([]domain.FeatureSummary, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "FeatureService.Index")
	defer span.End()

	out, err := readThrough(ctx, s.cache, s.limits.CacheTTL, "index", indexKey, s.features.Index)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("feature index: %w", err)
	}
	span.SetAttributes(attribute.Int(telemetry.AttrResults, len(out)))
	return out, nil
}

// Nearby returns features within radiusMeters of point, nearest first, each
// with its water beta grouped by topic.
func (s *FeatureService) Nearby(ctx context.Context, point domain.GeoPoint, radiusMeters float64, limit int) ([]domain.NearbyFeature, error) {
	if !point.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrMalformedPoint, point)
	}
	radiusMeters = s.ClampRadius(radiusMeters)
	limit = s.ClampLimit(limit)

	ctx, span := telemetry.Tracer().Start(ctx, "FeatureService.Nearby")
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrPoint, point.String()),
		attribute.Float64(telemetry.AttrRadius, radiusMeters),
		attribute.Int(telemetry.AttrLimit, limit),
	)

	key := nearbyKey(point, radiusMeters, limit)
	out, err := readThrough(ctx, s.cache, s.limits.CacheTTL, "nearby", key, func(ctx context.Context) ([]domain.NearbyFeature, error) {
		return s.loadNearby(ctx, point, radiusMeters, limit)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int(telemetry.AttrResults, len(out)))
	metrics.NearbyResults.Observe(float64(len(out)))
	return out, nil
}

func (s *FeatureService) loadNearby(ctx context.Context, point domain.GeoPoint, radiusMeters float64, limit int) ([]domain.NearbyFeature, error) {
	features, err := s.features.FindNearby(ctx, point, radiusMeters, limit)
	if err != nil {
		return nil, fmt.Errorf("find nearby: %w", err)
	}
	if len(features) == 0 {
		return []domain.NearbyFeature{}, nil
	}

	ids := make([]string, len(features))
	for i, f := range features {
		ids[i] = f.ID
	}
	rows, err := s.observations.ListByFeatures(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list water beta: %w", err)
	}

	byFeature := make(map[string][]domain.Observation, len(features))
	for _, o := range rows {
		byFeature[o.FeatureID] = append(byFeature[o.FeatureID], o)
	}
	for i := range features {
		features[i].Topics = domain.GroupByTopic(byFeature[features[i].ID])
	}
	return features, nil
}

// GetByID returns a single feature.
func (s *FeatureService) GetByID(ctx context.Context, id string) (*domain.Feature, error) {
	return readThrough(ctx, s.cache, s.limits.CacheTTL, "get", featureKey(id), func(ctx context.Context) (*domain.Feature, error) {
		return s.features.GetByID(ctx, id)
	})
}

// InBounds returns features inside b, capped at the layer limit.
func (s *FeatureService) InBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.FeatureSummary, error) {
	if !b.Valid() {
		return nil, domain.ErrInvalidBounds
	}
	if limit <= 0 || limit > s.limits.MaxLayers {
		limit = s.limits.MaxLayers
	}

	ctx, span := telemetry.Tracer().Start(ctx, "FeatureService.InBounds")
	defer span.End()

	out, err := s.features.FindInBounds(ctx, b, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("find in bounds: %w", err)
	}
	span.SetAttributes(attribute.Int(telemetry.AttrResults, len(out)))
	return out, nil
}

// Layers returns the marker layers inside b. It has the mapview.Querier shape.
func (s *FeatureService) Layers(ctx context.Context, b domain.Bounds) ([]mapview.Layer, error) {
	features, err := s.InBounds(ctx, b, 0)
	if err != nil {
		return nil, err
	}
	layers := make([]mapview.Layer, len(features))
	for i, f := range features {
		layers[i] = mapview.MarkerLayer(f)
	}
	return layers, nil
}

// Extent returns the padded bounding box of the given features, or of every
// feature when ids is empty. It returns domain.ErrNotFound when none exist.
func (s *FeatureService) Extent(ctx context.Context, ids []string) (domain.Bounds, error) {
	var points []domain.GeoPoint
	if len(ids) == 0 {
		all, err := s.Index(ctx)
		if err != nil {
			return domain.Bounds{}, err
		}
		for _, f := range all {
			points = append(points, f.Location)
		}
	} else {
		found, err := s.features.GetByIDs(ctx, ids)
		if err != nil {
			return domain.Bounds{}, fmt.Errorf("get features: %w", err)
		}
		for _, f := range found {
			points = append(points, f.Location)
		}
	}

	b, ok := mapview.UnionPoints(points...)
	if !ok {
		return domain.Bounds{}, domain.ErrNotFound
	}
	return mapview.FitBounds(b, s.limits.FitPadRatio, s.limits.FitMinSpanDeg), nil
}

// Observations returns one page of water beta rows for a feature, newest
// first, and the total number of rows.
func (s *FeatureService) Observations(ctx context.Context, featureID string, offset, limit int) ([]domain.Observation, int, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "FeatureService.Observations")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrFeatureID, featureID))

	if _, err := s.GetByID(ctx, featureID); err != nil {
		return nil, 0, err
	}
	if offset < 0 {
		offset = 0
	}
	limit = s.ClampLimit(limit)

	rows, total, err := s.observations.ListByFeature(ctx, featureID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list water beta: %w", err)
	}
	return rows, total, nil
}

// Stats returns row counts.
func (s *FeatureService) Stats(ctx context.Context) (*domain.Stats, error) {
	return s.observations.Stats(ctx)
}
