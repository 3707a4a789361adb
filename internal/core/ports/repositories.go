package ports

import (
	"context"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
)

// FeatureRepository persists spatial features.
type FeatureRepository interface {
	UpsertBatch(ctx context.Context, features []domain.Feature) error
	GetByID(ctx context.Context, id string) (*domain.Feature, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Feature, error)
	// Index returns every feature with its observation count, ordered by name.
	Index(ctx context.Context) ([]domain.FeatureSummary, error)
	// FindNearby returns features within radiusMeters of point, nearest first.
	// Topics are left empty; the caller attaches observations.
	FindNearby(ctx context.Context, point domain.GeoPoint, radiusMeters float64, limit int) ([]domain.NearbyFeature, error)
	FindInBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.FeatureSummary, error)
}

// ObservationRepository persists water beta rows.
type ObservationRepository interface {
	UpsertBatch(ctx context.Context, observations []domain.Observation) error
	// ListByFeatures returns rows ordered by feature id, posted_at descending, post id.
	ListByFeatures(ctx context.Context, featureIDs []string) ([]domain.Observation, error)
	// ListByFeature returns one page of rows for a feature and the total row count.
	ListByFeature(ctx context.Context, featureID string, offset, limit int) ([]domain.Observation, int, error)
	Stats(ctx context.Context) (*domain.Stats, error)
}
