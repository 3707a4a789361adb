package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
	"github.com/jacobh/howitt-sub000/internal/core/usecases"
)

var (
	dargo    = domain.GeoPoint{Lat: -37.457, Lon: 147.253}
	mtHotham = domain.GeoPoint{Lat: -36.977, Lon: 147.134}
)

func TestFeatureService_Nearby_GroupsWaterBeta(t *testing.T) {
	t1 := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	t0 := t1.Add(-48 * time.Hour)

	features := &mockFeatureRepo{
		findNearbyFn: func(ctx context.Context, p domain.GeoPoint, radius float64, limit int) ([]domain.NearbyFeature, error) {
			return []domain.NearbyFeature{
				{Feature: domain.Feature{ID: "tank-1", Name: "Dargo tank"}, DistanceMeters: 120},
				{Feature: domain.Feature{ID: "spring-2", Name: "Hotham spring"}, DistanceMeters: 900},
			}, nil
		},
	}
	observations := &mockObservationRepo{
		listByFeaturesFn: func(ctx context.Context, ids []string) ([]domain.Observation, error) {
			if len(ids) != 2 || ids[0] != "tank-1" || ids[1] != "spring-2" {
				t.Errorf("unexpected ids %v", ids)
			}
			return []domain.Observation{
				{FeatureID: "tank-1", TopicID: "t-9", TopicTitle: "Dargo loop", PostID: "p3", PostedAt: t1, Metadata: map[string]any{"status": "full"}},
				{FeatureID: "tank-1", TopicID: "t-4", TopicTitle: "Old thread", PostID: "p2", PostedAt: t0},
				{FeatureID: "tank-1", TopicID: "t-9", TopicTitle: "Dargo loop (edited)", PostID: "p1", PostedAt: t0, Metadata: map[string]any{"status": "empty"}},
			}, nil
		},
	}

	svc := usecases.NewFeatureService(features, observations, nil, usecases.DefaultLimits())
	got, err := svc.Nearby(context.Background(), dargo, 1000, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 features, got %d", len(got))
	}

	tank := got[0]
	if len(tank.Topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(tank.Topics))
	}
	if tank.Topics[0].TopicID != "t-9" || tank.Topics[1].TopicID != "t-4" {
		t.Errorf("topics out of first-seen order: %s, %s", tank.Topics[0].TopicID, tank.Topics[1].TopicID)
	}
	if tank.Topics[0].Title != "Dargo loop" {
		t.Errorf("expected title from first row, got %q", tank.Topics[0].Title)
	}
	if tank.Topics[0].Metadata["status"] != "full" {
		t.Errorf("expected metadata from first row, got %v", tank.Topics[0].Metadata)
	}
	if len(tank.Topics[0].Posts) != 2 {
		t.Errorf("expected 2 posts in t-9, got %d", len(tank.Topics[0].Posts))
	}

	spring := got[1]
	if spring.Topics == nil || len(spring.Topics) != 0 {
		t.Errorf("expected empty non-nil topics for feature without beta, got %v", spring.Topics)
	}
}

func TestFeatureService_Nearby_Clamps(t *testing.T) {
	var gotRadius float64
	var gotLimit int
	features := &mockFeatureRepo{
		findNearbyFn: func(ctx context.Context, p domain.GeoPoint, radius float64, limit int) ([]domain.NearbyFeature, error) {
			gotRadius, gotLimit = radius, limit
			return nil, nil
		},
	}

	svc := usecases.NewFeatureService(features, &mockObservationRepo{}, nil, usecases.DefaultLimits())

	if _, err := svc.Nearby(context.Background(), dargo, 1e9, 10000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotRadius != 100000 || gotLimit != 200 {
		t.Errorf("expected radius 100000 limit 200, got %g %d", gotRadius, gotLimit)
	}

	if _, err := svc.Nearby(context.Background(), dargo, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotRadius != 10000 || gotLimit != 50 {
		t.Errorf("expected defaults 10000/50, got %g %d", gotRadius, gotLimit)
	}
}

func TestFeatureService_Nearby_InvalidPoint(t *testing.T) {
	svc := usecases.NewFeatureService(&mockFeatureRepo{}, &mockObservationRepo{}, nil, usecases.DefaultLimits())
	_, err := svc.Nearby(context.Background(), domain.GeoPoint{Lat: 91}, 100, 1)
	if !errors.Is(err, domain.ErrMalformedPoint) {
		t.Fatalf("expected ErrMalformedPoint, got %v", err)
	}
}

func TestFeatureService_Nearby_Cached(t *testing.T) {
	calls := 0
	features := &mockFeatureRepo{
		findNearbyFn: func(ctx context.Context, p domain.GeoPoint, radius float64, limit int) ([]domain.NearbyFeature, error) {
			calls++
			return []domain.NearbyFeature{{Feature: domain.Feature{ID: "tank-1"}, DistanceMeters: 5}}, nil
		},
	}
	cache := newMemCache()
	svc := usecases.NewFeatureService(features, &mockObservationRepo{}, cache, usecases.DefaultLimits())

	for i := 0; i < 3; i++ {
		got, err := svc.Nearby(context.Background(), dargo, 500, 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].ID != "tank-1" {
			t.Fatalf("unexpected result %+v", got)
		}
	}
	if calls != 1 {
		t.Errorf("expected repo to be hit once, got %d", calls)
	}
	if _, ok := cache.data["features:nearby:147.25300:-37.45700:500:5"]; !ok {
		t.Errorf("expected rounded nearby key, have %v", cache.data)
	}
}

func TestFeatureService_Index_Cached(t *testing.T) {
	calls := 0
	features := &mockFeatureRepo{
		indexFn: func(ctx context.Context) ([]domain.FeatureSummary, error) {
			calls++
			return []domain.FeatureSummary{{Feature: domain.Feature{ID: "a"}, ObservationCount: 3}}, nil
		},
	}
	svc := usecases.NewFeatureService(features, &mockObservationRepo{}, newMemCache(), usecases.DefaultLimits())

	for i := 0; i < 2; i++ {
		got, err := svc.Index(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].ObservationCount != 3 {
			t.Fatalf("unexpected index %+v", got)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 repo call, got %d", calls)
	}
}

func TestFeatureService_Index_Error(t *testing.T) {
	boom := errors.New("boom")
	features := &mockFeatureRepo{
		indexFn: func(ctx context.Context) ([]domain.FeatureSummary, error) { return nil, boom },
	}
	svc := usecases.NewFeatureService(features, &mockObservationRepo{}, nil, usecases.DefaultLimits())
	if _, err := svc.Index(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestFeatureService_Extent(t *testing.T) {
	features := &mockFeatureRepo{
		getByIDsFn: func(ctx context.Context, ids []string) ([]domain.Feature, error) {
			return []domain.Feature{
				{ID: "a", Location: dargo},
				{ID: "b", Location: mtHotham},
			}, nil
		},
	}
	limits := usecases.DefaultLimits()
	limits.FitPadRatio = 0
	svc := usecases.NewFeatureService(features, &mockObservationRepo{}, nil, limits)

	b, err := svc.Extent(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.Bounds{MinLat: -37.457, MinLon: 147.134, MaxLat: -36.977, MaxLon: 147.253}
	if b != want {
		t.Errorf("expected %+v, got %+v", want, b)
	}
}

func TestFeatureService_Extent_AllFeatures(t *testing.T) {
	features := &mockFeatureRepo{
		indexFn: func(ctx context.Context) ([]domain.FeatureSummary, error) {
			return []domain.FeatureSummary{{Feature: domain.Feature{ID: "a", Location: dargo}}}, nil
		},
	}
	svc := usecases.NewFeatureService(features, &mockObservationRepo{}, nil, usecases.DefaultLimits())

	b, err := svc.Extent(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Contains(dargo) {
		t.Errorf("extent %+v does not contain the feature", b)
	}
	if lat, lon := b.Span(); lat < 0.01 || lon < 0.01 {
		t.Errorf("single point extent should be widened, got span %g x %g", lat, lon)
	}
}

func TestFeatureService_Extent_NotFound(t *testing.T) {
	svc := usecases.NewFeatureService(&mockFeatureRepo{}, &mockObservationRepo{}, nil, usecases.DefaultLimits())
	if _, err := svc.Extent(context.Background(), []string{"missing"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFeatureService_InBounds(t *testing.T) {
	var gotLimit int
	features := &mockFeatureRepo{
		findInBoundsFn: func(ctx context.Context, b domain.Bounds, limit int) ([]domain.FeatureSummary, error) {
			gotLimit = limit
			return []domain.FeatureSummary{{Feature: domain.Feature{ID: "a", Name: "A", Location: dargo}}}, nil
		},
	}
	svc := usecases.NewFeatureService(features, &mockObservationRepo{}, nil, usecases.DefaultLimits())

	layers, err := svc.Layers(context.Background(), domain.Bounds{MinLat: -38, MinLon: 147, MaxLat: -37, MaxLon: 148})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLimit != 500 {
		t.Errorf("expected layer cap 500, got %d", gotLimit)
	}
	if len(layers) != 1 || layers[0].ID != "a" || layers[0].Fingerprint == "" {
		t.Errorf("unexpected layers %+v", layers)
	}

	_, err = svc.InBounds(context.Background(), domain.Bounds{MinLat: 1, MaxLat: 0}, 10)
	if !errors.Is(err, domain.ErrInvalidBounds) {
		t.Errorf("expected ErrInvalidBounds, got %v", err)
	}
}

func TestFeatureService_Observations(t *testing.T) {
	features := &mockFeatureRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.Feature, error) {
			if id != "tank-1" {
				return nil, domain.ErrNotFound
			}
			return &domain.Feature{ID: id}, nil
		},
	}
	observations := &mockObservationRepo{
		listByFeatureFn: func(ctx context.Context, id string, offset, limit int) ([]domain.Observation, int, error) {
			if offset != 0 || limit != 50 {
				t.Errorf("expected offset 0 limit 50, got %d %d", offset, limit)
			}
			return []domain.Observation{{FeatureID: id, PostID: "p1"}}, 7, nil
		},
	}
	svc := usecases.NewFeatureService(features, observations, nil, usecases.DefaultLimits())

	rows, total, err := svc.Observations(context.Background(), "tank-1", -5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || total != 7 {
		t.Errorf("expected 1 row of 7, got %d of %d", len(rows), total)
	}

	if _, _, err := svc.Observations(context.Background(), "nope", 0, 10); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
