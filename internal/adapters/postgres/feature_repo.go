package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
)

// FeatureRepo implements ports.FeatureRepository with pgx.
type FeatureRepo struct {
	db *DB
}

// NewFeatureRepo creates a new FeatureRepo.
func NewFeatureRepo(db *DB) *FeatureRepo {
	return &FeatureRepo{db: db}
}

const featureColumns = `
	f.id, f.name, f.kind,
	ST_Y(f.location::geometry) AS lat,
	ST_X(f.location::geometry) AS lon,
	f.tags, f.created_at, f.updated_at`

// summarySelect joins observation counts onto features. Callers append the
// WHERE, GROUP BY and ORDER BY clauses.
const summarySelect = `
	SELECT ` + featureColumns + `,
	       COUNT(w.id) AS observation_count,
	       MAX(w.posted_at) AS last_observed_at
	FROM features f
	LEFT JOIN water_beta w ON w.feature_id = f.id`

// UpsertBatch inserts or updates features using pgx.Batch.
func (r *FeatureRepo) UpsertBatch(ctx context.Context, features []domain.Feature) error {
	batch := &pgx.Batch{}
	for _, f := range features {
		tags := f.Tags
		if tags == nil {
			tags = map[string]string{}
		}
		batch.Queue(`
			INSERT INTO features (id, name, kind, location, tags)
			VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, $6)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, kind = EXCLUDED.kind,
			    location = EXCLUDED.location, tags = EXCLUDED.tags,
			    updated_at = now()
		`, f.ID, f.Name, string(f.Kind), f.Location.Lon, f.Location.Lat, tags)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range features {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a feature, or domain.ErrNotFound.
func (r *FeatureRepo) GetByID(ctx context.Context, id string) (*domain.Feature, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+featureColumns+` FROM features f WHERE f.id = $1`, id)
	f, err := scanFeature(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetByIDs returns the features that exist among ids, ordered by name.
func (r *FeatureRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Feature, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+featureColumns+`
		FROM features f WHERE f.id = ANY($1)
		ORDER BY f.name, f.id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var features []domain.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

// Index returns every feature with its observation count, ordered by name.
func (r *FeatureRepo) Index(ctx context.Context) ([]domain.FeatureSummary, error) {
	rows, err := r.db.Pool.Query(ctx, summarySelect+`
		GROUP BY f.id
		ORDER BY f.name, f.id
	`)
	if err != nil {
		return nil, err
	}
	return collectSummaries(rows)
}

// FindInBounds returns features inside the box with their observation counts.
func (r *FeatureRepo) FindInBounds(ctx context.Context, b domain.Bounds, limit int) ([]domain.FeatureSummary, error) {
	rows, err := r.db.Pool.Query(ctx, summarySelect+`
		WHERE f.location::geometry && ST_MakeEnvelope($1, $2, $3, $4, 4326)
		GROUP BY f.id
		ORDER BY f.name, f.id
		LIMIT $5
	`, b.MinLon, b.MinLat, b.MaxLon, b.MaxLat, limit)
	if err != nil {
		return nil, err
	}
	return collectSummaries(rows)
}

// FindNearby returns features within radiusMeters using PostGIS ST_DWithin,
// nearest first.
func (r *FeatureRepo) FindNearby(ctx context.Context, p domain.GeoPoint, radiusMeters float64, limit int) ([]domain.NearbyFeature, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+featureColumns+`,
		       ST_Distance(f.location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS distance
		FROM features f
		WHERE ST_DWithin(f.location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance, f.id
		LIMIT $4
	`, p.Lon, p.Lat, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.NearbyFeature{}
	for rows.Next() {
		var n domain.NearbyFeature
		var kind string
		if err := rows.Scan(
			&n.ID, &n.Name, &kind,
			&n.Location.Lat, &n.Location.Lon,
			&n.Tags, &n.CreatedAt, &n.UpdatedAt,
			&n.DistanceMeters,
		); err != nil {
			return nil, err
		}
		n.Kind = domain.FeatureKind(kind)
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanFeature(row pgx.Row) (domain.Feature, error) {
	var f domain.Feature
	var kind string
	err := row.Scan(
		&f.ID, &f.Name, &kind,
		&f.Location.Lat, &f.Location.Lon,
		&f.Tags, &f.CreatedAt, &f.UpdatedAt,
	)
	f.Kind = domain.FeatureKind(kind)
	return f, err
}

func collectSummaries(rows pgx.Rows) ([]domain.FeatureSummary, error) {
	defer rows.Close()

	out := []domain.FeatureSummary{}
	for rows.Next() {
		var s domain.FeatureSummary
		var kind string
		if err := rows.Scan(
			&s.ID, &s.Name, &kind,
			&s.Location.Lat, &s.Location.Lon,
			&s.Tags, &s.CreatedAt, &s.UpdatedAt,
			&s.ObservationCount, &s.LastObservedAt,
		); err != nil {
			return nil, err
		}
		s.Kind = domain.FeatureKind(kind)
		out = append(out, s)
	}
	return out, rows.Err()
}
