package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
)

// ObservationRepo implements ports.ObservationRepository with pgx.
type ObservationRepo struct {
	db *DB
}

// NewObservationRepo creates a new ObservationRepo.
func NewObservationRepo(db *DB) *ObservationRepo {
	return &ObservationRepo{db: db}
}

const observationColumns = `
	id, feature_id, topic_id, topic_title, topic_url,
	post_id, author, posted_at, excerpt, metadata`

// UpsertBatch inserts or updates water beta rows, keyed by feature, topic and post.
func (r *ObservationRepo) UpsertBatch(ctx context.Context, observations []domain.Observation) error {
	batch := &pgx.Batch{}
	for _, o := range observations {
		meta := o.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		batch.Queue(`
			INSERT INTO water_beta (feature_id, topic_id, topic_title, topic_url, post_id, author, posted_at, excerpt, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (feature_id, topic_id, post_id) DO UPDATE
			SET topic_title = EXCLUDED.topic_title, topic_url = EXCLUDED.topic_url,
			    author = EXCLUDED.author, posted_at = EXCLUDED.posted_at,
			    excerpt = EXCLUDED.excerpt, metadata = EXCLUDED.metadata
		`, o.FeatureID, o.TopicID, o.TopicTitle, o.TopicURL, o.PostID, o.Author, o.PostedAt, o.Excerpt, meta)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range observations {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// ListByFeatures returns the rows for the given features ordered by feature,
// newest post first, then post id.
func (r *ObservationRepo) ListByFeatures(ctx context.Context, featureIDs []string) ([]domain.Observation, error) {
	if len(featureIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+observationColumns+`
		FROM water_beta
		WHERE feature_id = ANY($1)
		ORDER BY feature_id, posted_at DESC, post_id
	`, featureIDs)
	if err != nil {
		return nil, err
	}
	return collectObservations(rows)
}

// ListByFeature returns one page of rows for a feature, newest first, and
// the total row count for the feature.
func (r *ObservationRepo) ListByFeature(ctx context.Context, featureID string, offset, limit int) ([]domain.Observation, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM water_beta WHERE feature_id = $1`, featureID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}
	if total == 0 || offset >= total {
		return []domain.Observation{}, total, nil
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+observationColumns+`
		FROM water_beta
		WHERE feature_id = $1
		ORDER BY posted_at DESC, post_id
		OFFSET $2 LIMIT $3
	`, featureID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectObservations(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Stats returns row counts across both tables.
func (r *ObservationRepo) Stats(ctx context.Context) (*domain.Stats, error) {
	var s domain.Stats
	err := r.db.Pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM features),
		       COUNT(*),
		       COUNT(DISTINCT topic_id),
		       MAX(posted_at)
		FROM water_beta
	`).Scan(&s.Features, &s.Observations, &s.Topics, &s.LastPostedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectObservations(rows pgx.Rows) ([]domain.Observation, error) {
	defer rows.Close()

	out := []domain.Observation{}
	for rows.Next() {
		var o domain.Observation
		if err := rows.Scan(
			&o.ID, &o.FeatureID, &o.TopicID, &o.TopicTitle, &o.TopicURL,
			&o.PostID, &o.Author, &o.PostedAt, &o.Excerpt, &o.Metadata,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
