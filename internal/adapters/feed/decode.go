// Package feed reads water beta import feeds, either from a file or from the
// upstream HTTP feed.
package feed

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
)

// MaxFeedBytes caps how much of a feed is read.
const MaxFeedBytes = 64 << 20

type document struct {
	Type         string               `json:"type"`
	Features     json.RawMessage      `json:"features"`
	Observations []domain.Observation `json:"observations"`
}

// Decode reads a feed. Two shapes are accepted: the native
// {"features":[...],"observations":[...]} document, and a GeoJSON
// FeatureCollection of Point features, optionally carrying observations as a
// foreign "observations" member.
func Decode(r io.Reader) (*domain.Feed, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFeedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	if len(data) > MaxFeedBytes {
		return nil, fmt.Errorf("%w: larger than %d bytes", domain.ErrInvalidFeed, MaxFeedBytes)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidFeed, err)
	}

	out := &domain.Feed{Observations: doc.Observations}
	if len(doc.Features) == 0 {
		return out, nil
	}

	if doc.Type == "FeatureCollection" {
		var gfs []domain.GeoFeature
		if err := json.Unmarshal(doc.Features, &gfs); err != nil {
			return nil, fmt.Errorf("%w: features: %v", domain.ErrInvalidFeed, err)
		}
		for _, gf := range gfs {
			f, err := domain.FeatureFromGeoJSON(gf)
			if err != nil {
				return nil, err
			}
			out.Features = append(out.Features, f)
		}
		return out, nil
	}

	if err := json.Unmarshal(doc.Features, &out.Features); err != nil {
		return nil, fmt.Errorf("%w: features: %v", domain.ErrInvalidFeed, err)
	}
	return out, nil
}
