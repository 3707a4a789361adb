package domain

import (
	"errors"
	"fmt"
)

// Feed is a batch of features and observations to import.
type Feed struct {
	Features     []Feature     `json:"features"`
	Observations []Observation `json:"observations"`
}

// Validate checks the feed for problems and reports all of them at once.
// Observations may reference features already stored, so unknown feature ids
// are only rejected when known is non-nil and does not contain them.
func (f *Feed) Validate(known map[string]bool) error {
	var errs []error
	seen := make(map[string]bool, len(f.Features))

	for i, ft := range f.Features {
		switch {
		case ft.ID == "":
			errs = append(errs, fmt.Errorf("features[%d]: id is required", i))
		case seen[ft.ID]:
			errs = append(errs, fmt.Errorf("features[%d]: duplicate id %q", i, ft.ID))
		}
		seen[ft.ID] = true

		if ft.Name == "" {
			errs = append(errs, fmt.Errorf("features[%d]: name is required", i))
		}
		if ft.Kind != "" && !ft.Kind.Known() {
			errs = append(errs, fmt.Errorf("features[%d]: unknown kind %q", i, ft.Kind))
		}
		if !ft.Location.Valid() {
			errs = append(errs, fmt.Errorf("features[%d]: location %s out of range", i, ft.Location))
		}
	}

	for i, o := range f.Observations {
		if o.FeatureID == "" {
			errs = append(errs, fmt.Errorf("observations[%d]: feature_id is required", i))
		} else if known != nil && !seen[o.FeatureID] && !known[o.FeatureID] {
			errs = append(errs, fmt.Errorf("observations[%d]: unknown feature %q", i, o.FeatureID))
		}
		if o.TopicID == "" {
			errs = append(errs, fmt.Errorf("observations[%d]: topic_id is required", i))
		}
		if o.PostID == "" {
			errs = append(errs, fmt.Errorf("observations[%d]: post_id is required", i))
		}
		if o.PostedAt.IsZero() {
			errs = append(errs, fmt.Errorf("observations[%d]: posted_at is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidFeed, errors.Join(errs...))
	}
	return nil
}

// Normalize fills defaults in place: missing kinds become KindOther.
func (f *Feed) Normalize() {
	for i := range f.Features {
		if f.Features[i].Kind == "" {
			f.Features[i].Kind = KindOther
		}
	}
}

// FeatureIDs returns the ids of the features in the feed.
func (f *Feed) FeatureIDs() []string {
	ids := make([]string, 0, len(f.Features))
	for _, ft := range f.Features {
		ids = append(ids, ft.ID)
	}
	return ids
}
