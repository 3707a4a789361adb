package domain

import (
	"time"
)

// FeatureKind classifies a spatial feature.
type FeatureKind string

const (
	KindWaterTank FeatureKind = "water_tank"
	KindSpring    FeatureKind = "spring"
	KindCreek     FeatureKind = "creek"
	KindHut       FeatureKind = "hut"
	KindCampsite  FeatureKind = "campsite"
	KindOther     FeatureKind = "other"
)

// Known reports whether k is one of the defined kinds.
func (k FeatureKind) Known() bool {
	switch k {
	case KindWaterTank, KindSpring, KindCreek, KindHut, KindCampsite, KindOther:
		return true
	}
	return false
}

// Feature is a point on the map that riders report water conditions for
// (a tank, a spring, a hut with a rainwater tank, ...).
type Feature struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Kind      FeatureKind       `json:"kind"`
	Location  GeoPoint          `json:"location"`
	Tags      map[string]string `json:"tags,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// FeatureSummary is a feature with its observation count, as listed by the index.
type FeatureSummary struct {
	Feature
	ObservationCount int        `json:"observation_count"`
	LastObservedAt   *time.Time `json:"last_observed_at,omitempty"`
}

// NearbyFeature is a feature found by a radius query, annotated with its
// water beta grouped by topic.
type NearbyFeature struct {
	Feature
	DistanceMeters float64      `json:"distance_m"`
	Topics         []TopicGroup `json:"water_beta"`
}

// Observation is one row of water beta: a single post in a discussion topic
// that mentions a feature.
type Observation struct {
	ID         int64          `json:"id,omitempty"`
	FeatureID  string         `json:"feature_id"`
	TopicID    string         `json:"topic_id"`
	TopicTitle string         `json:"topic_title"`
	TopicURL   string         `json:"topic_url,omitempty"`
	PostID     string         `json:"post_id"`
	Author     string         `json:"author,omitempty"`
	PostedAt   time.Time      `json:"posted_at"`
	Excerpt    string         `json:"excerpt,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TopicGroup is the water beta for one topic. Title, URL, metadata and
// LatestPostedAt come from the first row seen for the topic.
type TopicGroup struct {
	TopicID        string         `json:"topic_id"`
	Title          string         `json:"title"`
	URL            string         `json:"url,omitempty"`
	LatestPostedAt time.Time      `json:"latest_posted_at"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Posts          []Post         `json:"posts"`
}

// Post is a single observation inside a TopicGroup.
type Post struct {
	PostID   string    `json:"post_id"`
	Author   string    `json:"author,omitempty"`
	PostedAt time.Time `json:"posted_at"`
	Excerpt  string    `json:"excerpt,omitempty"`
}

// GroupByTopic groups rows by topic id, keeping the order in which topics
// first appear. Callers pass rows newest first so the first row of a topic is
// its most recent post.
func GroupByTopic(rows []Observation) []TopicGroup {
	if len(rows) == 0 {
		return []TopicGroup{}
	}

	index := make(map[string]int)
	groups := make([]TopicGroup, 0)
	for _, o := range rows {
		i, ok := index[o.TopicID]
		if !ok {
			i = len(groups)
			index[o.TopicID] = i
			groups = append(groups, TopicGroup{
				TopicID:        o.TopicID,
				Title:          o.TopicTitle,
				URL:            o.TopicURL,
				LatestPostedAt: o.PostedAt,
				Metadata:       o.Metadata,
			})
		}
		groups[i].Posts = append(groups[i].Posts, Post{
			PostID:   o.PostID,
			Author:   o.Author,
			PostedAt: o.PostedAt,
			Excerpt:  o.Excerpt,
		})
	}
	return groups
}

// SyncEvent is published after observations have been imported.
type SyncEvent struct {
	Source       string    `json:"source"`
	Features     int       `json:"features"`
	Observations int       `json:"observations"`
	At           time.Time `json:"at"`
}

// Stats holds row counts for the status endpoint.
type Stats struct {
	Features     int        `json:"features"`
	Observations int        `json:"observations"`
	Topics       int        `json:"topics"`
	LastPostedAt *time.Time `json:"last_posted_at,omitempty"`
}
