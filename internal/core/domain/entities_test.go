package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
)

func TestGroupByTopic(t *testing.T) {
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := []domain.Observation{
		{TopicID: "t1", TopicTitle: "Dargo High Plains Rd", TopicURL: "https://example.org/t1", PostID: "p3", PostedAt: base.Add(48 * time.Hour), Metadata: map[string]any{"status": "full"}},
		{TopicID: "t2", TopicTitle: "Summer loop", PostID: "p9", PostedAt: base.Add(24 * time.Hour)},
		{TopicID: "t1", TopicTitle: "renamed later", PostID: "p1", PostedAt: base, Metadata: map[string]any{"status": "empty"}, Author: "alice"},
	}

	groups := domain.GroupByTopic(rows)
	require.Len(t, groups, 2)

	t1 := groups[0]
	assert.Equal(t, "t1", t1.TopicID)
	assert.Equal(t, "Dargo High Plains Rd", t1.Title)
	assert.Equal(t, "https://example.org/t1", t1.URL)
	assert.Equal(t, base.Add(48*time.Hour), t1.LatestPostedAt)
	assert.Equal(t, map[string]any{"status": "full"}, t1.Metadata)
	require.Len(t, t1.Posts, 2)
	assert.Equal(t, "p3", t1.Posts[0].PostID)
	assert.Equal(t, "p1", t1.Posts[1].PostID)
	assert.Equal(t, "alice", t1.Posts[1].Author)

	assert.Equal(t, "t2", groups[1].TopicID)
	assert.Len(t, groups[1].Posts, 1)
}

func TestGroupByTopic_Empty(t *testing.T) {
	groups := domain.GroupByTopic(nil)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)
}

func TestFeatureKind_Known(t *testing.T) {
	assert.True(t, domain.KindSpring.Known())
	assert.True(t, domain.KindOther.Known())
	assert.False(t, domain.FeatureKind("volcano").Known())
	assert.False(t, domain.FeatureKind("").Known())
}
