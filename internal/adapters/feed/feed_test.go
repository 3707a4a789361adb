package feed_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobh/howitt-sub000/internal/adapters/feed"
	"github.com/jacobh/howitt-sub000/internal/core/domain"
)

const nativeFeed = `{
  "features": [
    {"id": "dargo-tank", "name": "Dargo tank", "kind": "water_tank", "location": {"lat": -37.457, "lon": 147.253}}
  ],
  "observations": [
    {"feature_id": "dargo-tank", "topic_id": "t1", "topic_title": "Dargo loop", "post_id": "p1", "posted_at": "2024-02-01T00:00:00Z", "metadata": {"status": "full"}}
  ]
}`

const geojsonFeed = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "derrick-hut", "geometry": {"type": "Point", "coordinates": [147.134, -36.977]},
     "properties": {"name": "Derrick hut", "kind": "hut", "source": "parks vic"}}
  ]
}`

func TestDecode_Native(t *testing.T) {
	f, err := feed.Decode(strings.NewReader(nativeFeed))
	require.NoError(t, err)
	require.Len(t, f.Features, 1)
	require.Len(t, f.Observations, 1)

	assert.Equal(t, domain.KindWaterTank, f.Features[0].Kind)
	assert.Equal(t, 147.253, f.Features[0].Location.Lon)
	assert.Equal(t, "full", f.Observations[0].Metadata["status"])
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), f.Observations[0].PostedAt.UTC())
}

func TestDecode_GeoJSON(t *testing.T) {
	f, err := feed.Decode(strings.NewReader(geojsonFeed))
	require.NoError(t, err)
	require.Len(t, f.Features, 1)

	hut := f.Features[0]
	assert.Equal(t, "derrick-hut", hut.ID)
	assert.Equal(t, "Derrick hut", hut.Name)
	assert.Equal(t, domain.KindHut, hut.Kind)
	assert.Equal(t, domain.GeoPoint{Lat: -36.977, Lon: 147.134}, hut.Location)
	assert.Equal(t, "parks vic", hut.Tags["source"])
}

func TestDecode_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"not json":   `{"features": [`,
		"line":       `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"LineString","coordinates":[[1,2],[3,4]]}}]}`,
		"bad shapes": `{"features": "nope"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := feed.Decode(strings.NewReader(body))
			assert.True(t, errors.Is(err, domain.ErrInvalidFeed), "got %v", err)
		})
	}
}

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "howitt-sync/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(nativeFeed))
	}))
	defer srv.Close()

	c := feed.NewClient(feed.Options{Timeout: time.Second})
	f, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, f.Features, 1)
}

func TestClient_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := feed.NewClient(feed.Options{Name: "test-open", Timeout: time.Second, MaxFailures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background(), srv.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upstream status 502")
	}
	assert.Equal(t, gobreaker.StateOpen, c.State())

	_, err := c.Fetch(context.Background(), srv.URL)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "got %v", err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_InvalidFeedDoesNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"features": "nope"}`))
	}))
	defer srv.Close()

	c := feed.NewClient(feed.Options{Name: "test-invalid", Timeout: time.Second, MaxFailures: 1, OpenTimeout: time.Minute})
	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), srv.URL)
		assert.True(t, errors.Is(err, domain.ErrInvalidFeed), "got %v", err)
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}
