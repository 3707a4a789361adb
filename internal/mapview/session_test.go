package mapview_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
	"github.com/jacobh/howitt-sub000/internal/mapview"
)

// fakeWorld answers viewport queries from a fixed list of features.
type fakeWorld struct {
	mu       sync.Mutex
	features []domain.FeatureSummary
	err      error
	queries  []domain.Bounds
}

func (w *fakeWorld) set(fs ...domain.FeatureSummary) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.features = fs
}

func (w *fakeWorld) query(_ context.Context, b domain.Bounds) ([]mapview.Layer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queries = append(w.queries, b)
	if w.err != nil {
		return nil, w.err
	}
	var out []mapview.Layer
	for _, f := range w.features {
		if b.Contains(f.Location) {
			out = append(out, mapview.MarkerLayer(f))
		}
	}
	return out, nil
}

func (w *fakeWorld) firstQuery() domain.Bounds {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.queries[0]
}

func (w *fakeWorld) queryCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queries)
}

type recorder struct {
	ch chan mapview.Message
}

func newRecorder() *recorder { return &recorder{ch: make(chan mapview.Message, 16)} }

func (r *recorder) send(m mapview.Message) error {
	r.ch <- m
	return nil
}

func (r *recorder) next(t *testing.T) mapview.Message {
	t.Helper()
	select {
	case m := <-r.ch:
		return m
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return mapview.Message{}
	}
}

func (r *recorder) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case m := <-r.ch:
		t.Fatalf("unexpected message %+v", m)
	case <-time.After(wait):
	}
}

var (
	plains  = domain.Bounds{MinLat: -37.6, MinLon: 146.9, MaxLat: -37.0, MaxLon: 147.6}
	tankA   = summary("tank-a", -37.45, 147.25, 1)
	hutB    = summary("hut-b", -37.10, 147.10, 0)
	faraway = summary("far", -33.0, 151.0, 0)
)

func newTestSession(t *testing.T, w *fakeWorld, r *recorder, cfg mapview.SessionConfig) *mapview.Session {
	t.Helper()
	if cfg.Debounce == 0 {
		cfg.Debounce = 10 * time.Millisecond
	}
	s := mapview.NewSession(context.Background(), "test", cfg, w.query, r.send)
	t.Cleanup(s.Close)
	return s
}

func TestSession_ViewportSendsDiff(t *testing.T) {
	w := &fakeWorld{}
	w.set(tankA, hutB, faraway)
	r := newRecorder()
	s := newTestSession(t, w, r, mapview.SessionConfig{})

	require.NoError(t, s.UpdateViewport(mapview.Viewport{Bounds: plains, Zoom: 10}))

	m := r.next(t)
	assert.Equal(t, mapview.MessageDiff, m.Type)
	require.NotNil(t, m.Diff)
	assert.ElementsMatch(t, []string{"tank-a", "hut-b"}, ids(m.Diff.Add))
	assert.Equal(t, 2, m.Layers)
	assert.Equal(t, 2, s.Layers())
}

func TestSession_DebouncesViewportBursts(t *testing.T) {
	w := &fakeWorld{}
	w.set(tankA)
	r := newRecorder()
	s := newTestSession(t, w, r, mapview.SessionConfig{Debounce: 30 * time.Millisecond})

	for i := 0; i < 5; i++ {
		b := plains
		b.MinLon -= float64(i) * 0.01
		require.NoError(t, s.UpdateViewport(mapview.Viewport{Bounds: b}))
	}

	r.next(t)
	r.none(t, 60*time.Millisecond)
	assert.Equal(t, 1, w.queryCount())
}

func TestSession_NoDiffNoMessage(t *testing.T) {
	w := &fakeWorld{}
	w.set(tankA)
	r := newRecorder()
	s := newTestSession(t, w, r, mapview.SessionConfig{})

	require.NoError(t, s.UpdateViewport(mapview.Viewport{Bounds: plains}))
	r.next(t)

	// Panning without changing what is visible sends nothing.
	b := plains
	b.MaxLon += 0.01
	require.NoError(t, s.UpdateViewport(mapview.Viewport{Bounds: b}))
	r.none(t, 50*time.Millisecond)
}

func TestSession_PadsViewport(t *testing.T) {
	w := &fakeWorld{}
	r := newRecorder()
	s := newTestSession(t, w, r, mapview.SessionConfig{PadMeters: 1000})

	require.NoError(t, s.UpdateViewport(mapview.Viewport{Bounds: plains}))
	s.Refresh()

	require.GreaterOrEqual(t, w.queryCount(), 1)
	q := w.firstQuery()
	assert.Less(t, q.MinLat, plains.MinLat)
	assert.Greater(t, q.MaxLon, plains.MaxLon)
}

func TestSession_RejectsBadViewports(t *testing.T) {
	w := &fakeWorld{}
	r := newRecorder()
	s := newTestSession(t, w, r, mapview.SessionConfig{MaxSpanMeters: 50_000})

	err := s.UpdateViewport(mapview.Viewport{Bounds: domain.Bounds{MinLat: 1, MaxLat: 0}})
	assert.ErrorIs(t, err, mapview.ErrInvalidViewport)

	huge := domain.Bounds{MinLat: -40, MinLon: 140, MaxLat: -30, MaxLon: 150}
	err = s.UpdateViewport(mapview.Viewport{Bounds: huge})
	assert.ErrorIs(t, err, mapview.ErrViewportTooLarge)

	r.none(t, 30*time.Millisecond)
	assert.Equal(t, 0, w.queryCount())
}

func TestSession_RefreshPicksUpChanges(t *testing.T) {
	w := &fakeWorld{}
	w.set(tankA)
	r := newRecorder()
	s := newTestSession(t, w, r, mapview.SessionConfig{})

	require.NoError(t, s.UpdateViewport(mapview.Viewport{Bounds: plains}))
	r.next(t)

	w.set(summary("tank-a", -37.45, 147.25, 2), hutB)
	s.Refresh()

	m := r.next(t)
	require.NotNil(t, m.Diff)
	assert.Equal(t, []string{"hut-b"}, ids(m.Diff.Add))
	assert.Equal(t, []string{"tank-a"}, ids(m.Diff.Update))
	assert.Empty(t, m.Diff.Remove)
}

func TestSession_RefreshFlushesPendingViewport(t *testing.T) {
	w := &fakeWorld{}
	w.set(tankA)
	r := newRecorder()
	s := newTestSession(t, w, r, mapview.SessionConfig{Debounce: time.Hour})

	require.NoError(t, s.UpdateViewport(mapview.Viewport{Bounds: plains}))
	s.Refresh()

	m := r.next(t)
	assert.Equal(t, mapview.MessageDiff, m.Type)
	assert.Equal(t, 1, w.queryCount())
}

func TestSession_RefreshWithoutViewportIsNoop(t *testing.T) {
	w := &fakeWorld{}
	r := newRecorder()
	s := newTestSession(t, w, r, mapview.SessionConfig{})

	s.Refresh()
	r.none(t, 20*time.Millisecond)
	assert.Equal(t, 0, w.queryCount())
}

func TestSession_QueryErrorSendsError(t *testing.T) {
	w := &fakeWorld{err: errors.New("db down")}
	r := newRecorder()
	s := newTestSession(t, w, r, mapview.SessionConfig{})

	require.NoError(t, s.UpdateViewport(mapview.Viewport{Bounds: plains}))
	m := r.next(t)
	assert.Equal(t, mapview.MessageError, m.Type)
	assert.NotContains(t, m.Error, "db down")
}

func TestSession_Fit(t *testing.T) {
	w := &fakeWorld{}
	w.set(tankA, hutB)
	r := newRecorder()
	s := newTestSession(t, w, r, mapview.SessionConfig{FitPadRatio: 0.1, FitMinSpanDeg: 0.01})

	require.NoError(t, s.Fit())
	assert.Equal(t, mapview.MessageError, r.next(t).Type)

	require.NoError(t, s.UpdateViewport(mapview.Viewport{Bounds: plains}))
	r.next(t)

	require.NoError(t, s.Fit())
	m := r.next(t)
	assert.Equal(t, mapview.MessageExtent, m.Type)
	require.NotNil(t, m.Bounds)
	assert.True(t, m.Bounds.Contains(tankA.Location))
	assert.True(t, m.Bounds.Contains(hutB.Location))
}

func TestSession_Reset(t *testing.T) {
	w := &fakeWorld{}
	w.set(tankA, hutB)
	r := newRecorder()
	s := newTestSession(t, w, r, mapview.SessionConfig{})

	require.NoError(t, s.UpdateViewport(mapview.Viewport{Bounds: plains}))
	r.next(t)

	require.NoError(t, s.Reset())
	m := r.next(t)
	require.NotNil(t, m.Diff)
	assert.Equal(t, []string{"hut-b", "tank-a"}, m.Diff.Remove)
	assert.Equal(t, 0, s.Layers())

	// Forgotten viewport: nothing to refresh.
	s.Refresh()
	r.none(t, 20*time.Millisecond)
}
