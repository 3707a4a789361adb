package mapview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
)

// Message types sent to clients.
const (
	MessageDiff   = "diff"
	MessageExtent = "extent"
	MessageError  = "error"
)

var (
	ErrInvalidViewport  = errors.New("invalid viewport")
	ErrViewportTooLarge = errors.New("viewport too large")
)

// Viewport is the visible map area reported by a client.
type Viewport struct {
	Bounds domain.Bounds `json:"bounds"`
	Zoom   float64       `json:"zoom,omitempty" validate:"gte=0,lte=24"`
}

// Message is one server-to-client frame.
type Message struct {
	Type   string         `json:"type"`
	Diff   *Diff          `json:"diff,omitempty"`
	Bounds *domain.Bounds `json:"bounds,omitempty"`
	Layers int            `json:"layers"`
	Error  string         `json:"error,omitempty"`
}

// Querier returns the layers visible inside b.
type Querier func(ctx context.Context, b domain.Bounds) ([]Layer, error)

// SessionConfig tunes a Session.
type SessionConfig struct {
	Debounce      time.Duration
	PadMeters     float64 // query a little beyond the viewport so small pans need no diff
	MaxSpanMeters float64 // 0 disables the limit
	FitPadRatio   float64
	FitMinSpanDeg float64
	Logger        *slog.Logger
}

// Session tracks the layers shown by one client and keeps them matched to
// its viewport.
type Session struct {
	ID string

	ctx      context.Context
	cfg      SessionConfig
	query    Querier
	send     func(Message) error
	debounce *Debouncer
	logger   *slog.Logger

	mu     sync.Mutex // serializes refreshes; guards layers and last
	layers *LayerSet
	last   *domain.Bounds
}

// NewSession creates a session. send is called with mu held, never concurrently.
func NewSession(ctx context.Context, id string, cfg SessionConfig, query Querier, send func(Message) error) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		ID:       id,
		ctx:      ctx,
		cfg:      cfg,
		query:    query,
		send:     send,
		debounce: NewDebouncer(cfg.Debounce),
		logger:   logger.With("session", id),
		layers:   NewLayerSet(),
	}
}

// UpdateViewport schedules a visibility query for v once the client stops
// moving the map.
func (s *Session) UpdateViewport(v Viewport) error {
	if !v.Bounds.Valid() {
		return ErrInvalidViewport
	}
	if s.cfg.MaxSpanMeters > 0 {
		if d := v.Bounds.DiagonalMeters(); d > s.cfg.MaxSpanMeters {
			return fmt.Errorf("%w: %.0fm across, limit %.0fm", ErrViewportTooLarge, d, s.cfg.MaxSpanMeters)
		}
	}

	b := v.Bounds
	s.debounce.Trigger(func() { s.load(b) })
	return nil
}

// Refresh re-queries the current viewport now, running any pending viewport
// change first.
func (s *Session) Refresh() {
	if s.debounce.Flush() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return
	}
	s.refreshLocked()
}

// Fit sends the padded extent of the displayed layers.
func (s *Session) Fit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.layers.Extent()
	if !ok {
		return s.send(Message{Type: MessageError, Error: "no layers to fit"})
	}
	fit := FitBounds(b, s.cfg.FitPadRatio, s.cfg.FitMinSpanDeg)
	return s.send(Message{Type: MessageExtent, Bounds: &fit, Layers: s.layers.Len()})
}

// Reset forgets the viewport and removes every layer from the client.
func (s *Session) Reset() error {
	s.debounce.Flush()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = nil
	d := s.layers.Clear()
	if d.Empty() {
		return nil
	}
	return s.send(Message{Type: MessageDiff, Diff: &d, Layers: 0})
}

// Layers returns the number of layers the client currently has.
func (s *Session) Layers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layers.Len()
}

// Close stops pending work and waits for a debounced query already running.
// The session must not be used afterwards.
func (s *Session) Close() {
	s.debounce.Stop()
}

func (s *Session) load(b domain.Bounds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &b
	s.refreshLocked()
}

func (s *Session) refreshLocked() {
	area := s.last.Pad(s.cfg.PadMeters)
	layers, err := s.query(s.ctx, area)
	if err != nil {
		s.logger.Warn("viewport query failed", "error", err)
		if err := s.send(Message{Type: MessageError, Error: "viewport query failed"}); err != nil {
			s.logger.Debug("send failed", "error", err)
		}
		return
	}

	d := s.layers.Reconcile(layers)
	if d.Empty() {
		return
	}
	if err := s.send(Message{Type: MessageDiff, Diff: &d, Layers: s.layers.Len()}); err != nil {
		s.logger.Debug("send failed", "error", err)
	}
}
