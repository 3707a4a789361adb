package mapview

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Hub tracks the live sessions of one process so data changes can refresh
// them all.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	parallel int
}

// NewHub returns a hub that refreshes at most parallel sessions at once.
func NewHub(parallel int) *Hub {
	if parallel <= 0 {
		parallel = 8
	}
	return &Hub{sessions: make(map[string]*Session), parallel: parallel}
}

// Add registers s.
func (h *Hub) Add(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID] = s
}

// Remove unregisters the session with the given id.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

// Len returns the number of registered sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// RefreshAll re-queries every session's viewport. It returns early with
// ctx's error if ctx is cancelled.
func (h *Hub) RefreshAll(ctx context.Context) error {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.parallel)
	for _, s := range sessions {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			s.Refresh()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
