package http

import (
	"context"
	"time"

	"github.com/jacobh/howitt-sub000/internal/core/usecases"
	"github.com/jacobh/howitt-sub000/internal/mapview"
)

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker reports whether a long-lived connection is up.
type ConnChecker interface {
	Connected() bool
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Features *usecases.FeatureService

	// Sessions tracks WebSocket viewport sessions; nil disables /ws/viewport.
	Sessions *mapview.Hub
	Viewport mapview.SessionConfig

	DB    Pinger
	Cache Pinger
	NATS  ConnChecker

	Version        string
	RequestTimeout time.Duration
	RateLimit      int // requests per minute per IP; 0 disables the limiter
}

func (d *Dependencies) requestTimeout() time.Duration {
	if d.RequestTimeout <= 0 {
		return 15 * time.Second
	}
	return d.RequestTimeout
}
