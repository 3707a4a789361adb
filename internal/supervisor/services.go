package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
	"github.com/jacobh/howitt-sub000/internal/core/ports"
	"github.com/jacobh/howitt-sub000/internal/pkg/metrics"
)

// Server is the lifecycle of a *fiber.App.
type Server interface {
	Listen(addr string) error
	ShutdownWithContext(ctx context.Context) error
}

// HTTPService runs a Fiber app as a supervised service.
type HTTPService struct {
	server          Server
	addr            string
	shutdownTimeout time.Duration
}

// NewHTTPService wraps server, listening on addr.
func NewHTTPService(server Server, addr string, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, addr: addr, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.server.Listen(h.addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return errors.New("http server stopped")

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.ShutdownWithContext(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string { return "http-server" }

// Refresher is notified when observations change.
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// SyncListener refreshes live viewport sessions whenever an import publishes
// a sync event. Events arriving while a refresh runs are coalesced into one
// follow-up refresh.
type SyncListener struct {
	events  ports.EventSubscriber
	target  Refresher
	timeout time.Duration
	logger  *slog.Logger
}

// NewSyncListener creates a listener. timeout bounds each refresh.
func NewSyncListener(events ports.EventSubscriber, target Refresher, timeout time.Duration, logger *slog.Logger) *SyncListener {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncListener{events: events, target: target, timeout: timeout, logger: logger}
}

// Serve implements suture.Service.
func (l *SyncListener) Serve(ctx context.Context) error {
	kick := make(chan struct{}, 1)
	err := l.events.SubscribeObservationsUpdated(ctx, func(_ context.Context, ev *domain.SyncEvent) error {
		l.logger.Info("observations updated",
			"source", ev.Source, "features", ev.Features, "observations", ev.Observations)
		select {
		case kick <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribe sync events: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-kick:
			rctx, cancel := context.WithTimeout(ctx, l.timeout)
			if err := l.target.RefreshAll(rctx); err != nil && ctx.Err() == nil {
				l.logger.Warn("session refresh failed", "error", err)
			}
			cancel()
		}
	}
}

func (l *SyncListener) String() string { return "sync-listener" }

// PoolSampler copies database pool statistics into Prometheus gauges.
type PoolSampler struct {
	pool     func() metrics.PoolStat
	interval time.Duration
}

// NewPoolSampler samples stat every interval.
func NewPoolSampler(stat func() metrics.PoolStat, interval time.Duration) *PoolSampler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &PoolSampler{pool: stat, interval: interval}
}

// Serve implements suture.Service.
func (p *PoolSampler) Serve(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	metrics.UpdateDBPoolMetrics(p.pool())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			metrics.UpdateDBPoolMetrics(p.pool())
		}
	}
}

func (p *PoolSampler) String() string { return "db-pool-sampler" }
