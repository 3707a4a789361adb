package http

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
	"github.com/jacobh/howitt-sub000/internal/mapview"
	"github.com/jacobh/howitt-sub000/internal/pkg/metrics"
	"github.com/jacobh/howitt-sub000/internal/pkg/validation"
)

// Client message types.
const (
	clientViewport = "viewport"
	clientFit      = "fit"
	clientReset    = "reset"
)

// wsMessage is sent from client to server.
// {"type":"viewport","bounds":{"min_lat":..,"min_lon":..,"max_lat":..,"max_lon":..},"zoom":11}
type wsMessage struct {
	Type   string         `json:"type"`
	Bounds *domain.Bounds `json:"bounds,omitempty"`
	Zoom   float64        `json:"zoom,omitempty"`
}

const pingInterval = 30 * time.Second

// ViewportHandler returns a handler that keeps a client's map layers in sync
// with its viewport. Each connection gets its own mapview.Session registered
// with deps.Sessions, so data changes refresh it.
func ViewportHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		id := uuid.NewString()
		base := slog.Default().With("remote", c.RemoteAddr().String())
		logger := base.With("session", id)
		logger.Info("viewport session opened")

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		write := func(messageType int, data []byte) error {
			mu.Lock()
			defer mu.Unlock()
			_ = c.SetWriteDeadline(time.Now().Add(10 * time.Second))
			return c.WriteMessage(messageType, data)
		}
		send := func(m mapview.Message) error {
			if m.Diff != nil {
				metrics.LayerChanges.WithLabelValues("add").Add(float64(len(m.Diff.Add)))
				metrics.LayerChanges.WithLabelValues("update").Add(float64(len(m.Diff.Update)))
				metrics.LayerChanges.WithLabelValues("remove").Add(float64(len(m.Diff.Remove)))
			}
			data, err := json.Marshal(m)
			if err != nil {
				return err
			}
			return write(websocket.TextMessage, data)
		}

		query := func(ctx context.Context, b domain.Bounds) ([]mapview.Layer, error) {
			ctx, cancel := context.WithTimeout(ctx, deps.requestTimeout())
			defer cancel()
			return deps.Features.Layers(ctx, b)
		}

		cfg := deps.Viewport
		cfg.Logger = base
		session := mapview.NewSession(ctx, id, cfg, query, send)
		defer session.Close()

		deps.Sessions.Add(session)
		defer deps.Sessions.Remove(id)

		go func() {
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := write(websocket.PingMessage, nil); err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		sendError := func(msg string) {
			_ = send(mapview.Message{Type: mapview.MessageError, Error: msg, Layers: session.Layers()})
		}

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				sendError("invalid JSON")
				continue
			}

			switch m.Type {
			case clientViewport:
				if m.Bounds == nil {
					sendError("bounds is required")
					continue
				}
				v := mapview.Viewport{Bounds: *m.Bounds, Zoom: m.Zoom}
				if err := validation.Struct(v); err != nil {
					sendError(err.Error())
					continue
				}
				if err := session.UpdateViewport(v); err != nil {
					sendError(err.Error())
				}

			case clientFit:
				if err := session.Fit(); err != nil {
					logger.Debug("fit failed", "error", err)
				}

			case clientReset:
				if err := session.Reset(); err != nil && !errors.Is(err, context.Canceled) {
					logger.Debug("reset failed", "error", err)
				}

			default:
				sendError("unknown message type: " + m.Type)
			}
		}

		logger.Info("viewport session closed")
	}
}
