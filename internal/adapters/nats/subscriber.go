package natsadapter

import (
	"context"
	"log/slog"
	"sync"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber with plain NATS subscriptions,
// so every API replica sees every event.
type Subscriber struct {
	conn *nats.Conn

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber on an existing connection.
func NewSubscriber(conn *nats.Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// SubscribeObservationsUpdated calls handler for every sync event until ctx
// is done. Malformed messages are logged and dropped.
func (s *Subscriber) SubscribeObservationsUpdated(ctx context.Context, handler func(ctx context.Context, event *domain.SyncEvent) error) error {
	sub, err := s.conn.Subscribe(SubjectObservationsUpdated, func(msg *nats.Msg) {
		var ev domain.SyncEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Warn("bad sync event", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(ctx, &ev); err != nil {
			slog.Warn("sync event handler failed", "source", ev.Source, "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}

// Close unsubscribes everything.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
}
