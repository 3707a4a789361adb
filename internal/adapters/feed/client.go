package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
	"github.com/jacobh/howitt-sub000/internal/pkg/metrics"
)

// Options configures a Client.
type Options struct {
	Name        string        // breaker name, used in logs and metrics
	Timeout     time.Duration // per request
	MaxFailures uint32        // consecutive failures before the breaker opens
	OpenTimeout time.Duration // how long the breaker stays open
	UserAgent   string
}

// Client implements ports.FeedFetcher over HTTP. Upstream outages open a
// circuit breaker so a dead feed is not hammered by every scheduled sync.
type Client struct {
	http      *http.Client
	cb        *gobreaker.CircuitBreaker[*domain.Feed]
	userAgent string
}

// NewClient creates a feed client.
func NewClient(opts Options) *Client {
	if opts.Name == "" {
		opts.Name = "water-beta-feed"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "howitt-sync/1.0"
	}

	settings := gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		// A feed that parses but fails validation is our problem, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrInvalidFeed)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("feed circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.FeedBreakerState.WithLabelValues(name).Set(float64(to))
		},
	}

	return &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		cb:        gobreaker.NewCircuitBreaker[*domain.Feed](settings),
		userAgent: opts.UserAgent,
	}
}

// Fetch downloads and decodes the feed at rawURL. While the breaker is open
// it fails fast with an error wrapping gobreaker.ErrOpenState.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*domain.Feed, error) {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	start := time.Now()
	feed, err := c.cb.Execute(func() (*domain.Feed, error) {
		return c.fetch(ctx, rawURL)
	})
	metrics.FeedFetchDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FeedFetchErrors.WithLabelValues(host).Inc()
		return nil, fmt.Errorf("fetch %s: %w", host, err)
	}
	return feed, nil
}

// State returns the breaker state.
func (c *Client) State() gobreaker.State {
	return c.cb.State()
}

func (c *Client) fetch(ctx context.Context, rawURL string) (*domain.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, application/geo+json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	return Decode(resp.Body)
}
