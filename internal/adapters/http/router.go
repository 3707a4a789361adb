package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/jacobh/howitt-sub000/internal/pkg/metrics"
)

// legacySunset is when the unversioned /features routes go away.
var legacySunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestLoggerMiddleware())
	app.Use(AccessLogMiddleware())

	if deps.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        deps.RateLimit,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			Next: func(c *fiber.Ctx) bool {
				// Probes and scrapes are never limited.
				p := c.Path()
				return p == "/metrics" || p == "/v1/health" || p == "/v1/ready"
			},
			LimitReached: func(c *fiber.Ctx) error {
				return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
			},
		}))
	}

	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	t := deps.requestTimeout()
	v1 := app.Group("/v1")
	v1.Get("/features", timeout.NewWithContext(FeatureIndexHandler(deps), t))
	v1.Get("/features/nearby", timeout.NewWithContext(NearbyFeaturesHandler(deps), t))
	v1.Get("/features/extent", timeout.NewWithContext(FeatureExtentHandler(deps), t))
	v1.Get("/features/:id", timeout.NewWithContext(GetFeatureHandler(deps), t))
	v1.Get("/features/:id/observations", timeout.NewWithContext(FeatureObservationsHandler(deps), t))
	v1.Get("/stats", timeout.NewWithContext(StatsHandler(deps), t))

	// Unversioned routes kept for clients of the original service.
	legacy := app.Group("/features", DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/features", SunsetDate: legacySunset, Alternative: "/v1/features"},
		{Path: "/features/nearby", SunsetDate: legacySunset, Alternative: "/v1/features/nearby"},
	}))
	legacy.Get("/", timeout.NewWithContext(FeatureIndexHandler(deps), t))
	legacy.Get("/nearby", timeout.NewWithContext(NearbyFeaturesHandler(deps), t))

	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), t))

	SetupDocs(app)

	if deps.Sessions != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/viewport", websocket.New(ViewportHandler(deps)))
	}
}
