package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jacobh/howitt-sub000/internal/adapters/http"
	natsadapter "github.com/jacobh/howitt-sub000/internal/adapters/nats"
	"github.com/jacobh/howitt-sub000/internal/adapters/postgres"
	"github.com/jacobh/howitt-sub000/internal/adapters/valkey"
	"github.com/jacobh/howitt-sub000/internal/core/usecases"
	"github.com/jacobh/howitt-sub000/internal/mapview"
	"github.com/jacobh/howitt-sub000/internal/pkg/config"
	"github.com/jacobh/howitt-sub000/internal/pkg/logging"
	"github.com/jacobh/howitt-sub000/internal/pkg/metrics"
	"github.com/jacobh/howitt-sub000/internal/pkg/telemetry"
	"github.com/jacobh/howitt-sub000/internal/supervisor"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load("howitt-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		slog.Error("database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	deps := &http.Dependencies{
		DB:             db,
		Version:        version,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
		RateLimit:      cfg.Server.RateLimit,
		Viewport: mapview.SessionConfig{
			Debounce:      cfg.Viewport.Debounce(),
			PadMeters:     cfg.Viewport.PadMeters,
			MaxSpanMeters: cfg.Viewport.MaxSpanMeters,
			FitPadRatio:   cfg.Viewport.FitPadRatio,
			FitMinSpanDeg: cfg.Viewport.FitMinSpanDeg,
		},
	}

	// Cache. Only set on success so a failed dial leaves the interfaces nil.
	var cache *valkey.Cache
	if c, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, caching disabled", "error", err)
	} else {
		cache = c
		defer cache.Close()
		deps.Cache = cache
	}

	// NATS
	var subscriber *natsadapter.Subscriber
	if nc, err := natsadapter.Connect(cfg.NATS.URL, "howitt-api"); err != nil {
		slog.Warn("nats unavailable, sync events disabled", "error", err)
	} else {
		defer nc.Close()
		pub, err := natsadapter.NewPublisher(nc)
		if err != nil {
			slog.Warn("nats publisher", "error", err)
		} else {
			deps.NATS = pub
		}
		subscriber = natsadapter.NewSubscriber(nc)
		defer subscriber.Close()
	}

	limits := usecases.Limits{
		DefaultRadius: cfg.Query.DefaultRadius,
		MaxRadius:     cfg.Query.MaxRadius,
		DefaultLimit:  cfg.Query.DefaultLimit,
		MaxLimit:      cfg.Query.MaxLimit,
		MaxLayers:     cfg.Viewport.MaxLayers,
		CacheTTL:      cfg.Query.CacheTTL,
		FitPadRatio:   cfg.Viewport.FitPadRatio,
		FitMinSpanDeg: cfg.Viewport.FitMinSpanDeg,
	}
	features := postgres.NewFeatureRepo(db)
	observations := postgres.NewObservationRepo(db)
	if cache != nil {
		deps.Features = usecases.NewFeatureService(features, observations, cache, limits)
	} else {
		deps.Features = usecases.NewFeatureService(features, observations, nil, limits)
	}
	deps.Sessions = mapview.NewHub(8)

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      "Howitt Plains Feature API",
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, If-None-Match",
		MaxAge:       3600,
	}))
	http.SetupRoutes(app, deps)

	tree := supervisor.NewTree(slog.Default(), supervisor.TreeConfig{ShutdownTimeout: 15 * time.Second})
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	tree.AddAPI(supervisor.NewHTTPService(app, addr, 10*time.Second))
	tree.AddBackground(supervisor.NewPoolSampler(func() metrics.PoolStat { return db.Stat() }, 15*time.Second))
	if subscriber != nil {
		tree.AddBackground(supervisor.NewSyncListener(subscriber, deps.Sessions, deps.RequestTimeout, slog.Default()))
	}

	slog.Info("API server starting", "addr", addr, "version", version)
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		slog.Error("supervisor stopped", "error", err)
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		slog.Warn("services did not stop in time", "count", len(report))
	}
	slog.Info("server stopped")
}
