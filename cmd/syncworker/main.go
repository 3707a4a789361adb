// Command syncworker runs the Temporal worker for the water beta sync
// workflow and keeps its interval schedule registered.
package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/jacobh/howitt-sub000/internal/adapters/feed"
	natsadapter "github.com/jacobh/howitt-sub000/internal/adapters/nats"
	"github.com/jacobh/howitt-sub000/internal/adapters/postgres"
	"github.com/jacobh/howitt-sub000/internal/adapters/valkey"
	"github.com/jacobh/howitt-sub000/internal/core/usecases"
	"github.com/jacobh/howitt-sub000/internal/pkg/config"
	"github.com/jacobh/howitt-sub000/internal/pkg/logging"
	"github.com/jacobh/howitt-sub000/internal/workflows"
)

const scheduleID = "water-beta-sync"

func main() {
	cfg, err := config.Load("howitt-syncworker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	features := postgres.NewFeatureRepo(db)
	observations := postgres.NewObservationRepo(db)

	// The worker needs both the cache and NATS for the best-effort steps;
	// either missing just skips that step.
	var syncSvc *usecases.SyncService
	cache, cacheErr := valkey.New(cfg.Valkey.Addr)
	if cacheErr != nil {
		slog.Warn("valkey unavailable", "error", cacheErr)
	} else {
		defer cache.Close()
	}
	var pub *natsadapter.Publisher
	if nc, err := natsadapter.Connect(cfg.NATS.URL, "howitt-syncworker"); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer nc.Close()
		if pub, err = natsadapter.NewPublisher(nc); err != nil {
			slog.Warn("nats publisher", "error", err)
		}
	}
	switch {
	case cacheErr == nil && pub != nil:
		syncSvc = usecases.NewSyncService(features, observations, cache, pub)
	case cacheErr == nil:
		syncSvc = usecases.NewSyncService(features, observations, cache, nil)
	case pub != nil:
		syncSvc = usecases.NewSyncService(features, observations, nil, pub)
	default:
		syncSvc = usecases.NewSyncService(features, observations, nil, nil)
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if cfg.Feed.URL == "" {
		slog.Warn("feed.url not set, schedule not registered")
	} else {
		every := time.Duration(cfg.Temporal.SyncInterval) * time.Minute
		input := workflows.SyncInput{FeedURL: cfg.Feed.URL, Source: "schedule"}
		if err := workflows.EnsureSchedule(ctx, c, scheduleID, cfg.Temporal.TaskQueue, every, input); err != nil {
			log.Fatalf("schedule: %v", err)
		}
		slog.Info("sync scheduled", "every", every.String(), "feed", cfg.Feed.URL)
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.WaterBetaSyncWorkflow)
	w.RegisterActivity(&workflows.SyncActivities{
		Fetcher: feed.NewClient(feed.Options{
			Timeout:     time.Duration(cfg.Feed.Timeout) * time.Second,
			MaxFailures: uint32(cfg.Feed.MaxFailures),
			OpenTimeout: time.Duration(cfg.Feed.BreakerTimeout) * time.Second,
		}),
		Sync: syncSvc,
	})

	slog.Info("sync worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
