package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jacobh/howitt-sub000/internal/adapters/feed"
	natsadapter "github.com/jacobh/howitt-sub000/internal/adapters/nats"
	"github.com/jacobh/howitt-sub000/internal/adapters/postgres"
	"github.com/jacobh/howitt-sub000/internal/adapters/valkey"
	"github.com/jacobh/howitt-sub000/internal/core/domain"
	"github.com/jacobh/howitt-sub000/internal/core/usecases"
	"github.com/jacobh/howitt-sub000/internal/pkg/config"
	"github.com/jacobh/howitt-sub000/internal/pkg/logging"
)

// maxParallelDecodes bounds how many files are read at once.
const maxParallelDecodes = 4

var (
	source  string
	feedURL string

	cfg     *config.Config
	syncSvc *usecases.SyncService
	closers []func()
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ingestor",
		Short:         "Import features and water beta",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load("howitt-ingestor")
			if err != nil {
				return err
			}
			logging.Setup(cfg.Log.Level, cfg.Log.Format)
			return connect(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&source, "source", "cli", "source label recorded in metrics and sync events")

	root.AddCommand(featuresCmd(), betaCmd(), syncCmd())
	return root
}

// closeAll releases what connect opened, newest first. cobra skips
// PersistentPostRun when RunE fails, so main calls this instead.
func closeAll() {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	closers = nil
}

// connect opens the database and, when reachable, the cache and NATS so an
// import invalidates cached queries and notifies running API replicas.
func connect(ctx context.Context) error {
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	closers = append(closers, db.Close)

	features := postgres.NewFeatureRepo(db)
	observations := postgres.NewObservationRepo(db)

	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, cached queries will expire on their own", "error", err)
	} else {
		closers = append(closers, cache.Close)
	}

	var pub *natsadapter.Publisher
	if nc, err := natsadapter.Connect(cfg.NATS.URL, "howitt-ingestor"); err != nil {
		slog.Warn("nats unavailable, no sync event will be published", "error", err)
	} else {
		closers = append(closers, nc.Close)
		if pub, err = natsadapter.NewPublisher(nc); err != nil {
			slog.Warn("nats publisher", "error", err)
		}
	}

	switch {
	case cache != nil && pub != nil:
		syncSvc = usecases.NewSyncService(features, observations, cache, pub)
	case cache != nil:
		syncSvc = usecases.NewSyncService(features, observations, cache, nil)
	case pub != nil:
		syncSvc = usecases.NewSyncService(features, observations, nil, pub)
	default:
		syncSvc = usecases.NewSyncService(features, observations, nil, nil)
	}
	return nil
}

func featuresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "features FILE...",
		Short: "Import features from feed or GeoJSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFeeds(cmd.Context(), args)
			if err != nil {
				return err
			}
			f.Observations = nil
			return runImport(cmd.Context(), f)
		},
	}
}

func betaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "beta FILE...",
		Short: "Import water beta observations from feed files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFeeds(cmd.Context(), args)
			if err != nil {
				return err
			}
			f.Features = nil
			return runImport(cmd.Context(), f)
		},
	}
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch the upstream feed once and import it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := feedURL
			if url == "" {
				url = cfg.Feed.URL
			}
			if url == "" {
				return errors.New("no feed URL: pass --feed or set feed.url")
			}

			client := feed.NewClient(feed.Options{
				Timeout:     time.Duration(cfg.Feed.Timeout) * time.Second,
				MaxFailures: uint32(cfg.Feed.MaxFailures),
				OpenTimeout: time.Duration(cfg.Feed.BreakerTimeout) * time.Second,
			})
			f, err := client.Fetch(cmd.Context(), url)
			if err != nil {
				return err
			}
			return runImport(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&feedURL, "feed", "", "feed URL (default feed.url)")
	return cmd
}

func runImport(ctx context.Context, f *domain.Feed) error {
	ev, err := syncSvc.Import(ctx, f, source)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d features, %d observations from %s\n", ev.Features, ev.Observations, ev.Source)
	return nil
}

// loadFeeds decodes paths concurrently and merges them in argument order.
func loadFeeds(ctx context.Context, paths []string) (*domain.Feed, error) {
	feeds := make([]*domain.Feed, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDecodes)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := decodeFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			feeds[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := &domain.Feed{}
	for _, f := range feeds {
		merged.Features = append(merged.Features, f.Features...)
		merged.Observations = append(merged.Observations, f.Observations...)
	}
	return merged, nil
}

func decodeFile(path string) (*domain.Feed, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return feed.Decode(fh)
}
