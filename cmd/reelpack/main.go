package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/reelpack/reelpack/internal/catalog/service"
	"github.com/reelpack/reelpack/internal/config"
	natsrelay "github.com/reelpack/reelpack/internal/infrastructure/events/nats"
	gormpersist "github.com/reelpack/reelpack/internal/infrastructure/persistence/gorm"
	"github.com/reelpack/reelpack/internal/infrastructure/storage"
	"github.com/reelpack/reelpack/internal/pack/builder"
	packdomain "github.com/reelpack/reelpack/internal/pack/domain"
	"github.com/reelpack/reelpack/internal/pack/loader"
	"github.com/reelpack/reelpack/internal/pack/sidecar"
	playlistservice "github.com/reelpack/reelpack/internal/playlist/service"
	"github.com/reelpack/reelpack/pkg/events"
	"github.com/reelpack/reelpack/pkg/interfaces"
	"github.com/reelpack/reelpack/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	zlog, err := logger.NewZapLogger(cfg.Logger.Development, cfg.Logger.Level)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer zlog.Sync()
	var log interfaces.Logger = zlog

	log.Info("reelpack starting",
		interfaces.String("environment", cfg.Service.Environment),
		interfaces.String("bucket", cfg.Storage.Bucket))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewS3Store(ctx, cfg.Storage.Bucket, cfg.Storage.Region, cfg.Storage.Endpoint, log)
	if err != nil {
		log.Fatal("failed to create object store", interfaces.Error(err))
	}

	db, dbCleanup, err := gormpersist.NewDB(cfg, zlog.Zap())
	if err != nil {
		log.Fatal("failed to open database", interfaces.Error(err))
	}
	defer dbCleanup()

	eventBus := events.NewLocalEventBus(log)

	var relay *natsrelay.Relay
	if cfg.NATS.Enabled {
		relay, err = natsrelay.NewRelay(cfg.NATS.URL, cfg.NATS.Stream, eventBus, log)
		if err != nil {
			log.Fatal("failed to connect event relay", interfaces.Error(err))
		}
		if err := relay.Attach(
			"catalog.refreshed",
			"video.updated",
			"video.deleted",
			"playlist.created",
			"playlist.updated",
			"playlist.deleted",
			"package.published",
			"package.imported",
			"package.deleted",
		); err != nil {
			log.Fatal("failed to attach event relay", interfaces.Error(err))
		}
		defer relay.Close()
	}

	reconciler := service.NewReconciler(
		store,
		gormpersist.NewOverrideRepository(db),
		gormpersist.NewOrphanRepository(db),
		eventBus,
		log,
		cfg.Storage.VideoPrefix,
	)

	playlists := playlistservice.NewPlaylistService(
		gormpersist.NewPlaylistRepository(db),
		reconciler,
		eventBus,
		log,
	)
	reconciler.SetPruner(playlists)
	reconciler.SetThumbnailer(service.NoopThumbnailer{})

	sidecars := sidecar.NewCache(store, log)
	packBuilder := builder.NewBuilder(store, sidecars, eventBus, log, cfg.Storage.PackagePrefix)
	packBuilder.SetMoodPolicy(packdomain.DefaultMoodPolicy)
	packLoader := loader.NewLoader(store, sidecars, reconciler, playlists, eventBus, log, cfg.Storage.PackagePrefix)

	if err := playlists.Restore(ctx); err != nil {
		log.Fatal("failed to restore playlists", interfaces.Error(err))
	}

	videos, err := reconciler.Refresh(ctx)
	if err != nil {
		// A reachability failure here is not fatal: the store may come up
		// later and the next refresh will succeed.
		log.Error("initial catalog refresh failed", interfaces.Error(err))
	} else {
		log.Info("catalog ready", interfaces.Int("videos", len(videos)))
	}

	if packages, err := packLoader.ListPackages(ctx); err != nil {
		log.Error("failed to list published packages", interfaces.Error(err))
	} else {
		log.Info("package inventory ready", interfaces.Int("packages", len(packages)))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("reelpack shutting down")
	eventBus.Drain()
}
