// Command watcher is the long-running daemon: it watches the configured
// filesystem roots for changes, serves the HTTP ingest/retrieval/GitHub API,
// and periodically re-projects the Mirror output tree.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tagwalker/tagwalker/internal/bootstrap"
	"github.com/tagwalker/tagwalker/internal/config"
	"github.com/tagwalker/tagwalker/internal/domain/ingest"
	"github.com/tagwalker/tagwalker/internal/infrastructure/mirror"
	"github.com/tagwalker/tagwalker/internal/infrastructure/monitoring/logging"
	"github.com/tagwalker/tagwalker/internal/infrastructure/watch"
	tagwalkerhttp "github.com/tagwalker/tagwalker/internal/interfaces/http"
	"github.com/tagwalker/tagwalker/internal/interfaces/http/handlers"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v, falling back to environment-only config\n", err)
		cfg, err = config.LoadFromEnv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	app, err := bootstrap.Build(cfg, logger)
	if err != nil {
		logger.Fatal("bootstrap failed", logging.Err(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := watch.New(cfg.Watcher, func(ctx context.Context, raw []byte, path string, provenance ingest.Provenance, modTime time.Time) error {
		_, ingestErr := app.Ingest.IngestFile(ctx, raw, path, provenance, modTime)
		return ingestErr
	}, logger)
	if err != nil {
		logger.Error("filesystem watcher failed to start; continuing without it", logging.Err(err))
	} else {
		defer w.Close()
	}

	if cfg.Mirror.Enabled {
		go runMirrorLoop(ctx, cfg, app, logger)
	}

	router := tagwalkerhttp.NewRouter(tagwalkerhttp.RouterConfig{
		IngestHandler: handlers.NewIngestHandler(app.Ingest),
		GitHubHandler: handlers.NewGitHubHandler(app.GitHub),
		SearchHandler: handlers.NewSearchHandler(app.Retrieval),
		HealthHandler: handlers.NewHealthHandler(),
		Logger:        logger,
	})
	server := tagwalkerhttp.NewServer(cfg.Server, router, logger)

	logger.Info("watcher daemon starting", logging.Int("port", cfg.Server.Port))
	if err := server.Start(ctx); err != nil {
		logger.Error("http server stopped with error", logging.Err(err))
	}

	app.Close(context.Background())
	logger.Info("watcher daemon stopped")
}

// runMirrorLoop runs the Mirror Projector on cfg.Mirror.FlushInterval until
// ctx is cancelled, per spec.md §4.H: "after each successful ingest cycle,
// wipe and rebuild the mirror tree."
func runMirrorLoop(ctx context.Context, cfg *config.Config, app *bootstrap.App, logger logging.Logger) {
	interval := cfg.Mirror.FlushInterval
	if interval <= 0 {
		interval = time.Minute
	}
	projector := mirror.New(mirror.Config{OutputDir: cfg.Mirror.OutputDir}, mirror.NewPostgresSource(app.Pool), logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := projector.Run(ctx); err != nil {
				logger.Error("mirror projection failed", logging.Err(err))
			}
		}
	}
}
