package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/genai"

	"github.com/knowsee/knowsee/internal/analyst"
	"github.com/knowsee/knowsee/internal/artifacts"
	"github.com/knowsee/knowsee/internal/config"
	"github.com/knowsee/knowsee/internal/eventbus"
	"github.com/knowsee/knowsee/internal/observability"
	"github.com/knowsee/knowsee/internal/ragsync"
	"github.com/knowsee/knowsee/internal/runtime"
	"github.com/knowsee/knowsee/internal/sessions"
	"github.com/knowsee/knowsee/internal/sidechannel"
	"github.com/knowsee/knowsee/internal/teams"
	"github.com/knowsee/knowsee/internal/titles"
	"github.com/knowsee/knowsee/internal/web"
)

const appName = "knowsee"

// runServe implements the serve command: configuration loading, service
// wiring, and graceful shutdown.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	slog.SetDefault(logger)

	logger.Info("starting knowsee gateway",
		"version", version,
		"commit", commit,
		"config", configPath,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	store, db, closeStore, err := buildSessionStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	artifactStore, err := buildArtifactStore(ctx, cfg)
	if err != nil {
		return err
	}

	bus := eventbus.New(logger, eventbus.WithDroppedCounter(metrics.EventsDropped))
	buffers := sidechannel.NewRegistry()

	runs, err := buildRuns(ctx, cfg, store, db, bus, buffers, logger)
	if err != nil {
		return err
	}

	var syncSvc *ragsync.Service
	if db != nil {
		syncSvc = ragsync.NewService(db,
			ragsync.NewFolderImporter(appName, artifactStore, logger), logger)

		scheduler := ragsync.NewScheduler(syncSvc, cfg.Sync.Interval, logger)
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start sync scheduler: %w", err)
		}
		defer scheduler.Stop()

		if err := startWatcher(ctx, cfg, syncSvc, logger); err != nil {
			return err
		}
	} else if len(cfg.Sync.WatchFolders) > 0 {
		logger.Warn("watch_folders configured but no database, corpus sync disabled")
	}

	handlerCfg := &web.Config{
		AppName:      appName,
		SessionStore: store,
		Artifacts:    artifactStore,
		Bus:          bus,
		Buffers:      buffers,
		Runs:         runs,
		Metrics:      metrics,
		CORSOrigins:  cfg.Server.CORSOrigins,
		Logger:       logger,
	}
	if syncSvc != nil {
		handlerCfg.Sync = syncSvc
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", web.NewHandler(handlerCfg))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("knowsee gateway started", "addr", server.Addr)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("knowsee gateway stopped gracefully")
	return nil
}

// runSync implements the sync command: one full corpus sync, result on
// stdout.
func runSync(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("corpus sync requires database.url")
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})

	_, db, closeStore, err := buildSessionStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	artifactStore, err := buildArtifactStore(ctx, cfg)
	if err != nil {
		return err
	}

	svc := ragsync.NewService(db,
		ragsync.NewFolderImporter(appName, artifactStore, logger), logger)
	result, err := svc.SyncAll(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// loadConfig reads the config file, falling back to defaults when the
// file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("config file not found, using defaults", "path", path)
			return config.Default(), nil
		}
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func buildSessionStore(cfg *config.Config, logger *slog.Logger) (sessions.Store, *sql.DB, func(), error) {
	if cfg.Database.URL == "" {
		logger.Warn("no database configured, sessions are in-memory only")
		return sessions.NewMemoryStore(), nil, func() {}, nil
	}

	pgConfig := sessions.DefaultPostgresConfig()
	if cfg.Database.MaxConnections > 0 {
		pgConfig.MaxOpenConns = cfg.Database.MaxConnections
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		pgConfig.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	}

	pg, err := sessions.NewPostgresStoreFromDSN(cfg.Database.URL, pgConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	closeStore := func() {
		if err := pg.Close(); err != nil {
			logger.Warn("failed to close session store", "error", err)
		}
	}
	return pg, pg.DB(), closeStore, nil
}

func buildArtifactStore(ctx context.Context, cfg *config.Config) (artifacts.Store, error) {
	if cfg.Artifacts.Backend != "s3" {
		return artifacts.NewMemoryStore(), nil
	}

	s3cfg := artifacts.DefaultS3Config()
	s3cfg.Bucket = cfg.Artifacts.S3.Bucket
	if cfg.Artifacts.S3.Region != "" {
		s3cfg.Region = cfg.Artifacts.S3.Region
	}
	s3cfg.Endpoint = cfg.Artifacts.S3.Endpoint
	s3cfg.Prefix = cfg.Artifacts.S3.Prefix
	s3cfg.UsePathStyle = cfg.Artifacts.S3.UsePathStyle

	store, err := artifacts.NewS3Store(ctx, s3cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize s3 artifact store: %w", err)
	}
	return store, nil
}

// buildRuns wires the Gemini runner and orchestrator. Returns nil when
// no API key is configured; the API then reports runs as unavailable.
func buildRuns(ctx context.Context, cfg *config.Config, store sessions.Store, db *sql.DB, bus *eventbus.Bus, buffers *sidechannel.Registry, logger *slog.Logger) (web.RunService, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		logger.Warn("GOOGLE_API_KEY not set, runs disabled")
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	opts := []runtime.Option{
		runtime.WithTitles(titles.NewService(
			titles.NewGenaiGenerator(client), cfg.Model.TitleModel, logger)),
	}
	var runnerOpts []runtime.GeminiOption
	if db != nil {
		opts = append(opts, runtime.WithResolver(teams.NewResolver(
			teams.NewPostgresMembership(db), teams.NewCorpusRegistry(db), logger)))
		runnerOpts = append(runnerOpts, runtime.WithToolSet(
			runtime.NewAnalystTools(analyst.NewService(db, logger), buffers)))
	}

	runner := runtime.NewGeminiRunner(client, cfg.Model.Name, logger, runnerOpts...)
	return runtime.NewOrchestrator(appName, runner, store, bus,
		buffers, logger, opts...), nil
}

// startWatcher registers change-triggered syncs for configured local
// source folders. Folders without a registered corpus are skipped.
func startWatcher(ctx context.Context, cfg *config.Config, svc *ragsync.Service, logger *slog.Logger) error {
	if len(cfg.Sync.WatchFolders) == 0 {
		return nil
	}

	watcher, err := ragsync.NewWatcher(svc, logger)
	if err != nil {
		return fmt.Errorf("create sync watcher: %w", err)
	}

	watched := 0
	for folder, teamID := range cfg.Sync.WatchFolders {
		corpus, err := svc.CorpusForTeam(ctx, teamID)
		if err != nil {
			logger.Warn("skipping watch folder, no registered corpus",
				"folder", folder, "team_id", teamID, "error", err)
			continue
		}
		corpus.FolderURL = folder
		if err := watcher.Watch(folder, corpus); err != nil {
			logger.Warn("failed to watch folder", "folder", folder, "error", err)
			continue
		}
		watched++
	}

	if watched == 0 {
		return watcher.Close()
	}
	watcher.Start(ctx)
	go func() {
		<-ctx.Done()
		watcher.Close()
	}()
	return nil
}
