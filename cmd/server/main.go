// @title           Video Studio API
// @version         1.0.0
// @description     Backend for asynchronous slideshow video generation. Accepts images and an optional audio track, renders the video in the background and serves the result.

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"video-studio/internal/config"
	"video-studio/internal/database"
	"video-studio/internal/handlers"
	"video-studio/internal/logging"
	"video-studio/internal/render"
	"video-studio/internal/services"
	"video-studio/internal/storage"
	"video-studio/internal/supabase"
)

func main() {
	bootLogger := logging.New(os.Getenv("ENVIRONMENT"))
	if err := config.LoadDotEnv(); err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := logging.New(cfg.Environment)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	migrator, err := database.NewMigrator(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize migrator")
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	migrator.Close()

	dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database client")
	}
	defer dbClient.Close()

	staging, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize file store")
	}

	artifacts, err := newArtifacts(ctx, cfg, staging)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("failed to initialize artifact storage")
	}

	var events services.EventPublisher
	if cfg.EventsEnabled() {
		feed, err := supabase.ConnectEventFeed(cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize Supabase event feed")
		}
		events = feed
	} else {
		logger.Warn().Msg("SUPABASE_URL not set, job events are disabled")
	}

	publisher := services.NewStorageService(artifacts, dbClient, events, logger)
	renderer := render.NewClient(cfg.RendererBaseURL, cfg.RenderTimeout)
	worker := render.NewWorker(renderer, staging, publisher, cfg.RenderWorkers, cfg.RenderTimeout, logger)

	router := handlers.NewRouter(cfg,
		handlers.NewHealthHandler(dbClient),
		handlers.NewVideosHandler(dbClient, dbClient, worker, artifacts, logger),
		handlers.NewCreditsHandler(dbClient),
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("storage", cfg.StorageBackend).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	worker.Close()
}

func newArtifacts(ctx context.Context, cfg *config.Config, local *storage.FileStore) (storage.Artifacts, error) {
	switch cfg.StorageBackend {
	case config.StorageSupabase:
		store, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageMinio:
		store, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
	return local, nil
}
