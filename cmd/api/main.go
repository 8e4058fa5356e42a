package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"lookbook/internal/http/handlers"
	httpapi "lookbook/internal/http/httpapi"
	"lookbook/internal/infra"
	"lookbook/internal/storage"
	"lookbook/internal/studio"
)

const shutdownGrace = 10 * time.Second

func main() {
	// .env.local wins over .env; both are optional.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller, err := studio.NewFromConfig(cfg, &logger, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure studio")
	}

	exportDir := cfg.ExportDir
	if abs, err := filepath.Abs(exportDir); err == nil {
		exportDir = abs
	}
	exports, err := storage.NewFileStore(exportDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure export directory")
	}

	app := &handlers.App{
		Studio:         controller,
		Exports:        exports,
		ExportDir:      exports.BasePath(),
		ExportDelay:    cfg.ExportDelay,
		DownloadPrefix: cfg.DownloadPrefix,
		MaxUploadBytes: cfg.MaxUploadBytes,
		BatchContext:   ctx,
		Logger:         &logger,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Logger:          &logger,
	})
	server := infra.NewHTTPServer(ctx, cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr()).
			Str("provider", cfg.ImageProvider).
			Str("export_dir", exports.BasePath()).
			Msg("api: listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("api: failed to shutdown server")
		}
		// Batches stop at the next item boundary once ctx is cancelled.
		if err := controller.Wait(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("api: batch still running at exit")
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("api: server failed")
		os.Exit(1)
	}
	logger.Info().Msg("api: server stopped")
}
