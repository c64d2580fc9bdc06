package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-booking/internal/admin"
	"github.com/hackgods/clinic-appointment-booking/internal/api"
	"github.com/hackgods/clinic-appointment-booking/internal/bootstrap"
	"github.com/hackgods/clinic-appointment-booking/internal/config"
	"github.com/hackgods/clinic-appointment-booking/internal/observability"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := observability.InitLogger("api-server", "dev", "info")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := observability.InitLogger("api-server", cfg.Env, cfg.LogLevel)
	logger.Info().
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreBackend).
		Str("lock", cfg.LockBackend).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer app.Close()

	srv := newServer(cfg, app, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
			app.Close()
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("api-server stopped")
}

func newServer(cfg config.Config, app *bootstrap.App, logger zerolog.Logger) *http.Server {
	router := api.NewRouter(api.RouterConfig{
		Service: app.Service,
		Gate:    admin.NewGate(cfg.AdminUsername, cfg.AdminPassword),
		Checks:  app.Checks,
		Logger:  logger,
		Env:     cfg.Env,
		Version: version,
	})

	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
