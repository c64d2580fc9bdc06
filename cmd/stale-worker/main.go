package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-booking/internal/appointment"
	"github.com/hackgods/clinic-appointment-booking/internal/bootstrap"
	"github.com/hackgods/clinic-appointment-booking/internal/config"
	"github.com/hackgods/clinic-appointment-booking/internal/observability"
)

// stale-worker declines pending requests nobody acted on within PENDING_TTL.
// It only makes sense against a shared store, so it refuses the memory backend.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := observability.InitLogger("stale-worker", "dev", "info")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := observability.InitLogger("stale-worker", cfg.Env, cfg.LogLevel)

	if cfg.StoreBackend != config.StorePostgres {
		logger.Fatal().Str("store", cfg.StoreBackend).Msg("stale-worker requires STORE_BACKEND=postgres")
	}
	if cfg.PendingTTL <= 0 {
		logger.Info().Msg("PENDING_TTL not set, nothing to do")
		return
	}

	logger.Info().
		Dur("interval", cfg.WorkerInterval).
		Dur("pending_ttl", cfg.PendingTTL).
		Msg("stale-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer app.Close()

	// Run once at startup
	runOnce(rootCtx, logger, app.Service, cfg.PendingTTL)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping stale-worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, logger, app.Service, cfg.PendingTTL)
		}
	}
}

func runOnce(ctx context.Context, logger zerolog.Logger, svc *appointment.Service, ttl time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.DeclineStalePending(runCtx, ttl)
	if err != nil {
		logger.Error().Err(err).Int("declined", n).Msg("stale run error")
		return
	}
	logger.Info().Int("declined", n).Dur("took", time.Since(start)).Msg("stale run complete")
}
