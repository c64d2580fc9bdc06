// Package bootstrap turns a loaded config into the store, locker and booking
// service shared by the binaries under cmd/.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-booking/internal/api"
	"github.com/hackgods/clinic-appointment-booking/internal/appointment"
	"github.com/hackgods/clinic-appointment-booking/internal/config"
	"github.com/hackgods/clinic-appointment-booking/internal/db"
	"github.com/hackgods/clinic-appointment-booking/internal/lock"
	redisclient "github.com/hackgods/clinic-appointment-booking/internal/redis"
)

type App struct {
	Service *appointment.Service
	Store   appointment.Store
	Checks  []api.HealthCheck

	closers []func()
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	app := &App{}

	cat, err := cfg.Catalog()
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}

	switch cfg.StoreBackend {
	case config.StorePostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		if err == nil {
			err = db.EnsureSchema(pgCtx, pool)
			if err != nil {
				pool.Close()
			}
		}
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		app.closers = append(app.closers, pool.Close)
		app.Store = appointment.NewPgStore(pool)
		logger.Info().Msg("connected to postgres")
	default:
		app.Store = appointment.NewMemoryStore()
		logger.Warn().Msg("using in-memory store, appointments are lost on restart")
	}
	app.Checks = append(app.Checks, api.HealthCheck{Name: "store", Critical: true, Ping: app.Store.Ping})

	var locker lock.Locker
	switch cfg.LockBackend {
	case config.LockRedis:
		rdb, err := redisclient.NewClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		app.closers = append(app.closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		})
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL)
		app.Checks = append(app.Checks, api.HealthCheck{Name: "redis", Ping: redisclient.Pinger(rdb)})
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	default:
		locker = lock.NewLocalLocker()
	}

	app.Service = appointment.NewService(app.Store, locker, cat, logger)
	return app, nil
}
