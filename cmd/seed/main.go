package main

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-booking/internal/appointment"
	"github.com/hackgods/clinic-appointment-booking/internal/bootstrap"
	"github.com/hackgods/clinic-appointment-booking/internal/config"
	"github.com/hackgods/clinic-appointment-booking/internal/observability"
)

var reasons = []string{
	"Routine cleaning",
	"Tooth pain",
	"Braces adjustment",
	"Whitening consultation",
	"Filling",
	"Check-up",
}

// seed fills a postgres store with fake patients and requests spread over the
// coming weeks. Everything goes through the booking service so the slot rules hold.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := observability.InitLogger("seed", "dev", "info")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := observability.InitLogger("seed", cfg.Env, cfg.LogLevel)

	if cfg.StoreBackend != config.StorePostgres {
		logger.Fatal().Msg("seed requires STORE_BACKEND=postgres")
	}

	count := getInt("SEED_PATIENTS", 200)
	days := getInt("SEED_DAYS", 14)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer app.Close()

	gofakeit.Seed(time.Now().UnixNano())

	stats, err := seedAppointments(ctx, logger, app.Service, count, days)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed failed")
	}

	logger.Info().
		Int("reserved", stats.reserved).
		Int("confirmed", stats.confirmed).
		Int("declined", stats.declined).
		Int("slot_taken", stats.taken).
		Msg("seed complete")
}

type seedStats struct {
	reserved  int
	confirmed int
	declined  int
	taken     int
}

func seedAppointments(ctx context.Context, logger zerolog.Logger, svc *appointment.Service, count, days int) (seedStats, error) {
	var stats seedStats

	cat := svc.Catalog()
	providers := cat.Providers()
	slots := cat.TimeSlots()
	today := time.Now()

	for i := 0; i < count; i++ {
		date := today.AddDate(0, 0, gofakeit.Number(1, days)).Format(appointment.DateLayout)

		appt, err := svc.Reserve(ctx, appointment.ReserveRequest{
			Patient: appointment.PatientInput{
				Name:    gofakeit.Name(),
				Email:   gofakeit.Email(),
				Gender:  gofakeit.Gender(),
				Contact: gofakeit.Phone(),
			},
			Date:     date,
			Time:     slots[gofakeit.Number(0, len(slots)-1)],
			Provider: providers[gofakeit.Number(0, len(providers)-1)],
			Reason:   reasons[gofakeit.Number(0, len(reasons)-1)],
		})
		switch {
		case errors.Is(err, appointment.ErrSlotUnavailable), errors.Is(err, appointment.ErrSlotBeingBooked):
			stats.taken++
			continue
		case err != nil:
			return stats, err
		}
		stats.reserved++

		// leave roughly half pending for the admin queue
		switch gofakeit.Number(0, 3) {
		case 0:
			if _, err := svc.Confirm(ctx, appt.ID); err != nil {
				return stats, err
			}
			stats.confirmed++
		case 1:
			if _, err := svc.Decline(ctx, appt.ID); err != nil {
				return stats, err
			}
			stats.declined++
		}

		if (i+1)%50 == 0 {
			logger.Info().Msgf("appointments seeded: %d/%d", i+1, count)
		}
	}

	return stats, nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
