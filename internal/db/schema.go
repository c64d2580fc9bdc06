package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is idempotent. The partial unique index is what keeps two pending or
// confirmed appointments off the same provider/date/time.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL,
		gender     TEXT,
		contact    TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT patients_email_key UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id               VARCHAR(8) NOT NULL,
		patient_id       UUID NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
		appointment_date VARCHAR(10) NOT NULL,
		appointment_time VARCHAR(8) NOT NULL,
		provider         TEXT NOT NULL,
		status           VARCHAR(16) NOT NULL DEFAULT 'Pending',
		reason           TEXT NOT NULL DEFAULT '',
		booked_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT appointments_pkey PRIMARY KEY (id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS appointments_active_slot_uq
		ON appointments (provider, appointment_date, appointment_time)
		WHERE status IN ('Pending', 'Confirmed')`,
	`CREATE INDEX IF NOT EXISTS appointments_patient_idx ON appointments (patient_id)`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id             BIGSERIAL PRIMARY KEY,
		event_type     TEXT NOT NULL,
		appointment_id VARCHAR(8),
		payload        JSONB,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
