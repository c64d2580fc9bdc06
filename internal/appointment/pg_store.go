package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation = "23505"

	constraintActiveSlot     = "appointments_active_slot_uq"
	constraintAppointmentKey = "appointments_pkey"
	constraintPatientEmail   = "patients_email_key"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

const appointmentColumns = `
	a.id, p.name, p.email, a.appointment_date, a.appointment_time,
	a.provider, a.status, a.reason, a.booked_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var gender, contact *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&gender,
		&contact,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	if gender != nil {
		p.Gender = *gender
	}
	if contact != nil {
		p.Contact = *contact
	}
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string

	err := row.Scan(
		&a.ID,
		&a.Patient.Name,
		&a.Patient.Email,
		&a.Date,
		&a.Time,
		&a.Provider,
		&status,
		&a.Reason,
		&a.BookedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Status = AppointmentStatus(status)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// mapPgError turns unique violations into the store's sentinel errors.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}

	switch pgErr.ConstraintName {
	case constraintActiveSlot:
		return ErrSlotUnavailable
	case constraintAppointmentKey:
		return ErrDuplicateAppointmentID
	case constraintPatientEmail:
		return ErrPatientExists
	default:
		return err
	}
}

// Interface methods

func (s *PgStore) FindPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, gender, contact, created_at
		FROM patients
		WHERE email = $1
	`, email)
	return scanPatient(row)
}

func (s *PgStore) InsertPatient(ctx context.Context, p Patient) (*Patient, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO patients (id, name, email, gender, contact, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, name, email, gender, contact, created_at
	`, p.ID, p.Name, p.Email, p.Gender, p.Contact)

	created, err := scanPatient(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return created, nil
}

func (s *PgStore) InsertAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, appointment_date, appointment_time, provider, status, reason, booked_at)
		SELECT $1, p.id, $3, $4, $5, $6, $7, $8
		FROM patients p
		WHERE p.email = $2
		RETURNING id
	`, appt.ID, appt.Patient.Email, appt.Date, appt.Time, appt.Provider, string(appt.Status), appt.Reason, appt.BookedAt).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, mapPgError(err)
	}

	return &appt, nil
}

func (s *PgStore) IsSlotTaken(ctx context.Context, provider, date, t string) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE provider = $1
			  AND appointment_date = $2
			  AND appointment_time = $3
			  AND status IN ('Pending', 'Confirmed')
		)
	`, provider, date, t).Scan(&taken)
	if err != nil {
		return false, err
	}
	return taken, nil
}

func (s *PgStore) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.id = $1
	`, id)
	return scanAppointment(row)
}

func (s *PgStore) UpdateStatus(ctx context.Context, id string, status AppointmentStatus) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $2
		WHERE id = $1
	`, id, string(status))
	if err != nil {
		return false, mapPgError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PgStore) DeleteByAppointmentID(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PgStore) DeleteAllByPatientEmail(ctx context.Context, email string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM appointments a
		USING patients p
		WHERE a.patient_id = p.id
		  AND p.email = $1
	`, email)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PgStore) ListAllAppointments(ctx context.Context) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		ORDER BY to_date(a.appointment_date, 'MM/DD/YYYY') DESC, a.booked_at DESC, a.id
	`)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *PgStore) ListPendingBookedBefore(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.status = 'Pending'
		  AND a.booked_at < $1
		ORDER BY a.booked_at
	`, cutoff)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *PgStore) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, nullableString(ev.AppointmentID), ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
