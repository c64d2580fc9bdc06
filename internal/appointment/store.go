package appointment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPatientNotFound        = errors.New("patient not found")
	ErrPatientExists          = errors.New("patient already exists")
	ErrAppointmentNotFound    = errors.New("appointment not found")
	ErrDuplicateAppointmentID = errors.New("appointment id already in use")
)

// Store is the persistence collaborator of the booking engine: the patient
// directory plus the appointment records.
type Store interface {
	// Patient directory
	FindPatientByEmail(ctx context.Context, email string) (*Patient, error)
	InsertPatient(ctx context.Context, p Patient) (*Patient, error)

	// Appointments. InsertAppointment returns ErrSlotUnavailable when another
	// pending or confirmed appointment already holds the slot.
	InsertAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
	IsSlotTaken(ctx context.Context, provider, date, time string) (bool, error)
	GetAppointment(ctx context.Context, id string) (*Appointment, error)
	UpdateStatus(ctx context.Context, id string, status AppointmentStatus) (bool, error)
	DeleteByAppointmentID(ctx context.Context, id string) (bool, error)
	DeleteAllByPatientEmail(ctx context.Context, email string) (int, error)
	ListAllAppointments(ctx context.Context) ([]Appointment, error)

	// Stale-worker
	ListPendingBookedBefore(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error

	Ping(ctx context.Context) error
}
