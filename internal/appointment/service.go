package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-booking/internal/catalog"
	"github.com/hackgods/clinic-appointment-booking/internal/lock"
)

const (
	EventAppointmentReserved  = "APPOINTMENT_RESERVED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentDeclined  = "APPOINTMENT_DECLINED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentRebooked  = "APPOINTMENT_REBOOKED"
)

var (
	ErrSlotUnavailable        = errors.New("slot is already booked")
	ErrSlotBeingBooked        = errors.New("slot is currently being booked, please retry")
	ErrPersistenceUnavailable = errors.New("appointment store unavailable")
	ErrUnknownProvider        = errors.New("unknown provider")
	ErrUnknownTimeSlot        = errors.New("unknown time slot")
	ErrInvalidDate            = errors.New("date must be in MM/DD/YYYY form")
	ErrInvalidPatient         = errors.New("patient name and email are required")
)

const idAttempts = 3

// PatientInput is the identity a caller books with. Gender and Contact are
// optional and stored as PlaceholderField when empty.
type PatientInput struct {
	Name    string
	Email   string
	Gender  string
	Contact string
}

type ReserveRequest struct {
	Patient  PatientInput
	Date     string
	Time     string
	Provider string
	Reason   string
}

type RebookRequest struct {
	Email    string
	Date     string
	Time     string
	Provider string
	Reason   string
}

type Service struct {
	store   Store
	locker  lock.Locker
	catalog *catalog.Catalog
	logger  zerolog.Logger
	now     func() time.Time
	newID   func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func NewService(store Store, locker lock.Locker, cat *catalog.Catalog, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		locker:  locker,
		catalog: cat,
		logger:  logger.With().Str("component", "booking").Logger(),
		now:     time.Now,
		newID:   newAppointmentID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newAppointmentID returns an 8 character token taken from a random UUID.
func newAppointmentID() string {
	return uuid.NewString()[:8]
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistenceUnavailable, err)
}

func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

func (s *Service) validateSlot(provider, date, t string) error {
	if !s.catalog.HasProvider(provider) {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	if t != "" && !s.catalog.HasTimeSlot(t) {
		return fmt.Errorf("%w: %q", ErrUnknownTimeSlot, t)
	}
	return validateDate(date)
}

func validateDate(date string) error {
	d, err := time.Parse(DateLayout, date)
	if err != nil || d.Format(DateLayout) != date {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return nil
}

// Reserve books a slot for a patient. The availability check and the insert
// run under the slot lock so two concurrent requests cannot both succeed.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (*Appointment, error) {
	if err := s.validateSlot(req.Provider, req.Date, req.Time); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Patient.Name) == "" || strings.TrimSpace(req.Patient.Email) == "" {
		return nil, ErrInvalidPatient
	}

	key := lock.SlotKey{Provider: req.Provider, Date: req.Date, Time: req.Time}

	var created *Appointment

	err := s.locker.WithSlotLock(ctx, key, func(lockCtx context.Context) error {
		taken, err := s.store.IsSlotTaken(lockCtx, req.Provider, req.Date, req.Time)
		if err != nil {
			return storeErr("check slot", err)
		}
		if taken {
			return ErrSlotUnavailable
		}

		patient, err := s.findOrCreatePatient(lockCtx, req.Patient)
		if err != nil {
			return err
		}

		appt, err := s.insertAppointment(lockCtx, Appointment{
			Patient:  PatientSnapshot{Name: patient.Name, Email: patient.Email},
			Date:     req.Date,
			Time:     req.Time,
			Provider: req.Provider,
			Status:   StatusPending,
			Reason:   req.Reason,
			BookedAt: s.now(),
		})
		if err != nil {
			return err
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentReserved, map[string]any{
			"provider": appt.Provider,
			"date":     appt.Date,
			"time":     appt.Time,
			"email":    appt.Patient.Email,
		})

		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, lock.ErrLockNotAcquired):
			return nil, ErrSlotBeingBooked
		case errors.Is(err, ErrSlotUnavailable),
			errors.Is(err, ErrPersistenceUnavailable):
			return nil, err
		default:
			return nil, storeErr("slot lock", err)
		}
	}

	s.logger.Info().
		Str("appointment_id", created.ID).
		Str("provider", created.Provider).
		Str("date", created.Date).
		Str("time", created.Time).
		Msg("appointment reserved")

	return created, nil
}

func (s *Service) findOrCreatePatient(ctx context.Context, in PatientInput) (*Patient, error) {
	p, err := s.store.FindPatientByEmail(ctx, in.Email)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrPatientNotFound) {
		return nil, storeErr("find patient", err)
	}

	p, err = s.store.InsertPatient(ctx, Patient{
		Name:    in.Name,
		Email:   in.Email,
		Gender:  orPlaceholder(in.Gender),
		Contact: orPlaceholder(in.Contact),
	})
	if errors.Is(err, ErrPatientExists) {
		// lost a race with another booking for the same new patient
		p, err = s.store.FindPatientByEmail(ctx, in.Email)
	}
	if err != nil {
		return nil, storeErr("create patient", err)
	}
	return p, nil
}

func orPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return PlaceholderField
	}
	return v
}

func (s *Service) insertAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	for attempt := 0; attempt < idAttempts; attempt++ {
		appt.ID = s.newID()

		created, err := s.store.InsertAppointment(ctx, appt)
		switch {
		case err == nil:
			return created, nil
		case errors.Is(err, ErrDuplicateAppointmentID):
			s.logger.Warn().Str("appointment_id", appt.ID).Msg("appointment id collision, retrying")
			continue
		case errors.Is(err, ErrSlotUnavailable):
			return nil, err
		default:
			return nil, storeErr("insert appointment", err)
		}
	}
	return nil, storeErr("insert appointment", ErrDuplicateAppointmentID)
}

// IsSlotAvailable fails closed: when the store cannot answer, the slot is
// reported as unavailable along with the error.
// Unknown providers, time labels or malformed dates are rejected the same way
// Reserve rejects them.
func (s *Service) IsSlotAvailable(ctx context.Context, provider, date, t string) (bool, error) {
	if err := s.validateSlot(provider, date, t); err != nil {
		return false, err
	}
	return s.slotFree(ctx, provider, date, t)
}

func (s *Service) slotFree(ctx context.Context, provider, date, t string) (bool, error) {
	taken, err := s.store.IsSlotTaken(ctx, provider, date, t)
	if err != nil {
		return false, storeErr("check slot", err)
	}
	return !taken, nil
}

// AvailableSlots lists the free time slots of a provider on a date, in catalog order.
func (s *Service) AvailableSlots(ctx context.Context, provider, date string) ([]string, error) {
	if err := s.validateSlot(provider, date, ""); err != nil {
		return nil, err
	}

	available := []string{}
	for _, t := range s.catalog.TimeSlots() {
		ok, err := s.slotFree(ctx, provider, date, t)
		if err != nil {
			return nil, err
		}
		if ok {
			available = append(available, t)
		}
	}
	return available, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, storeErr("get appointment", err)
	}
	return appt, nil
}

// Cancel hard-deletes one appointment. A missing id is reported as false, not an error.
func (s *Service) Cancel(ctx context.Context, id string) (bool, error) {
	removed, err := s.store.DeleteByAppointmentID(ctx, id)
	if err != nil {
		return false, storeErr("cancel appointment", err)
	}
	if removed {
		s.logEvent(ctx, id, EventAppointmentCancelled, map[string]any{})
		s.logger.Info().Str("appointment_id", id).Msg("appointment cancelled")
	}
	return removed, nil
}

// CancelByEmail removes every appointment of the patient with that email.
func (s *Service) CancelByEmail(ctx context.Context, email string) (bool, error) {
	n, err := s.store.DeleteAllByPatientEmail(ctx, email)
	if err != nil {
		return false, storeErr("cancel by email", err)
	}
	if n > 0 {
		s.logEvent(ctx, "", EventAppointmentCancelled, map[string]any{
			"email": email,
			"count": n,
		})
		s.logger.Info().Str("email", email).Int("count", n).Msg("appointments cancelled by email")
	}
	return n > 0, nil
}

func (s *Service) Confirm(ctx context.Context, id string) (bool, error) {
	return s.setStatus(ctx, id, StatusConfirmed, EventAppointmentConfirmed)
}

func (s *Service) Decline(ctx context.Context, id string) (bool, error) {
	return s.setStatus(ctx, id, StatusDeclined, EventAppointmentDeclined)
}

// setStatus overwrites the status whatever it currently is, so repeating a
// confirm or decline is a no-op. Re-confirming a declined appointment whose
// slot has since been taken fails with ErrSlotUnavailable.
func (s *Service) setStatus(ctx context.Context, id string, status AppointmentStatus, event string) (bool, error) {
	found, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			return false, err
		}
		return false, storeErr("update status", err)
	}
	if found {
		s.logEvent(ctx, id, event, map[string]any{"status": string(status)})
		s.logger.Info().Str("appointment_id", id).Str("status", string(status)).Msg("appointment status updated")
	}
	return found, nil
}

func (s *Service) AllAppointments(ctx context.Context) ([]Appointment, error) {
	appts, err := s.store.ListAllAppointments(ctx)
	if err != nil {
		return nil, storeErr("list appointments", err)
	}
	return appts, nil
}

// Rebook cancels every appointment of a known patient and reserves the new
// slot. The request is validated first, but it is not atomic: when the new
// slot is taken the patient is left without an appointment.
func (s *Service) Rebook(ctx context.Context, req RebookRequest) (*Appointment, error) {
	patient, err := s.store.FindPatientByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, storeErr("find patient", err)
	}

	// reject bad input before anything is cancelled
	if err := s.validateSlot(req.Provider, req.Date, req.Time); err != nil {
		return nil, err
	}

	if _, err := s.CancelByEmail(ctx, req.Email); err != nil {
		return nil, err
	}

	appt, err := s.Reserve(ctx, ReserveRequest{
		Patient:  PatientInput{Name: patient.Name, Email: patient.Email},
		Date:     req.Date,
		Time:     req.Time,
		Provider: req.Provider,
		Reason:   req.Reason,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("email", req.Email).Msg("rebook left patient without an appointment")
		return nil, err
	}

	s.logEvent(ctx, appt.ID, EventAppointmentRebooked, map[string]any{"email": req.Email})
	return appt, nil
}

// DeclineStalePending is intended to be called by the stale-worker
// periodically. Pending requests nobody reviewed within olderThan are declined
// so their slots open up again.
func (s *Service) DeclineStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}

	cutoff := s.now().Add(-olderThan)
	stale, err := s.store.ListPendingBookedBefore(ctx, cutoff)
	if err != nil {
		return 0, storeErr("find stale pending appointments", err)
	}

	declined := 0
	for _, appt := range stale {
		found, err := s.store.UpdateStatus(ctx, appt.ID, StatusDeclined)
		if err != nil {
			s.logger.Error().Err(err).Str("appointment_id", appt.ID).Msg("failed to decline stale appointment")
			continue
		}
		if !found {
			continue
		}
		declined++
		s.logEvent(ctx, appt.ID, EventAppointmentDeclined, map[string]any{
			"reason": "stale_pending",
		})
	}

	return declined, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.store.InsertEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID).
			Msg("failed to insert event log")
	}
}
