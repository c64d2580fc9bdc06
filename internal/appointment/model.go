package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "Pending"
	StatusConfirmed AppointmentStatus = "Confirmed"
	StatusDeclined  AppointmentStatus = "Declined"
)

// Holds reports whether an appointment in this status occupies its slot.
func (s AppointmentStatus) Holds() bool {
	return s == StatusPending || s == StatusConfirmed
}

// PlaceholderField fills directory fields the caller did not supply.
const PlaceholderField = "N/A"

// DateLayout is the MM/DD/YYYY form appointment dates are stored in.
const DateLayout = "01/02/2006"

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Gender    string
	Contact   string
	CreatedAt time.Time
}

// PatientSnapshot is the identity copied onto an appointment.
type PatientSnapshot struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Appointment struct {
	ID       string
	Patient  PatientSnapshot
	Date     string
	Time     string
	Provider string
	Status   AppointmentStatus
	Reason   string
	BookedAt time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID string
	Payload       []byte
	CreatedAt     time.Time
}
