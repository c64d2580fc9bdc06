package api

import (
	"time"

	"github.com/hackgods/clinic-appointment-booking/internal/appointment"
)

type ReserveAppointmentRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Gender   string `json:"gender,omitempty"`
	Contact  string `json:"contact,omitempty"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Provider string `json:"provider"`
	Reason   string `json:"reason,omitempty"`
}

type RebookAppointmentRequest struct {
	Email    string `json:"email"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Provider string `json:"provider"`
	Reason   string `json:"reason,omitempty"`
}

type VerifyAdminRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AppointmentResponse struct {
	ID       string                      `json:"id"`
	Patient  appointment.PatientSnapshot `json:"patient"`
	Date     string                      `json:"date"`
	Time     string                      `json:"time"`
	Provider string                      `json:"provider"`
	Status   string                      `json:"status"`
	Reason   string                      `json:"reason,omitempty"`
	BookedAt time.Time                   `json:"booked_at"`
}

func toResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:       a.ID,
		Patient:  a.Patient,
		Date:     a.Date,
		Time:     a.Time,
		Provider: a.Provider,
		Status:   string(a.Status),
		Reason:   a.Reason,
		BookedAt: a.BookedAt,
	}
}

type AvailableSlotsResponse struct {
	Provider string   `json:"provider"`
	Date     string   `json:"date"`
	Slots    []string `json:"slots"`
}

type SlotAvailabilityResponse struct {
	Provider  string `json:"provider"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
