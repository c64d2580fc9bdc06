package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-booking/internal/admin"
	"github.com/hackgods/clinic-appointment-booking/internal/appointment"
)

func staticHandler(v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, v)
	}
}

func availabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		provider, date, t := q.Get("provider"), q.Get("date"), q.Get("time")
		if provider == "" || date == "" {
			writeError(w, http.StatusBadRequest, "invalid_query", "provider and date are required")
			return
		}

		if t != "" {
			ok, err := svc.IsSlotAvailable(r.Context(), provider, date, t)
			if err != nil {
				handleBookingError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, SlotAvailabilityResponse{
				Provider: provider, Date: date, Time: t, Available: ok,
			})
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), provider, date)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, AvailableSlotsResponse{Provider: provider, Date: date, Slots: slots})
	}
}

func reserveAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReserveAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Reserve(r.Context(), appointment.ReserveRequest{
			Patient: appointment.PatientInput{
				Name:    req.Name,
				Email:   req.Email,
				Gender:  req.Gender,
				Contact: req.Contact,
			},
			Date:     req.Date,
			Time:     req.Time,
			Provider: req.Provider,
			Reason:   req.Reason,
		})
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toResponse(appt))
	}
}

func rebookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RebookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Email == "" {
			writeError(w, http.StatusBadRequest, "invalid_email", "email is required")
			return
		}

		appt, err := svc.Rebook(r.Context(), appointment.RebookRequest{
			Email:    req.Email,
			Date:     req.Date,
			Time:     req.Time,
			Provider: req.Provider,
			Reason:   req.Reason,
		})
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := svc.AllAppointments(r.Context())
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := svc.Cancel(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		if !removed {
			writeError(w, http.StatusNotFound, "appointment_not_found", appointment.ErrAppointmentNotFound.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func cancelByEmailHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		if email == "" {
			writeError(w, http.StatusBadRequest, "invalid_email", "email query parameter is required")
			return
		}

		removed, err := svc.CancelByEmail(r.Context(), email)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		if !removed {
			writeError(w, http.StatusNotFound, "appointment_not_found", "no appointments for this email")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func confirmAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return statusHandler(svc, svc.Confirm)
}

func declineAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return statusHandler(svc, svc.Decline)
}

func statusHandler(svc *appointment.Service, apply func(ctx context.Context, id string) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		found, err := apply(r.Context(), id)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "appointment_not_found", appointment.ErrAppointmentNotFound.Error())
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(appt))
	}
}

func verifyAdminHandler(gate *admin.Gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifyAdminRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if !gate.Verify(req.Username, req.Password) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "username or password is incorrect")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
	}
}

func handleBookingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrUnknownProvider):
		writeError(w, http.StatusBadRequest, "unknown_provider", err.Error())
	case errors.Is(err, appointment.ErrUnknownTimeSlot):
		writeError(w, http.StatusBadRequest, "unknown_time_slot", err.Error())
	case errors.Is(err, appointment.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
	case errors.Is(err, appointment.ErrInvalidPatient):
		writeError(w, http.StatusBadRequest, "invalid_patient", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrPersistenceUnavailable):
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("store unavailable")
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "appointment store is unavailable, please retry later")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("unhandled booking error")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
