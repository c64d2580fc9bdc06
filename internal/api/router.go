package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-booking/internal/admin"
	"github.com/hackgods/clinic-appointment-booking/internal/appointment"
)

type RouterConfig struct {
	Service *appointment.Service
	Gate    *admin.Gate
	Checks  []HealthCheck
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestContextMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Catalog
	cat := cfg.Service.Catalog()
	r.Get("/catalog/providers", staticHandler(cat.Providers()))
	r.Get("/catalog/slots", staticHandler(cat.TimeSlots()))
	r.Get("/catalog/services", staticHandler(cat.Services()))

	r.Get("/availability", availabilityHandler(cfg.Service))

	// Patient facing appointment endpoints
	r.Post("/appointments", reserveAppointmentHandler(cfg.Service))
	r.Delete("/appointments", cancelByEmailHandler(cfg.Service))
	r.Post("/appointments/rebook", rebookAppointmentHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Delete("/appointments/{id}", cancelAppointmentHandler(cfg.Service))

	// Admin endpoints
	r.Post("/admin/verify", verifyAdminHandler(cfg.Gate))
	r.Group(func(r chi.Router) {
		r.Use(cfg.Gate.Middleware(cfg.Logger))
		r.Get("/appointments", listAppointmentsHandler(cfg.Service))
		r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/decline", declineAppointmentHandler(cfg.Service))
	})

	return r
}
