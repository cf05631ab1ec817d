package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carelink/clinic-scheduling/internal/schedule"
	"github.com/carelink/clinic-scheduling/pkg/logging"
)

// SchedulingService is the slice of *schedule.Service the handlers use.
type SchedulingService interface {
	AvailableSlots(ctx context.Context, providerID *uuid.UUID, date time.Time) ([]schedule.Slot, error)
	Book(ctx context.Context, req schedule.BookingRequest) (*schedule.Appointment, error)
	Transition(ctx context.Context, id uuid.UUID, to schedule.Status) (*schedule.Appointment, error)
	List(ctx context.Context, requestor schedule.Requestor, f schedule.ListFilter) ([]schedule.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error)
}

type RouterConfig struct {
	Service   SchedulingService
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	JWTSecret string
	Env       string
	Version   string
	Logger    *logging.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health and metrics stay outside auth
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Get("/providers/{id}/slots", slotsHandler(cfg.Service))

		r.Post("/appointments", createAppointmentHandler(cfg.Service))
		r.Get("/appointments", listAppointmentsHandler(cfg.Service))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/status", transitionHandler(cfg.Service))
	})

	return r
}
