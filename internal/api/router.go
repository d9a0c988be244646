package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-queue/internal/queue"
	"github.com/clinicdesk/appointment-queue/internal/user"
)

type RouterConfig struct {
	Queue     *queue.Service
	Users     *user.Service
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Log       *zap.Logger
	JWTSecret string
	Env       string
	Version   string

	// Per-IP throttle for the credential endpoints.
	AuthRatePerSec float64
	AuthRateBurst  int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	authLimiter := NewRateLimiter(cfg.AuthRatePerSec, cfg.AuthRateBurst)

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Get("/doctors", listDoctorsHandler(cfg.Users))

		r.Group(func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/auth/register", registerHandler(cfg.Users))
			r.Post("/auth/register/doctor", registerDoctorHandler(cfg.Users))
			r.Post("/auth/login", loginHandler(cfg.Users))
		})

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.JWTSecret))

			r.Get("/auth/verify", verifyHandler(cfg.Users))
			r.Patch("/auth/profile", updateProfileHandler(cfg.Users))

			r.Get("/appointments", listAppointmentsHandler(cfg.Queue))
			r.Post("/appointments", bookAppointmentHandler(cfg.Queue))
			r.Get("/appointments/doctor/stats", doctorStatsHandler(cfg.Queue))
			r.Patch("/appointments/{id}/complete", completeAppointmentHandler(cfg.Queue))
		})
	})

	return r
}
