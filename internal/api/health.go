package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// HealthHandler exposes liveness and readiness probes. Readiness pings
// both stores: Postgres holds the queues and Redis holds the per-doctor
// locks, so the service cannot take queue mutations with either one
// down.
type HealthHandler struct {
	pgPool  *pgxpool.Pool
	redis   *redis.Client
	env     string
	version string
}

func NewHealthHandler(pgPool *pgxpool.Pool, redis *redis.Client, env, version string) *HealthHandler {
	return &HealthHandler{
		pgPool:  pgPool,
		redis:   redis,
		env:     env,
		version: version,
	}
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Env     string            `json:"env,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"postgres": "ok",
		"redis":    "ok",
	}
	ready := true

	if err := h.probe(r.Context(), h.pgPool.Ping); err != nil {
		checks["postgres"] = "down"
		ready = false
	}
	if err := h.probe(r.Context(), func(ctx context.Context) error {
		return h.redis.Ping(ctx).Err()
	}); err != nil {
		checks["redis"] = "down"
		ready = false
	}

	status, httpStatus := "ok", http.StatusOK
	if !ready {
		status, httpStatus = "unavailable", http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  status,
		Version: h.version,
		Env:     h.env,
		Checks:  checks,
	})
}

func (h *HealthHandler) probe(ctx context.Context, ping func(context.Context) error) error {
	probeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return ping(probeCtx)
}
