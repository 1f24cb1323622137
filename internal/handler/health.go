package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/miguelbenajes/HoldedConnector/internal/httputil"
)

// Pinger checks that a backing store is reachable.
type Pinger func(ctx context.Context) error

// HealthHandler reports service liveness and store reachability.
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler creates a health handler running the given checks.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// HealthCheck returns health status
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(checks) > 0 {
		body["checks"] = checks
	}

	httputil.RespondJSON(w, status, body)
}
