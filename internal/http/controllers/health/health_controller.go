// Package health expone liveness y readiness.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/catalystwells/grantd/internal/observability/logger"
)

// Pinger es cualquier dependencia que sepa verificar su conexión (store, cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController responde /healthz y /readyz.
type HealthController struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// NewHealthController recibe los checks de readiness por nombre.
func NewHealthController(checks map[string]Pinger) *HealthController {
	return &HealthController{checks: checks, timeout: 2 * time.Second}
}

// Live: el proceso está vivo. No toca dependencias.
func (c *HealthController) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Ready pinga cada dependencia; cualquier falla => 503.
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := c.checks[name].Ping(ctx); err != nil {
			logger.From(ctx).Warn("readiness check failed", logger.Component(name), logger.Err(err))
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "unavailable"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": results})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
