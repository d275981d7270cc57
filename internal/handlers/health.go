package handlers

import (
	"net/http"
	"time"

	domain "github.com/atlas-naturals/api/internal/domain"
	"github.com/atlas-naturals/api/internal/platform/httpx"
	"github.com/atlas-naturals/api/internal/services"
)

// HealthHandlers serves the /healthz liveness and /readyz readiness endpoints.
type HealthHandlers struct {
	system    services.SystemService
	startedAt time.Time
	now       func() time.Time
}

// HealthOption customises health handler construction.
type HealthOption func(*HealthHandlers)

// WithHealthClock injects a clock, primarily for tests.
func WithHealthClock(now func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHealthHandlers constructs health handlers. A nil system service degrades
// /readyz to the same cheap liveness check as /healthz.
func NewHealthHandlers(system services.SystemService, opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		system: system,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.startedAt = h.now()
	return h
}

// Healthz is a cheap liveness probe that never touches dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	now := h.now().UTC()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    domain.HealthStatusOK,
		"uptime":    now.Sub(h.startedAt).String(),
		"timestamp": now.Format(time.RFC3339),
	})
}

// Readyz reports dependency health. Degraded dependencies keep the service in
// rotation; only a hard error takes it out.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		h.Healthz(w, r)
		return
	}

	report, err := h.system.Health(r.Context())
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("health_unavailable", "health report unavailable", http.StatusServiceUnavailable))
		return
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}

	checks := make(map[string]any, len(report.Checks))
	for name, check := range report.Checks {
		entry := map[string]any{
			"status":     check.Status,
			"latency_ms": check.Latency.Milliseconds(),
		}
		if check.Detail != "" {
			entry["detail"] = check.Detail
		}
		if check.Error != "" {
			entry["error"] = check.Error
		}
		checks[name] = entry
	}

	httpx.WriteJSON(w, status, map[string]any{
		"status":      report.Status,
		"version":     report.Version,
		"environment": report.Environment,
		"uptime":      report.Uptime.String(),
		"checks":      checks,
		"generatedAt": report.GeneratedAt.UTC().Format(time.RFC3339),
	})
}
