package handlers

import (
	"net/http"
	"time"
)

// Health handles GET /health. It always answers 200; a failing database
// only degrades the status.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC(),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Version:    h.deps.Version,
		DemoMode:   h.deps.DemoMode,
		DataSource: h.deps.DataSource,
	}
	if h.deps.Breaker != nil {
		resp.Breaker = h.deps.Breaker.State()
		if resp.Breaker == "open" {
			resp.Status = "degraded"
		}
	}
	if h.deps.DBEnabled && h.deps.DB != nil {
		hc := h.deps.DB.Health(r.Context())
		resp.Database = &hc
		if !hc.Healthy {
			resp.Status = "degraded"
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}
