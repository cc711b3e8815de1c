package handlers

import (
	"time"

	"github.com/sawpanic/rltrader/internal/analytics"
	"github.com/sawpanic/rltrader/internal/persistence"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse wraps recent closes.
type HistoryResponse struct {
	Symbol  string                 `json:"symbol"`
	History []analytics.PricePoint `json:"history"`
}

// IndicatorsResponse wraps the technical indicator table.
type IndicatorsResponse struct {
	Symbol     string                     `json:"symbol"`
	Indicators []analytics.IndicatorPoint `json:"indicators"`
}

// HealthResponse reports liveness and the state of optional dependencies.
type HealthResponse struct {
	Status     string                   `json:"status"` // "healthy" or "degraded"
	Timestamp  time.Time                `json:"timestamp"`
	Uptime     string                   `json:"uptime"`
	Version    string                   `json:"version"`
	DemoMode   bool                     `json:"demo_mode"`
	DataSource string                   `json:"data_source"`
	Breaker    string                   `json:"breaker,omitempty"`
	Database   *persistence.HealthCheck `json:"database,omitempty"`
}
