// Package handlers implements the JSON endpoints of the HTTP API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/rltrader/internal/analytics"
	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/papertrade"
	"github.com/sawpanic/rltrader/internal/persistence"
	"github.com/sawpanic/rltrader/internal/signal"
)

type SignalService interface {
	Signal(ctx context.Context, req signal.Request) (signal.Response, error)
}

type PaperTrader interface {
	Run(ctx context.Context, req papertrade.Request) (*papertrade.Result, error)
}

type Analytics interface {
	Risk(ctx context.Context, symbol string) (analytics.RiskMetrics, error)
	History(ctx context.Context, symbol string, limit int) ([]analytics.PricePoint, error)
	Indicators(ctx context.Context, symbol string, limit int) ([]analytics.IndicatorPoint, error)
}

// BreakerState is implemented by guarded bar sources.
type BreakerState interface {
	State() string
}

// Deps are the services behind the endpoints. DB and Breaker may be nil.
type Deps struct {
	Signals    SignalService
	Paper      PaperTrader
	Analytics  Analytics
	DB         persistence.RepositoryHealth
	DBEnabled  bool
	Breaker    BreakerState
	Version    string
	DemoMode   bool
	DataSource string
}

// Handlers manages all HTTP endpoint handlers
type Handlers struct {
	deps      Deps
	startTime time.Time
}

func NewHandlers(deps Deps) *Handlers {
	if deps.Version == "" {
		deps.Version = "dev"
	}
	return &Handlers{deps: deps, startTime: time.Now()}
}

type ctxKey struct{}

// WithRequestID stores the request ID for error bodies and logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the ID set by WithRequestID, or "unknown".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return "unknown"
}

// writeJSON writes JSON response with proper error handling
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError writes standardized error response
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: RequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func (h *Handlers) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	if status >= 500 {
		log.Error().Err(err).Str("request_id", RequestID(r.Context())).Str("path", r.URL.Path).Msg("Request failed")
	}
	h.writeError(w, r, status, code, err.Error())
}

// StatusFor returns the HTTP status and error code for err.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInsufficientData):
		return http.StatusUnprocessableEntity, "insufficient_data"
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrConstruction):
		return http.StatusBadRequest, "construction_error"
	default:
		return http.StatusBadGateway, "upstream_error"
	}
}

// NotFound handles 404 responses
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}
