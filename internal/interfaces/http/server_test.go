package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/rltrader/internal/analytics"
	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/interfaces/http/handlers"
	"github.com/sawpanic/rltrader/internal/metrics"
	"github.com/sawpanic/rltrader/internal/papertrade"
	"github.com/sawpanic/rltrader/internal/signal"
)

type fakeSignals struct {
	got signal.Request
	err error
}

func (f *fakeSignals) Signal(_ context.Context, req signal.Request) (signal.Response, error) {
	f.got = req
	if f.err != nil {
		return signal.Response{}, f.err
	}
	return signal.Response{Symbol: strings.ToUpper(req.Symbol), Signal: signal.Buy, Confidence: 0.6, Context: "test"}, nil
}

type fakePaper struct {
	got papertrade.Request
	err error
}

func (f *fakePaper) Run(_ context.Context, req papertrade.Request) (*papertrade.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &papertrade.Result{Symbol: req.Symbol, Days: req.Days, InitialCash: 100000, FinalCash: 99700,
		SharesHeld: 3, PortfolioValue: 100000, Trades: []papertrade.Trade{}}, nil
}

type fakeAnalytics struct {
	limit int
	err   error
}

func (f *fakeAnalytics) Risk(_ context.Context, symbol string) (analytics.RiskMetrics, error) {
	if f.err != nil {
		return analytics.RiskMetrics{}, f.err
	}
	return analytics.RiskMetrics{Symbol: symbol, Volatility: 0.2, MaxDrawdown: -0.1, VaR95: -0.02, Returns: 250}, nil
}

func (f *fakeAnalytics) History(_ context.Context, _ string, limit int) ([]analytics.PricePoint, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []analytics.PricePoint{{Date: "2024-01-02", Price: 101.5}}, nil
}

func (f *fakeAnalytics) Indicators(_ context.Context, _ string, limit int) ([]analytics.IndicatorPoint, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []analytics.IndicatorPoint{{Date: "2024-01-02", Close: 101.5, RSI: 55, MACD: 0.4, MACDSignal: 0.3, MACDHistogram: 0.1}}, nil
}

type fakeBreaker string

func (b fakeBreaker) State() string { return string(b) }

type fixture struct {
	srv       *Server
	signals   *fakeSignals
	paper     *fakePaper
	analytics *fakeAnalytics
	metrics   *metrics.Registry
}

func newFixture(t *testing.T, breaker handlers.BreakerState) *fixture {
	t.Helper()
	f := &fixture{
		signals:   &fakeSignals{},
		paper:     &fakePaper{},
		analytics: &fakeAnalytics{},
		metrics:   metrics.NewRegistry(),
	}
	h := handlers.NewHandlers(handlers.Deps{
		Signals:    f.signals,
		Paper:      f.paper,
		Analytics:  f.analytics,
		Breaker:    breaker,
		Version:    "test",
		DataSource: "csv",
	})
	f.srv = NewServer(DefaultServerConfig(), h, f.metrics)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestTradeSignal(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/trade-signal", `{"symbol":"aapl"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 8)

	var resp signal.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AAPL", resp.Symbol)
	assert.Equal(t, signal.Buy, resp.Signal)
	assert.Equal(t, 0.6, resp.Confidence)

	// defaults
	assert.Equal(t, 1, f.signals.got.Horizon)
	assert.Equal(t, 0, f.signals.got.Position)
}

func TestTradeSignalErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"missing symbol", `{}`, nil, http.StatusBadRequest, "invalid_request"},
		{"bad json", `{"symbol":`, nil, http.StatusBadRequest, "invalid_json"},
		{"no model", `{"symbol":"AAPL"}`, fmt.Errorf("load: %w", domain.ErrNotFound), http.StatusNotFound, "not_found"},
		{"bad position", `{"symbol":"AAPL","position":4}`, domain.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
		{"short history", `{"symbol":"AAPL"}`, domain.ErrInsufficientData, http.StatusUnprocessableEntity, "insufficient_data"},
		{"upstream", `{"symbol":"AAPL"}`, errors.New("yahoo: 503"), http.StatusBadGateway, "upstream_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.signals.err = tt.err
			rec := f.do(t, http.MethodPost, "/trade-signal", tt.body)

			assert.Equal(t, tt.status, rec.Code)
			var e handlers.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, rec.Header().Get("X-Request-ID"), e.RequestID)
			assert.NotEmpty(t, e.Message)
		})
	}
}

func TestPaperTrade(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/paper-trade", `{"symbol":"AAPL"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, f.paper.got.Days)

	var res papertrade.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 3, res.SharesHeld)
	assert.Equal(t, 99700.0, res.FinalCash)

	f.paper.err = domain.ErrInsufficientData
	rec = f.do(t, http.MethodPost, "/paper-trade", `{"symbol":"AAPL","days":10}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, 10, f.paper.got.Days)
}

func TestHistoryAndRisk(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/history/aapl", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 60, f.analytics.limit)
	var h handlers.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "AAPL", h.Symbol)
	assert.Len(t, h.History, 1)

	rec = f.do(t, http.MethodGet, "/history/AAPL?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, f.analytics.limit)

	rec = f.do(t, http.MethodGet, "/history/AAPL?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/risk/AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"symbol":"AAPL","volatility":0.2,"max_drawdown":-0.1,"var_95":-0.02,"returns":250}`, rec.Body.String())

	f.analytics.err = domain.ErrInsufficientData
	rec = f.do(t, http.MethodGet, "/risk/AAPL", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestIndicators(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/indicators/msft", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, f.analytics.limit)
	var out handlers.IndicatorsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "MSFT", out.Symbol)
	require.Len(t, out.Indicators, 1)
	assert.Equal(t, 0.1, out.Indicators[0].MACDHistogram)
	assert.Contains(t, rec.Body.String(), `"bb_middle"`)

	rec = f.do(t, http.MethodGet, "/indicators/MSFT?limit=20", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, f.analytics.limit)

	rec = f.do(t, http.MethodGet, "/indicators/MSFT?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.analytics.err = domain.ErrNotFound
	rec = f.do(t, http.MethodGet, "/indicators/MSFT", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := newFixture(t, fakeBreaker("closed")).do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var h handlers.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "test", h.Version)
	assert.Equal(t, "closed", h.Breaker)
	assert.Nil(t, h.Database)

	rec = newFixture(t, fakeBreaker("open")).do(t, http.MethodGet, "/health", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "degraded", h.Status)
}

func TestMetricsEndpointRecordsRoutes(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, http.MethodGet, "/risk/AAPL", "")
	f.do(t, http.MethodGet, "/risk/MSFT", "")

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "rltrader_http_request_duration_seconds")
	assert.Contains(t, body, `route="/risk/{symbol}"`)
	assert.NotContains(t, body, `route="/risk/AAPL"`)
}

func TestNotFoundAndCORS(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "endpoint_not_found")

	req := httptest.NewRequest(http.MethodOptions, "/trade-signal", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	out := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
	assert.Equal(t, "http://localhost:3000", out.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, out.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORSOnlyEchoesLocalOrigins(t *testing.T) {
	tests := []struct {
		origin string
		allow  bool
	}{
		{"http://localhost:3000", true},
		{"http://127.0.0.1:8080", true},
		{"http://[::1]:5173", true},
		{"http://localhost.attacker.com", false},
		{"https://evil.example/localhost", false},
		{"http://127.0.0.1.nip.io", false},
		{"", false},
		{"::not a url", false},
	}
	f := newFixture(t, nil)
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/trade-signal", nil)
		req.Header.Set("Origin", tt.origin)
		out := httptest.NewRecorder()
		f.srv.Handler().ServeHTTP(out, req)
		if tt.allow {
			assert.Equal(t, tt.origin, out.Header().Get("Access-Control-Allow-Origin"), tt.origin)
		} else {
			assert.Empty(t, out.Header().Get("Access-Control-Allow-Origin"), tt.origin)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrInsufficientData, http.StatusUnprocessableEntity},
		{domain.ErrInvalidRequest, http.StatusBadRequest},
		{domain.ErrConstruction, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusBadGateway},
	}
	for _, tt := range tests {
		got, _ := handlers.StatusFor(fmt.Errorf("wrapped: %w", tt.err))
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}
