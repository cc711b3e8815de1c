package metrics

import (
	"net/http/httptest"
	"testing"

	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, r *Registry) float64 {
	t.Helper()
	m := &io_prometheus_client.Metric{}
	require.NoError(t, r.CacheHitRatio.Write(m))
	return m.GetGauge().GetValue()
}

func TestCacheHitRatio(t *testing.T) {
	r := NewRegistry()
	r.RecordCacheMiss(CacheAgents)
	r.RecordCacheHit(CacheAgents)
	r.RecordCacheHit(CacheAgents)
	r.RecordCacheHit(CacheSentiment)

	assert.InDelta(t, 0.75, gaugeValue(t, r), 1e-12)
	assert.Equal(t, 2.0, CounterValue(r.CacheHits.WithLabelValues(CacheAgents)))
}

func TestTrainingMetrics(t *testing.T) {
	r := NewRegistry()
	r.ObserveEpisode("AAPL", 0.12, 0.5)
	r.ObserveEpisode("AAPL", 0.2, 0.4)
	r.ObserveReplay("AAPL", 32)
	r.ObserveReplay("AAPL", 0)

	assert.Equal(t, 2.0, CounterValue(r.TrainingEpisodes.WithLabelValues("AAPL")))
	assert.Equal(t, 32.0, CounterValue(r.ReplayUpdates.WithLabelValues("AAPL")))
}

func TestNilRegistryIsSafe(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.RecordCacheHit(CacheAgents)
		r.ObserveEpisode("X", 1, 1)
		r.RecordSignal("BUY")
		r.RecordPaperRun("X", 1)
		r.StartStepTimer("noop").Stop("ok")
	})
}

func TestSeparateRegistriesAndHandler(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	a.RecordSignal("BUY")
	b.RecordSignal("SELL")

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `rltrader_signals_total{signal="BUY"} 1`)
	assert.NotContains(t, rec.Body.String(), `signal="SELL"`)
}
