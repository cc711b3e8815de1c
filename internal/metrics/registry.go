package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// Cache names used as the cache_type label.
const (
	CacheAgents    = "agents"
	CacheSentiment = "sentiment"
)

var cacheTypes = []string{CacheAgents, CacheSentiment}

// Registry holds every Prometheus collector the service exports. It owns its
// own prometheus.Registry so several can coexist in one process. All
// methods are no-ops on a nil *Registry.
type Registry struct {
	reg *prometheus.Registry

	StepDuration *prometheus.HistogramVec

	CacheHitRatio prometheus.Gauge
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec

	TrainingEpisodes *prometheus.CounterVec
	EpisodeReward    *prometheus.GaugeVec
	Epsilon          *prometheus.GaugeVec
	ReplayUpdates    *prometheus.CounterVec

	Signals   *prometheus.CounterVec
	PaperRuns *prometheus.CounterVec
	PaperPnL  *prometheus.GaugeVec

	HTTPDuration *prometheus.HistogramVec
}

// NewRegistry creates and registers all collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rltrader_step_duration_seconds",
				Help:    "Duration of each pipeline step in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
			},
			[]string{"step", "result"},
		),

		CacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rltrader_cache_hit_ratio",
			Help: "Current cache hit ratio (0.0 to 1.0)",
		}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rltrader_cache_hits_total",
			Help: "Total number of cache hits by cache type",
		}, []string{"cache_type"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rltrader_cache_misses_total",
			Help: "Total number of cache misses by cache type",
		}, []string{"cache_type"}),

		TrainingEpisodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rltrader_training_episodes_total",
			Help: "Completed training episodes by symbol",
		}, []string{"symbol"}),
		EpisodeReward: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rltrader_episode_reward",
			Help: "Total reward of the most recent episode",
		}, []string{"symbol"}),
		Epsilon: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rltrader_epsilon",
			Help: "Exploration rate after the most recent episode",
		}, []string{"symbol"}),
		ReplayUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rltrader_replay_updates_total",
			Help: "Gradient steps taken during experience replay",
		}, []string{"symbol"}),

		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rltrader_signals_total",
			Help: "Trade signals served by label",
		}, []string{"signal"}),
		PaperRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rltrader_paper_runs_total",
			Help: "Paper-trading simulations by symbol",
		}, []string{"symbol"}),
		PaperPnL: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rltrader_paper_pnl",
			Help: "Portfolio value minus initial cash of the last simulation",
		}, []string{"symbol"}),

		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rltrader_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}

	r.reg.MustRegister(
		r.StepDuration,
		r.CacheHitRatio, r.CacheHits, r.CacheMisses,
		r.TrainingEpisodes, r.EpisodeReward, r.Epsilon, r.ReplayUpdates,
		r.Signals, r.PaperRuns, r.PaperPnL,
		r.HTTPDuration,
	)
	return r
}

// Gatherer exposes the underlying registry, mostly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// StepTimer tracks execution time for pipeline steps.
type StepTimer struct {
	metrics *Registry
	step    string
	start   time.Time
}

func (r *Registry) StartStepTimer(step string) *StepTimer {
	return &StepTimer{metrics: r, step: step, start: time.Now()}
}

// Stop records the elapsed time under result and returns it.
func (st *StepTimer) Stop(result string) time.Duration {
	d := time.Since(st.start)
	if st.metrics != nil {
		st.metrics.StepDuration.WithLabelValues(st.step, result).Observe(d.Seconds())
	}
	log.Debug().Str("step", st.step).Str("result", result).Dur("duration", d).Msg("Pipeline step completed")
	return d
}

func (r *Registry) RecordCacheHit(cacheType string) {
	if r == nil {
		return
	}
	r.CacheHits.WithLabelValues(cacheType).Inc()
	r.updateCacheHitRatio()
}

func (r *Registry) RecordCacheMiss(cacheType string) {
	if r == nil {
		return
	}
	r.CacheMisses.WithLabelValues(cacheType).Inc()
	r.updateCacheHitRatio()
}

// ObserveEpisode records one finished training episode.
func (r *Registry) ObserveEpisode(symbol string, reward, epsilon float64) {
	if r == nil {
		return
	}
	r.TrainingEpisodes.WithLabelValues(symbol).Inc()
	r.EpisodeReward.WithLabelValues(symbol).Set(reward)
	r.Epsilon.WithLabelValues(symbol).Set(epsilon)
}

// ObserveReplay counts the gradient steps of one replay call.
func (r *Registry) ObserveReplay(symbol string, samples int) {
	if r == nil || samples == 0 {
		return
	}
	r.ReplayUpdates.WithLabelValues(symbol).Add(float64(samples))
}

func (r *Registry) RecordSignal(label string) {
	if r == nil {
		return
	}
	r.Signals.WithLabelValues(label).Inc()
}

func (r *Registry) RecordPaperRun(symbol string, pnl float64) {
	if r == nil {
		return
	}
	r.PaperRuns.WithLabelValues(symbol).Inc()
	r.PaperPnL.WithLabelValues(symbol).Set(pnl)
}

func (r *Registry) ObserveHTTP(route, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.HTTPDuration.WithLabelValues(route, status).Observe(d.Seconds())
}

// CounterValue reads a counter back through the client model.
func CounterValue(c prometheus.Counter) float64 {
	m := &io_prometheus_client.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func (r *Registry) updateCacheHitRatio() {
	hits, misses := 0.0, 0.0
	for _, ct := range cacheTypes {
		if c, err := r.CacheHits.GetMetricWithLabelValues(ct); err == nil {
			hits += CounterValue(c)
		}
		if c, err := r.CacheMisses.GetMetricWithLabelValues(ct); err == nil {
			misses += CounterValue(c)
		}
	}
	if total := hits + misses; total > 0 {
		r.CacheHitRatio.Set(hits / total)
	}
}
