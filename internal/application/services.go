// Package application wires the domain packages into the long-lived
// services the CLI and HTTP server use.
package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/rltrader/internal/analytics"
	"github.com/sawpanic/rltrader/internal/artifacts"
	"github.com/sawpanic/rltrader/internal/config"
	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/infrastructure/db"
	"github.com/sawpanic/rltrader/internal/market"
	"github.com/sawpanic/rltrader/internal/metrics"
	"github.com/sawpanic/rltrader/internal/papertrade"
	"github.com/sawpanic/rltrader/internal/persistence"
	"github.com/sawpanic/rltrader/internal/sentiment"
	"github.com/sawpanic/rltrader/internal/signal"
)

// Lookbacks for the read-only analytics endpoints.
const (
	RiskPeriod    = "2y"
	HistoryPeriod = "6mo"

	IndicatorsPeriod = "1y"
)

// Services is built once per process and owns every shared dependency.
// Nothing in the service tree is a package-level singleton.
type Services struct {
	Config    config.Config
	Metrics   *metrics.Registry
	Bars      market.BarSource
	Store     artifacts.Store
	Sentiment *sentiment.Provider
	Agents    *signal.AgentCache
	Signals   *signal.Service
	Paper     *papertrade.Simulator
	Training  *TrainingService
	DB        *db.Manager
	Analytics *Analytics

	closers []io.Closer
}

func NewServices(cfg config.Config) (*Services, error) {
	s := &Services{Config: cfg, Metrics: metrics.NewRegistry()}

	bars, err := market.NewSource(cfg.Data)
	if err != nil {
		return nil, fmt.Errorf("bar source: %w", err)
	}
	s.Bars = bars

	store, err := artifacts.NewStore(cfg.Artifacts)
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	s.Store = store
	if c, ok := store.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}

	dbm, err := db.NewManager(cfg.Database)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("database: %w", err)
	}
	s.DB = dbm

	s.Sentiment = newSentiment(cfg.News, s.Metrics)
	s.Agents = signal.NewAgentCache(store, cfg.Signal.CacheSize, cfg.Signal.CacheTTL, s.Metrics)
	states := signal.NewStateBuilder(bars, s.Sentiment, cfg.Signal)
	s.Signals = signal.NewService(s.Agents, states, s.Metrics)

	var repos persistence.Repository
	if r := dbm.Repository(); r != nil {
		repos = *r
	}
	s.Paper = papertrade.NewSimulator(bars, s.Signals, s.Sentiment, cfg.Paper).
		WithRecorder(NewPaperRecorder(repos.PaperRuns, s.Metrics))

	s.Training = NewTrainingService(bars, store, cfg.Training, s.Metrics).WithInvalidator(s.Agents)
	if repos.TrainingRuns != nil {
		s.Training.WithRunRepo(repos.TrainingRuns)
	}
	s.Analytics = NewAnalytics(bars)

	log.Info().
		Str("data_source", cfg.Data.Source).
		Bool("demo_mode", cfg.Signal.DemoMode).
		Bool("database", dbm.IsEnabled()).
		Msg("Services initialised")
	return s, nil
}

func newSentiment(cfg sentiment.NewsConfig, m *metrics.Registry) *sentiment.Provider {
	if cfg.APIKey == "" && os.Getenv("NEWS_API_KEY") == "" {
		log.Info().Msg("NEWS_API_KEY not set, sentiment is neutral")
		return sentiment.Neutral()
	}
	return sentiment.NewProvider(sentiment.NewNewsClient(cfg), sentiment.NewLexiconScorer(), cfg.CacheTTL).
		WithCacheStats(m)
}

// Close releases connections. It is safe to call more than once.
func (s *Services) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	s.closers = nil
	if s.DB != nil {
		errs = append(errs, s.DB.Close())
		s.DB = nil
	}
	return errors.Join(errs...)
}

// Analytics answers the read-only price and risk queries.
type Analytics struct {
	bars market.BarSource
}

func NewAnalytics(bars market.BarSource) *Analytics {
	return &Analytics{bars: bars}
}

// Risk computes risk figures over two years of closes.
func (a *Analytics) Risk(ctx context.Context, symbol string) (analytics.RiskMetrics, error) {
	sym, err := artifacts.NormalizeSymbol(symbol)
	if err != nil {
		return analytics.RiskMetrics{}, err
	}
	bars, err := a.bars.Bars(ctx, sym, RiskPeriod)
	if err != nil {
		return analytics.RiskMetrics{}, fmt.Errorf("bars for %s: %w", sym, err)
	}
	return analytics.Risk(sym, market.Closes(bars))
}

// History returns the last limit closes, oldest first. A symbol with no
// data yields an empty history rather than an error.
func (a *Analytics) History(ctx context.Context, symbol string, limit int) ([]analytics.PricePoint, error) {
	sym, err := artifacts.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	bars, err := a.bars.Bars(ctx, sym, HistoryPeriod)
	if errors.Is(err, domain.ErrInsufficientData) {
		return []analytics.PricePoint{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bars for %s: %w", sym, err)
	}
	return analytics.History(bars, limit), nil
}

// Indicators returns the last limit rows of the technical indicator table
// computed over a year of bars.
func (a *Analytics) Indicators(ctx context.Context, symbol string, limit int) ([]analytics.IndicatorPoint, error) {
	sym, err := artifacts.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	bars, err := a.bars.Bars(ctx, sym, IndicatorsPeriod)
	if err != nil {
		return nil, fmt.Errorf("bars for %s: %w", sym, err)
	}
	return analytics.Indicators(sym, bars, limit)
}
