// Package papertrade replays recent bars against the signal service with a
// virtual one-share-at-a-time account.
package papertrade

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/sawpanic/rltrader/internal/artifacts"
	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/features"
	"github.com/sawpanic/rltrader/internal/market"
	"github.com/sawpanic/rltrader/internal/rl"
	"github.com/sawpanic/rltrader/internal/signal"
)

// Config holds account and lookback settings.
type Config struct {
	InitialCash   float64 `yaml:"initial_cash"`
	DefaultDays   int     `yaml:"default_days"`
	HistoryPeriod string  `yaml:"history_period"`
}

func DefaultConfig() Config {
	return Config{
		InitialCash:   100000,
		DefaultDays:   5,
		HistoryPeriod: "1y",
	}
}

// SignalSource answers with a decision for an explicit state.
type SignalSource interface {
	SignalFor(ctx context.Context, symbol string, state rl.MarketState) (signal.Decision, error)
}

// SentimentSource yields a scalar in [-1, 1] and never fails.
type SentimentSource interface {
	Score(ctx context.Context, symbol string) float64
}

// Recorder persists finished runs.
type Recorder interface {
	SavePaperRun(ctx context.Context, r *Result) error
}

type Request struct {
	Symbol string `json:"symbol"`
	Days   int    `json:"days"`
}

type Trade struct {
	Date   string  `json:"date"`
	Action string  `json:"action"`
	Price  float64 `json:"price"`
}

type EquityPoint struct {
	Step   int     `json:"step"`
	Date   string  `json:"date"`
	Equity float64 `json:"equity"`
}

// Result reports money rounded to cents.
type Result struct {
	RunID          string        `json:"run_id"`
	Symbol         string        `json:"symbol"`
	Days           int           `json:"days"`
	InitialCash    float64       `json:"initial_cash"`
	FinalCash      float64       `json:"final_cash"`
	SharesHeld     int           `json:"shares_held"`
	PortfolioValue float64       `json:"portfolio_value"`
	Trades         []Trade       `json:"trades"`
	EquityCurve    []EquityPoint `json:"equity_curve"`
	StartedAt      time.Time     `json:"started_at"`
}

// Simulator is stateless between runs and safe for concurrent use.
type Simulator struct {
	history   market.BarSource
	signals   SignalSource
	sentiment SentimentSource
	recorder  Recorder
	cfg       Config
	now       func() time.Time
}

func NewSimulator(history market.BarSource, signals SignalSource, sentiment SentimentSource, cfg Config) *Simulator {
	d := DefaultConfig()
	if cfg.InitialCash <= 0 {
		cfg.InitialCash = d.InitialCash
	}
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = d.DefaultDays
	}
	if cfg.HistoryPeriod == "" {
		cfg.HistoryPeriod = d.HistoryPeriod
	}
	return &Simulator{history: history, signals: signals, sentiment: sentiment, cfg: cfg, now: time.Now}
}

// WithRecorder persists every successful run through r.
func (s *Simulator) WithRecorder(r Recorder) *Simulator {
	s.recorder = r
	return s
}

// Run walks the last req.Days feature rows oldest first. Each step asks for
// a signal on the state as of that bar, then buys one share on BUY if cash
// covers it or sells one on SELL if any are held. Every step adds an equity
// point; only executed orders add trades.
//
// Days is clamped to the rows left after indicator warm-up, so a history
// shorter than features.MinBars() bars fails with domain.ErrInsufficientData.
func (s *Simulator) Run(ctx context.Context, req Request) (*Result, error) {
	symbol, err := artifacts.NormalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	days := req.Days
	if days <= 0 {
		days = s.cfg.DefaultDays
	}

	bars, err := s.history.Bars(ctx, symbol, s.cfg.HistoryPeriod)
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no historical data for %s", domain.ErrInsufficientData, symbol)
	}
	series, err := features.Build(symbol, bars)
	if err != nil {
		return nil, err
	}
	if days > series.Len() {
		days = series.Len()
	}

	sentiment := 0.0
	if s.sentiment != nil {
		sentiment = s.sentiment.Score(ctx, symbol)
	}

	initial := decimal.NewFromFloat(s.cfg.InitialCash)
	cash := initial
	shares := 0
	res := &Result{
		RunID:       uuid.NewString(),
		Symbol:      symbol,
		Days:        days,
		InitialCash: money(initial),
		Trades:      []Trade{},
		EquityCurve: make([]EquityPoint, 0, days),
		StartedAt:   s.now().UTC(),
	}

	value := cash
	first := series.Len() - days
	for i := first; i < series.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := series.Bars[i]
		price := decimal.NewFromFloat(bar.Close)
		date := bar.Time.Format("2006-01-02")

		pos := rl.Flat
		if shares > 0 {
			pos = rl.Long
		}
		state := rl.NewMarketState(series.Features[i], sentiment, pos)
		d, err := s.signals.SignalFor(ctx, symbol, state)
		if err != nil {
			return nil, fmt.Errorf("signal for %s on %s: %w", symbol, date, err)
		}

		switch {
		case d.Signal == signal.Buy && cash.GreaterThanOrEqual(price):
			shares++
			cash = cash.Sub(price)
			res.Trades = append(res.Trades, Trade{Date: date, Action: string(signal.Buy), Price: money(price)})
		case d.Signal == signal.Sell && shares > 0:
			shares--
			cash = cash.Add(price)
			res.Trades = append(res.Trades, Trade{Date: date, Action: string(signal.Sell), Price: money(price)})
		}
		if cash.IsNegative() || shares < 0 {
			return nil, fmt.Errorf("account invariant broken at %s: cash %s shares %d", date, cash, shares)
		}

		value = cash.Add(price.Mul(decimal.NewFromInt(int64(shares))))
		res.EquityCurve = append(res.EquityCurve, EquityPoint{Step: i - first + 1, Date: date, Equity: money(value)})
	}

	res.FinalCash = money(cash)
	res.SharesHeld = shares
	res.PortfolioValue = money(value)

	log.Info().
		Str("run_id", res.RunID).
		Str("symbol", symbol).
		Int("days", days).
		Int("trades", len(res.Trades)).
		Float64("portfolio_value", res.PortfolioValue).
		Msg("Paper trading run complete")

	if s.recorder != nil {
		if err := s.recorder.SavePaperRun(ctx, res); err != nil {
			log.Warn().Err(err).Str("run_id", res.RunID).Msg("Failed to persist paper run")
		}
	}
	return res, nil
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
