package signal

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/features"
	"github.com/sawpanic/rltrader/internal/market"
	"github.com/sawpanic/rltrader/internal/rl"
)

// SentimentSource yields a scalar in [-1, 1]; it must not fail.
type SentimentSource interface {
	Score(ctx context.Context, symbol string) float64
}

// StateInfo describes where a state came from.
type StateInfo struct {
	Demo      bool
	AsOf      string
	Sentiment float64
}

// StateBuilder assembles the live observation: the latest indicator row,
// the current sentiment score and the caller's position. In demo mode it
// returns seeded standard-normal noise instead and touches no data source.
type StateBuilder struct {
	bars      market.BarSource
	sentiment SentimentSource
	period    string
	demo      bool

	mu  sync.Mutex
	rng *rand.Rand
}

func NewStateBuilder(bars market.BarSource, sentiment SentimentSource, cfg Config) *StateBuilder {
	period := cfg.HistoryPeriod
	if period == "" {
		period = DefaultConfig().HistoryPeriod
	}
	return &StateBuilder{
		bars:      bars,
		sentiment: sentiment,
		period:    period,
		demo:      cfg.DemoMode,
		rng:       rand.New(rand.NewPCG(cfg.DemoSeed, cfg.DemoSeed^0x9e3779b97f4a7c15)),
	}
}

// Build returns a state of exactly size values.
func (b *StateBuilder) Build(ctx context.Context, symbol string, pos rl.Position, size int) (rl.MarketState, StateInfo, error) {
	if b.demo {
		return b.demoState(size), StateInfo{Demo: true}, nil
	}
	if b.bars == nil {
		return nil, StateInfo{}, fmt.Errorf("%w: no bar source configured", domain.ErrConstruction)
	}

	bars, err := b.bars.Bars(ctx, symbol, b.period)
	if err != nil {
		return nil, StateInfo{}, fmt.Errorf("bars for %s: %w", symbol, err)
	}
	series, err := features.Build(symbol, bars)
	if err != nil {
		return nil, StateInfo{}, err
	}

	last := series.Len() - 1
	score := 0.0
	if b.sentiment != nil {
		score = b.sentiment.Score(ctx, symbol)
	}
	state := rl.NewMarketState(series.Features[last], score, pos)
	if len(state) != size {
		return nil, StateInfo{}, fmt.Errorf("%w: live state has %d values, model expects %d",
			domain.ErrInvalidRequest, len(state), size)
	}
	return state, StateInfo{AsOf: series.Bars[last].Time.Format("2006-01-02"), Sentiment: score}, nil
}

func (b *StateBuilder) demoState(size int) rl.MarketState {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := make(rl.MarketState, size)
	for i := range s {
		s[i] = b.rng.NormFloat64()
	}
	return s
}
