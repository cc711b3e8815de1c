package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/rltrader/internal/artifacts"
	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/metrics"
	"github.com/sawpanic/rltrader/internal/rl"
	"github.com/sawpanic/rltrader/internal/rl/inference"
)

// Config controls the live signal path.
type Config struct {
	HistoryPeriod string        `yaml:"history_period"`
	DemoMode      bool          `yaml:"demo_mode"`
	DemoSeed      uint64        `yaml:"demo_seed"`
	CacheSize     int           `yaml:"cache_size"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

func DefaultConfig() Config {
	return Config{
		HistoryPeriod: "6mo",
		DemoSeed:      42,
		CacheSize:     64,
		CacheTTL:      30 * time.Minute,
	}
}

// Request asks for a signal. Horizon is accepted and echoed but does not
// change the decision.
type Request struct {
	Symbol   string `json:"symbol"`
	Horizon  int    `json:"horizon"`
	Position int    `json:"position"`
}

// Response is the signal returned to callers.
type Response struct {
	Symbol     string  `json:"symbol"`
	Signal     Signal  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
}

// Decision is a signal for a caller-supplied state.
type Decision struct {
	Action     rl.Action
	Signal     Signal
	Confidence float64
	QValues    []float64
}

// Service resolves agents through the cache and queries them.
type Service struct {
	agents  *AgentCache
	states  *StateBuilder
	metrics *metrics.Registry
}

func NewService(agents *AgentCache, states *StateBuilder, m *metrics.Registry) *Service {
	return &Service{agents: agents, states: states, metrics: m}
}

// Signal builds the current state for req.Symbol and returns the agent's
// recommendation. A missing model surfaces as domain.ErrNotFound.
func (s *Service) Signal(ctx context.Context, req Request) (Response, error) {
	pos := rl.Position(req.Position)
	if pos < rl.Short || pos > rl.Long {
		return Response{}, fmt.Errorf("%w: position must be -1, 0 or 1, got %d", domain.ErrInvalidRequest, req.Position)
	}
	symbol, err := artifacts.NormalizeSymbol(req.Symbol)
	if err != nil {
		return Response{}, err
	}

	agent, err := s.agents.Get(ctx, symbol)
	if err != nil {
		return Response{}, err
	}
	state, info, err := s.states.Build(ctx, symbol, pos, agent.StateSize())
	if err != nil {
		return Response{}, err
	}
	d, err := s.decide(agent, state)
	if err != nil {
		return Response{}, err
	}

	ctxNote := "DQN inference-only, live features as of " + info.AsOf
	if info.Demo {
		ctxNote = "DQN inference-only, demo state"
	}
	log.Info().
		Str("symbol", symbol).
		Str("signal", string(d.Signal)).
		Int("horizon", req.Horizon).
		Bool("demo", info.Demo).
		Float64("sentiment", info.Sentiment).
		Msg("Trade signal served")

	return Response{
		Symbol:     symbol,
		Signal:     d.Signal,
		Confidence: round3(d.Confidence),
		Context:    ctxNote,
	}, nil
}

// SignalFor queries the agent with an explicit state.
func (s *Service) SignalFor(ctx context.Context, symbol string, state rl.MarketState) (Decision, error) {
	agent, err := s.agents.Get(ctx, symbol)
	if err != nil {
		return Decision{}, err
	}
	return s.decide(agent, state)
}

func (s *Service) decide(agent *inference.Agent, state rl.MarketState) (Decision, error) {
	q, err := agent.QValues(state)
	if err != nil {
		return Decision{}, err
	}
	a := rl.Action(rl.Argmax(q))
	sig, conf := FromAction(a)
	s.metrics.RecordSignal(string(sig))
	return Decision{Action: a, Signal: sig, Confidence: conf, QValues: q}, nil
}

// StateSize reports the input width of symbol's model.
func (s *Service) StateSize(ctx context.Context, symbol string) (int, error) {
	agent, err := s.agents.Get(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return agent.StateSize(), nil
}

// Invalidate forgets the cached agent for symbol.
func (s *Service) Invalidate(symbol string) {
	s.agents.Invalidate(symbol)
}
