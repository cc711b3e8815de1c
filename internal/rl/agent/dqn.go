// Package agent contains the epsilon-greedy deep Q-learning agent and the
// episode driver that trains it against an environment.
package agent

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/rl"
	"github.com/sawpanic/rltrader/internal/rl/qnet"
	"github.com/sawpanic/rltrader/internal/rl/replay"
)

// Approximator maps a state to one Q-value per action and can take a
// single regression step toward a target vector.
type Approximator interface {
	Predict(state []float64) []float64
	Fit(state, target []float64) float64
	Inputs() int
	Outputs() int
}

// Config holds the policy and learning parameters.
type Config struct {
	Gamma        float64 `yaml:"gamma"`
	Epsilon      float64 `yaml:"epsilon"`
	EpsilonMin   float64 `yaml:"epsilon_min"`
	EpsilonDecay float64 `yaml:"epsilon_decay"`
	MemorySize   int     `yaml:"memory_size"`
	Seed         uint64  `yaml:"seed"`
}

// DefaultConfig returns the parameters the policy was tuned with.
func DefaultConfig() Config {
	return Config{
		Gamma:        0.95,
		Epsilon:      1.0,
		EpsilonMin:   0.01,
		EpsilonDecay: 0.995,
		MemorySize:   replay.DefaultCapacity,
		Seed:         1,
	}
}

func (c Config) validate() error {
	switch {
	case c.Gamma < 0 || c.Gamma > 1:
		return fmt.Errorf("%w: gamma %v outside [0,1]", domain.ErrConstruction, c.Gamma)
	case c.Epsilon < 0 || c.Epsilon > 1:
		return fmt.Errorf("%w: epsilon %v outside [0,1]", domain.ErrConstruction, c.Epsilon)
	case c.EpsilonMin < 0 || c.EpsilonMin > c.Epsilon:
		return fmt.Errorf("%w: epsilon_min %v outside [0,epsilon]", domain.ErrConstruction, c.EpsilonMin)
	case c.EpsilonDecay <= 0 || c.EpsilonDecay > 1:
		return fmt.Errorf("%w: epsilon_decay %v outside (0,1]", domain.ErrConstruction, c.EpsilonDecay)
	}
	return nil
}

// ReplayStats summarises one Replay call.
type ReplayStats struct {
	Samples  int
	MeanLoss float64
	Epsilon  float64
}

// DQN is single-network Q-learning: targets are computed from the same
// weights being updated, with no frozen target copy. That is a known source
// of instability and is kept as is.
type DQN struct {
	cfg     Config
	net     Approximator
	memory  *replay.Memory
	rng     *rand.Rand
	epsilon float64
	updates int
}

// NewDQN wires an approximator to a fresh replay memory.
func NewDQN(cfg Config, net Approximator) (*DQN, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if net == nil {
		return nil, fmt.Errorf("%w: nil approximator", domain.ErrConstruction)
	}
	if net.Outputs() != rl.NumActions {
		return nil, fmt.Errorf("%w: approximator has %d outputs, need %d",
			domain.ErrConstruction, net.Outputs(), rl.NumActions)
	}
	return &DQN{
		cfg:     cfg,
		net:     net,
		memory:  replay.New(cfg.MemorySize, cfg.Seed),
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1)),
		epsilon: cfg.Epsilon,
	}, nil
}

// NewDefaultDQN builds the standard 64-64 network for the given state width.
func NewDefaultDQN(stateSize int, cfg Config, netCfg qnet.Config) (*DQN, error) {
	netCfg.Inputs = stateSize
	netCfg.Outputs = rl.NumActions
	net, err := qnet.New(netCfg, cfg.Seed)
	if err != nil {
		return nil, err
	}
	return NewDQN(cfg, net)
}

// Act explores with probability epsilon and otherwise picks the greedy
// action. The state must be Approximator().Inputs() wide; a mismatch panics,
// since states here come from the environment the agent was sized for.
// Untrusted states go through inference.Agent, which returns an error.
func (a *DQN) Act(state rl.MarketState) rl.Action {
	if a.rng.Float64() < a.epsilon {
		return rl.Action(a.rng.IntN(rl.NumActions))
	}
	return rl.Action(rl.Argmax(a.net.Predict(state)))
}

// Greedy ignores epsilon. It panics on a mismatched state width like Act.
func (a *DQN) Greedy(state rl.MarketState) rl.Action {
	return rl.Action(rl.Argmax(a.net.Predict(state)))
}

// Remember stores a transition in replay memory.
func (a *DQN) Remember(t rl.Transition) {
	a.memory.Push(t)
}

// Replay samples a batch and fits the taken action's output toward its
// one-step TD target, one gradient step per sample. Epsilon decays after
// every call, including calls on an empty memory.
func (a *DQN) Replay(batchSize int) ReplayStats {
	batch := a.memory.Sample(batchSize)

	total := 0.0
	for _, t := range batch {
		target := t.Reward
		if !t.Done {
			target += a.cfg.Gamma * rl.Max(a.net.Predict(t.NextState))
		}
		q := a.net.Predict(t.State)
		q[t.Action] = target
		total += a.net.Fit(t.State, q)
		a.updates++
	}

	a.DecayEpsilon()

	stats := ReplayStats{Samples: len(batch), Epsilon: a.epsilon}
	if len(batch) > 0 {
		stats.MeanLoss = total / float64(len(batch))
	}
	return stats
}

// DecayEpsilon applies one multiplicative decay step, floored at the
// minimum.
func (a *DQN) DecayEpsilon() {
	a.epsilon = math.Max(a.cfg.EpsilonMin, a.epsilon*a.cfg.EpsilonDecay)
}

func (a *DQN) Epsilon() float64           { return a.epsilon }
func (a *DQN) Updates() int               { return a.updates }
func (a *DQN) Memory() *replay.Memory     { return a.memory }
func (a *DQN) Approximator() Approximator { return a.net }
