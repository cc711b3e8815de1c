package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/rl"
	"github.com/sawpanic/rltrader/internal/rl/qnet"
)

// fixedNet returns constant Q-values and records every Fit call.
type fixedNet struct {
	q       []float64
	fits    [][]float64
	inputs  int
	nextQ   []float64
	useNext bool
}

func (f *fixedNet) Predict(state []float64) []float64 {
	if f.useNext && len(state) > 0 && state[0] == 1 {
		return append([]float64(nil), f.nextQ...)
	}
	return append([]float64(nil), f.q...)
}

func (f *fixedNet) Fit(state, target []float64) float64 {
	f.fits = append(f.fits, append([]float64(nil), target...))
	return 0.5
}

func (f *fixedNet) Inputs() int  { return f.inputs }
func (f *fixedNet) Outputs() int { return 3 }

func greedyConfig() Config {
	cfg := DefaultConfig()
	cfg.Epsilon = 0
	cfg.EpsilonMin = 0
	return cfg
}

func TestNewDQNValidation(t *testing.T) {
	net := &fixedNet{q: []float64{0, 0, 0}}

	bad := DefaultConfig()
	bad.Gamma = 1.5
	_, err := NewDQN(bad, net)
	assert.ErrorIs(t, err, domain.ErrConstruction)

	bad = DefaultConfig()
	bad.EpsilonMin = 2
	_, err = NewDQN(bad, net)
	assert.ErrorIs(t, err, domain.ErrConstruction)

	_, err = NewDQN(DefaultConfig(), nil)
	assert.ErrorIs(t, err, domain.ErrConstruction)
}

func TestGreedyActTiesPickLowestIndex(t *testing.T) {
	tests := []struct {
		q    []float64
		want rl.Action
	}{
		{q: []float64{1, 1, 1}, want: rl.ActionShort},
		{q: []float64{0, 2, 2}, want: rl.ActionFlat},
		{q: []float64{-1, -2, 0}, want: rl.ActionLong},
	}
	for _, tt := range tests {
		a, err := NewDQN(greedyConfig(), &fixedNet{q: tt.q})
		require.NoError(t, err)
		assert.Equal(t, tt.want, a.Act(rl.MarketState{0, 0}))
	}
}

func TestExplorationCoversAllActions(t *testing.T) {
	a, err := NewDQN(DefaultConfig(), &fixedNet{q: []float64{0, 0, 9}})
	require.NoError(t, err)

	seen := map[rl.Action]int{}
	for i := 0; i < 300; i++ {
		seen[a.Act(rl.MarketState{0})]++
	}
	assert.Len(t, seen, 3)
}

func TestReplayOnEmptyMemory(t *testing.T) {
	net := &fixedNet{q: []float64{0, 0, 0}}
	a, err := NewDQN(DefaultConfig(), net)
	require.NoError(t, err)

	var stats ReplayStats
	assert.NotPanics(t, func() { stats = a.Replay(32) })
	assert.Equal(t, 0, stats.Samples)
	assert.Equal(t, 0, a.Updates())
	assert.Empty(t, net.fits)
}

func TestReplayTargets(t *testing.T) {
	net := &fixedNet{
		q:       []float64{0.1, 0.2, 0.3},
		nextQ:   []float64{1, 4, 2},
		useNext: true,
	}
	cfg := greedyConfig()
	a, err := NewDQN(cfg, net)
	require.NoError(t, err)

	// non-terminal: r + gamma * max Q(s')
	a.Remember(rl.NewTransition(rl.MarketState{0}, rl.ActionLong, 0.5, rl.MarketState{1}, false))
	stats := a.Replay(32)
	require.Equal(t, 1, stats.Samples)
	require.Len(t, net.fits, 1)
	assert.InDelta(t, 0.1, net.fits[0][0], 1e-12)
	assert.InDelta(t, 0.2, net.fits[0][1], 1e-12)
	assert.InDelta(t, 0.5+0.95*4, net.fits[0][2], 1e-12)
	assert.Equal(t, 0.5, stats.MeanLoss)
}

func TestReplayTerminalTargetIsReward(t *testing.T) {
	net := &fixedNet{q: []float64{0.1, 0.2, 0.3}, nextQ: []float64{9, 9, 9}, useNext: true}
	a, err := NewDQN(greedyConfig(), net)
	require.NoError(t, err)

	a.Remember(rl.NewTransition(rl.MarketState{0}, rl.ActionShort, -0.25, rl.MarketState{1}, true))
	a.Replay(1)
	require.Len(t, net.fits, 1)
	assert.Equal(t, []float64{-0.25, 0.2, 0.3}, net.fits[0])
	assert.Equal(t, 1, a.Updates())
}

func TestEpsilonDecayMonotoneAndFloored(t *testing.T) {
	a, err := NewDQN(DefaultConfig(), &fixedNet{q: []float64{0, 0, 0}})
	require.NoError(t, err)

	prev := a.Epsilon()
	assert.Equal(t, 1.0, prev)
	for i := 0; i < 2000; i++ {
		a.DecayEpsilon()
		cur := a.Epsilon()
		assert.LessOrEqual(t, cur, prev)
		assert.GreaterOrEqual(t, cur, 0.01)
		prev = cur
	}
	assert.Equal(t, 0.01, a.Epsilon())
}

func TestReplayDecaysEpsilonOnce(t *testing.T) {
	a, err := NewDQN(DefaultConfig(), &fixedNet{q: []float64{0, 0, 0}})
	require.NoError(t, err)

	a.Replay(32)
	assert.InDelta(t, 0.995, a.Epsilon(), 1e-12)
}

func TestActPanicsOnWrongStateWidth(t *testing.T) {
	a, err := NewDefaultDQN(6, greedyConfig(), qnet.DefaultConfig(0, 0))
	require.NoError(t, err)

	assert.NotPanics(t, func() { a.Act(make(rl.MarketState, 6)) })
	assert.Panics(t, func() { a.Act(make(rl.MarketState, 5)) })
	assert.Panics(t, func() { a.Greedy(make(rl.MarketState, 7)) })
}

func TestNewDefaultDQN(t *testing.T) {
	a, err := NewDefaultDQN(6, DefaultConfig(), qnet.DefaultConfig(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 6, a.Approximator().Inputs())
	assert.Equal(t, 3, a.Approximator().Outputs())
	assert.Equal(t, 5000, a.Memory().Cap())
}
