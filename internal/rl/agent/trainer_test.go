package agent

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/rl/env"
	"github.com/sawpanic/rltrader/internal/rl/qnet"
)

type countingRecorder struct {
	episodes []float64
	replays  int
}

func (c *countingRecorder) ObserveEpisode(_ string, reward, _ float64) {
	c.episodes = append(c.episodes, reward)
}

func (c *countingRecorder) ObserveReplay(_ string, _ int) { c.replays++ }

func trendingEnv(t *testing.T, n int) *env.Environment {
	t.Helper()
	prices := make([]float64, n)
	feats := make([][]float64, n)
	sent := make([]float64, n)
	for i := range prices {
		prices[i] = 100 + float64(i)
		feats[i] = []float64{50, prices[i], prices[i], 0.01}
	}
	e, err := env.New(prices, feats, sent, env.DefaultTransactionCost)
	require.NoError(t, err)
	return e
}

func TestTrainRunsFixedEpisodes(t *testing.T) {
	e := trendingEnv(t, 12)
	a, err := NewDefaultDQN(e.StateSize(), DefaultConfig(), qnet.DefaultConfig(0, 0))
	require.NoError(t, err)

	rec := &countingRecorder{}
	tr := &Trainer{Symbol: "TEST", Recorder: rec}
	report, err := tr.Train(e, a, 3)
	require.NoError(t, err)

	require.Len(t, report.Episodes, 3)
	assert.Len(t, rec.episodes, 3)
	assert.Equal(t, 3*e.StepsPerEpisode(), rec.replays)
	for i, ep := range report.Episodes {
		assert.Equal(t, i+1, ep.Episode)
		assert.Equal(t, e.StepsPerEpisode(), ep.Steps)
		assert.False(t, math.IsNaN(ep.TotalReward))
	}
	assert.Equal(t, a.Epsilon(), report.FinalEpsilon)
	assert.Equal(t, a.Updates(), report.Updates)
	assert.Equal(t, 3*e.StepsPerEpisode(), a.Memory().Len())

	// one decay per replay call
	want := math.Pow(0.995, float64(3*e.StepsPerEpisode()))
	assert.InDelta(t, want, a.Epsilon(), 1e-9)
}

func TestTrainRejectsZeroEpisodes(t *testing.T) {
	e := trendingEnv(t, 5)
	a, err := NewDefaultDQN(e.StateSize(), DefaultConfig(), qnet.DefaultConfig(0, 0))
	require.NoError(t, err)

	_, err = (&Trainer{}).Train(e, a, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

type nanNet struct{ fixedNet }

func (n *nanNet) Fit(_, _ []float64) float64 { return math.NaN() }

func TestTrainStopsOnDivergence(t *testing.T) {
	e := trendingEnv(t, 6)
	net := &nanNet{fixedNet{q: []float64{0, 0, 0}}}
	a, err := NewDQN(DefaultConfig(), net)
	require.NoError(t, err)

	_, err = (&Trainer{Symbol: "NAN"}).Train(e, a, 2)
	assert.ErrorIs(t, err, domain.ErrDiverged)
}
