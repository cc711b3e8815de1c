package env

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/rl"
)

func constantInputs(n int) ([][]float64, []float64) {
	features := make([][]float64, n)
	sentiment := make([]float64, n)
	for i := range features {
		features[i] = []float64{50, 1, 2, 0.01}
	}
	return features, sentiment
}

func TestNewRejectsMismatchedLengths(t *testing.T) {
	features, sentiment := constantInputs(4)

	_, err := New([]float64{1, 2, 3, 4, 5}, features, sentiment, 0.001)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConstruction))
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		mutate func(f [][]float64, s []float64) ([][]float64, []float64)
		cost   float64
	}{
		{name: "too short", prices: []float64{1, 2}},
		{name: "non-positive price", prices: []float64{1, 0, 2}},
		{name: "negative cost", prices: []float64{1, 2, 3}, cost: -0.1},
		{
			name:   "ragged features",
			prices: []float64{1, 2, 3},
			mutate: func(f [][]float64, s []float64) ([][]float64, []float64) {
				f[2] = []float64{1}
				return f, s
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			features, sentiment := constantInputs(len(tt.prices))
			if tt.mutate != nil {
				features, sentiment = tt.mutate(features, sentiment)
			}
			_, err := New(tt.prices, features, sentiment, tt.cost)
			assert.ErrorIs(t, err, domain.ErrConstruction)
		})
	}
}

func TestResetState(t *testing.T) {
	features, sentiment := constantInputs(5)
	sentiment[1] = 0.3
	e, err := New([]float64{100, 101, 99, 102, 105}, features, sentiment, 0.001)
	require.NoError(t, err)

	s := e.Reset()
	assert.Equal(t, rl.MarketState{50, 1, 2, 0.01, 0.3, 0}, s)
	assert.Equal(t, 1, e.T())
	assert.Equal(t, rl.Flat, e.Position())
	assert.Equal(t, 6, e.StateSize())
}

func TestStepCountIsLengthMinusTwo(t *testing.T) {
	for n := 3; n <= 12; n++ {
		prices := make([]float64, n)
		for i := range prices {
			prices[i] = 100 + float64(i)
		}
		features, sentiment := constantInputs(n)
		e, err := New(prices, features, sentiment, 0.001)
		require.NoError(t, err)

		e.Reset()
		steps := 0
		for {
			_, _, done, err := e.Step(rl.ActionLong)
			require.NoError(t, err)
			steps++
			if done {
				break
			}
		}
		assert.Equal(t, n-2, steps, "n=%d", n)
		assert.Equal(t, e.StepsPerEpisode(), steps)

		_, _, _, err = e.Step(rl.ActionFlat)
		assert.ErrorIs(t, err, domain.ErrEpisodeDone)
	}
}

func TestRewardScenario(t *testing.T) {
	prices := []float64{100, 101, 99, 102, 105}
	features, sentiment := constantInputs(len(prices))
	e, err := New(prices, features, sentiment, 0.001)
	require.NoError(t, err)
	e.Reset()

	// flat while flat: no cost, no exposure
	s, r, done, err := e.Step(rl.ActionFlat)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, r, 1e-12)
	assert.False(t, done)
	assert.Equal(t, 0.0, s[len(s)-1])

	// flat -> long: cost only, the long position earns from the next interval
	s, r, done, err = e.Step(rl.ActionLong)
	require.NoError(t, err)
	assert.InDelta(t, -0.001, r, 1e-12)
	assert.False(t, done)
	assert.Equal(t, 1.0, s[len(s)-1])

	// long -> flat: long earns (102-99)/99, minus the cost of changing
	_, r, done, err = e.Step(rl.ActionFlat)
	require.NoError(t, err)
	assert.InDelta(t, (102.0-99.0)/99.0-0.001, r, 1e-12)
	assert.True(t, done)

	// five prices allow three steps; the fourth action is refused
	_, _, _, err = e.Step(rl.ActionLong)
	assert.ErrorIs(t, err, domain.ErrEpisodeDone)

	hist := e.History()
	require.Len(t, hist, 3)
	assert.Equal(t, 0.0, hist[0].Cost)
	assert.Equal(t, 0.001, hist[1].Cost)
	assert.Equal(t, 0.001, hist[2].Cost)
}

func TestShortPositionReward(t *testing.T) {
	prices := []float64{100, 100, 90, 90}
	features, sentiment := constantInputs(len(prices))
	e, err := New(prices, features, sentiment, 0)
	require.NoError(t, err)
	e.Reset()

	_, r, _, err := e.Step(rl.ActionShort)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r)

	_, r, done, err := e.Step(rl.ActionShort)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, r, 1e-12)
	assert.True(t, done)
}

func TestInvalidAction(t *testing.T) {
	features, sentiment := constantInputs(4)
	e, err := New([]float64{1, 2, 3, 4}, features, sentiment, 0)
	require.NoError(t, err)

	_, _, _, err = e.Step(rl.Action(7))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Equal(t, 1, e.T())
}

func TestResetClearsHistory(t *testing.T) {
	features, sentiment := constantInputs(5)
	e, err := New([]float64{1, 2, 3, 4, 5}, features, sentiment, 0)
	require.NoError(t, err)

	_, _, _, err = e.Step(rl.ActionLong)
	require.NoError(t, err)
	require.Len(t, e.History(), 1)

	e.Reset()
	assert.Empty(t, e.History())
	assert.Equal(t, rl.Flat, e.Position())
	assert.False(t, e.Done())
}
