package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/rltrader/internal/rl"
)

func tr(i int) rl.Transition {
	return rl.NewTransition(rl.MarketState{float64(i)}, rl.ActionFlat, float64(i), rl.MarketState{float64(i + 1)}, false)
}

func TestDefaultCapacity(t *testing.T) {
	m := New(0, 1)
	assert.Equal(t, DefaultCapacity, m.Cap())
	assert.Equal(t, 0, m.Len())
}

func TestPushNeverExceedsCapacity(t *testing.T) {
	m := New(4, 1)
	for i := 0; i < 20; i++ {
		m.Push(tr(i))
		assert.LessOrEqual(t, m.Len(), m.Cap())
	}
	assert.Equal(t, 4, m.Len())
}

func TestEvictsOldestFirst(t *testing.T) {
	const capacity = 5
	m := New(capacity, 1)
	for i := 0; i < capacity+1; i++ {
		m.Push(tr(i))
	}

	items := m.Items()
	require.Len(t, items, capacity)

	rewards := make([]float64, 0, len(items))
	for _, it := range items {
		rewards = append(rewards, it.Reward)
	}
	assert.NotContains(t, rewards, 0.0, "oldest transition should be evicted")
	assert.Contains(t, rewards, float64(capacity), "newest transition should be present")
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, rewards)
}

func TestSampleEmpty(t *testing.T) {
	m := New(10, 1)
	batch := m.Sample(32)
	assert.NotNil(t, batch)
	assert.Empty(t, batch)
}

func TestSampleSizeAndDistinct(t *testing.T) {
	m := New(100, 7)
	for i := 0; i < 50; i++ {
		m.Push(tr(i))
	}

	tests := []struct {
		ask, want int
	}{
		{ask: 10, want: 10},
		{ask: 50, want: 50},
		{ask: 80, want: 50},
		{ask: 0, want: 0},
	}
	for _, tt := range tests {
		batch := m.Sample(tt.ask)
		require.Len(t, batch, tt.want)

		seen := make(map[float64]bool)
		for _, b := range batch {
			assert.False(t, seen[b.Reward], "sampled twice: %v", b.Reward)
			seen[b.Reward] = true
		}
	}
}

func TestSampleCoversBuffer(t *testing.T) {
	m := New(8, 3)
	for i := 0; i < 8; i++ {
		m.Push(tr(i))
	}

	hits := make(map[float64]int)
	for i := 0; i < 2000; i++ {
		for _, b := range m.Sample(2) {
			hits[b.Reward]++
		}
	}
	assert.Len(t, hits, 8)
	for k, v := range hits {
		// expected 500 each
		assert.InDelta(t, 500, v, 150, "reward %v", k)
	}
}

func TestTransitionsAreCopies(t *testing.T) {
	m := New(2, 1)
	state := rl.MarketState{1, 2, 3}
	m.Push(rl.NewTransition(state, rl.ActionLong, 0, state, true))
	state[0] = 99

	assert.Equal(t, 1.0, m.Items()[0].State[0])
}
