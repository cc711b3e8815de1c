// Package replay implements the bounded experience replay buffer.
package replay

import (
	"math/rand/v2"

	"github.com/sawpanic/rltrader/internal/rl"
)

// DefaultCapacity matches the deque length the policy was tuned with.
const DefaultCapacity = 5000

// Memory is a FIFO ring of transitions. It is not safe for concurrent use;
// training drives it from a single goroutine.
type Memory struct {
	buf   []rl.Transition
	head  int // index of the oldest entry
	count int
	rng   *rand.Rand
}

// New creates an empty memory. Capacity <= 0 selects DefaultCapacity.
func New(capacity int, seed uint64) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		buf: make([]rl.Transition, capacity),
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Push appends t, overwriting the oldest entry when full.
func (m *Memory) Push(t rl.Transition) {
	if m.count < len(m.buf) {
		m.buf[(m.head+m.count)%len(m.buf)] = t
		m.count++
		return
	}
	m.buf[m.head] = t
	m.head = (m.head + 1) % len(m.buf)
}

// Sample draws min(n, Len()) distinct transitions uniformly at random.
func (m *Memory) Sample(n int) []rl.Transition {
	if n > m.count {
		n = m.count
	}
	if n <= 0 {
		return []rl.Transition{}
	}

	// Floyd's algorithm: n distinct offsets in O(n).
	picked := make(map[int]struct{}, n)
	out := make([]rl.Transition, 0, n)
	for j := m.count - n; j < m.count; j++ {
		k := m.rng.IntN(j + 1)
		if _, dup := picked[k]; dup {
			k = j
		}
		picked[k] = struct{}{}
		out = append(out, m.at(k))
	}
	return out
}

// at returns the i-th oldest entry.
func (m *Memory) at(i int) rl.Transition {
	return m.buf[(m.head+i)%len(m.buf)]
}

// Items returns the stored transitions from oldest to newest.
func (m *Memory) Items() []rl.Transition {
	out := make([]rl.Transition, m.count)
	for i := range out {
		out[i] = m.at(i)
	}
	return out
}

func (m *Memory) Len() int { return m.count }
func (m *Memory) Cap() int { return len(m.buf) }
