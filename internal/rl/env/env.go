// Package env implements the deterministic trading MDP replayed over a
// fixed, time-aligned price/feature/sentiment history.
package env

import (
	"fmt"

	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/rl"
)

// DefaultTransactionCost is charged whenever the position changes.
const DefaultTransactionCost = 0.001

// minLength is the shortest history with at least one step: reset puts t at
// 1 and the episode ends once t reaches len-1.
const minLength = 3

// StepRecord is one entry of the per-episode history.
type StepRecord struct {
	T        int
	Action   rl.Action
	Position rl.Position
	Return   float64
	Cost     float64
	Reward   float64
}

// Environment steps a single position through a historical sequence.
type Environment struct {
	prices    []float64
	features  [][]float64
	sentiment []float64
	cost      float64

	t        int
	position rl.Position
	done     bool
	history  []StepRecord
}

// New validates the three sequences up front so that no step can fail on
// shape later.
func New(prices []float64, features [][]float64, sentiment []float64, transactionCost float64) (*Environment, error) {
	n := len(prices)
	if len(features) != n || len(sentiment) != n {
		return nil, fmt.Errorf("%w: prices=%d features=%d sentiment=%d must be equal length",
			domain.ErrConstruction, n, len(features), len(sentiment))
	}
	if n < minLength {
		return nil, fmt.Errorf("%w: need at least %d points, got %d", domain.ErrConstruction, minLength, n)
	}
	if transactionCost < 0 {
		return nil, fmt.Errorf("%w: negative transaction cost %v", domain.ErrConstruction, transactionCost)
	}

	width := len(features[0])
	for i := range prices {
		if prices[i] <= 0 {
			return nil, fmt.Errorf("%w: non-positive price %v at index %d", domain.ErrConstruction, prices[i], i)
		}
		if len(features[i]) != width {
			return nil, fmt.Errorf("%w: feature row %d has width %d, expected %d",
				domain.ErrConstruction, i, len(features[i]), width)
		}
	}

	e := &Environment{
		prices:    prices,
		features:  features,
		sentiment: sentiment,
		cost:      transactionCost,
	}
	e.Reset()
	return e, nil
}

// Reset starts a new episode at t=1, flat, and returns the initial state.
func (e *Environment) Reset() rl.MarketState {
	e.t = 1
	e.position = rl.Flat
	e.done = false
	e.history = e.history[:0]
	return e.state()
}

// Step applies an action. The reward is earned by the position held over
// the interval that just ended; the new position only affects the next one.
func (e *Environment) Step(a rl.Action) (rl.MarketState, float64, bool, error) {
	if e.done {
		return nil, 0, true, domain.ErrEpisodeDone
	}
	if !a.Valid() {
		return nil, 0, false, fmt.Errorf("%w: action %d", domain.ErrInvalidRequest, int(a))
	}

	target := a.Position()

	cost := 0.0
	if target != e.position {
		cost = e.cost
	}

	prev, cur := e.prices[e.t-1], e.prices[e.t]
	ret := (cur - prev) / prev
	reward := float64(e.position)*ret - cost

	e.history = append(e.history, StepRecord{
		T:        e.t,
		Action:   a,
		Position: target,
		Return:   ret,
		Cost:     cost,
		Reward:   reward,
	})

	e.position = target
	e.t++
	e.done = e.t >= len(e.prices)-1

	return e.state(), reward, e.done, nil
}

func (e *Environment) state() rl.MarketState {
	return rl.NewMarketState(e.features[e.t], e.sentiment[e.t], e.position)
}

// StateSize is the width of every state this environment emits.
func (e *Environment) StateSize() int { return len(e.features[0]) + 2 }

// Len is the number of points in the underlying sequence.
func (e *Environment) Len() int { return len(e.prices) }

// StepsPerEpisode is the number of Step calls from Reset to done.
func (e *Environment) StepsPerEpisode() int { return len(e.prices) - 2 }

func (e *Environment) T() int                { return e.t }
func (e *Environment) Position() rl.Position { return e.position }
func (e *Environment) Done() bool            { return e.done }

// History returns a copy of this episode's step records.
func (e *Environment) History() []StepRecord {
	out := make([]StepRecord, len(e.history))
	copy(out, e.history)
	return out
}
