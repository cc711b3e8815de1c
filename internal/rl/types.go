// Package rl holds the Markov-decision-process vocabulary shared by the
// environment, the replay memory and the agents.
package rl

import "fmt"

// Position is the holding during an interval: short, flat or long.
type Position int

const (
	Short Position = -1
	Flat  Position = 0
	Long  Position = 1
)

func (p Position) String() string {
	switch p {
	case Short:
		return "short"
	case Flat:
		return "flat"
	case Long:
		return "long"
	default:
		return fmt.Sprintf("position(%d)", int(p))
	}
}

// Action is a discrete action code. The training encoding is canonical
// everywhere in this module: 0 short, 1 flat, 2 long. Serving-side labels
// are derived from it in package signal.
type Action int

const (
	ActionShort Action = 0
	ActionFlat  Action = 1
	ActionLong  Action = 2
)

// NumActions is the size of the action space.
const NumActions = 3

// Valid reports whether a is one of the three action codes.
func (a Action) Valid() bool {
	return a >= ActionShort && a <= ActionLong
}

// Position decodes the target position the action asks for.
func (a Action) Position() Position {
	switch a {
	case ActionShort:
		return Short
	case ActionLong:
		return Long
	default:
		return Flat
	}
}

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return a.Position().String()
}

// ActionFor is the inverse of Action.Position.
func ActionFor(p Position) Action {
	switch p {
	case Short:
		return ActionShort
	case Long:
		return ActionLong
	default:
		return ActionFlat
	}
}

// MarketState is [features(t)..., sentiment(t), position].
type MarketState []float64

// NewMarketState assembles a state vector. The result owns its memory.
func NewMarketState(features []float64, sentiment float64, pos Position) MarketState {
	s := make(MarketState, 0, len(features)+2)
	s = append(s, features...)
	s = append(s, sentiment, float64(pos))
	return s
}

// Clone returns an independent copy.
func (s MarketState) Clone() MarketState {
	if s == nil {
		return nil
	}
	out := make(MarketState, len(s))
	copy(out, s)
	return out
}

// Transition is one environment step as seen by the learner.
type Transition struct {
	State     MarketState
	Action    Action
	Reward    float64
	NextState MarketState
	Done      bool
}

// NewTransition copies both states so the stored transition cannot alias
// buffers the caller keeps mutating.
func NewTransition(s MarketState, a Action, r float64, next MarketState, done bool) Transition {
	return Transition{
		State:     s.Clone(),
		Action:    a,
		Reward:    r,
		NextState: next.Clone(),
		Done:      done,
	}
}

// Argmax returns the index of the largest value, lowest index on ties.
func Argmax(q []float64) int {
	best := 0
	for i := 1; i < len(q); i++ {
		if q[i] > q[best] {
			best = i
		}
	}
	return best
}

// Max returns the largest value of a non-empty slice.
func Max(q []float64) float64 {
	return q[Argmax(q)]
}
