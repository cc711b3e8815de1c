// Package signal turns a trained agent's greedy action into a BUY, HOLD or
// SELL recommendation.
package signal

import (
	"math"

	"github.com/sawpanic/rltrader/internal/rl"
)

// Signal is the externally visible recommendation.
type Signal string

const (
	Buy  Signal = "BUY"
	Hold Signal = "HOLD"
	Sell Signal = "SELL"
)

// Fixed confidence attached to each signal.
const (
	directionalConfidence = 0.6
	holdConfidence        = 0.4
)

// FromAction maps the agent's position-target action to a signal. Long
// means buy and short means sell, matching how the agent was rewarded.
func FromAction(a rl.Action) (Signal, float64) {
	switch a {
	case rl.ActionLong:
		return Buy, directionalConfidence
	case rl.ActionShort:
		return Sell, directionalConfidence
	default:
		return Hold, holdConfidence
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
