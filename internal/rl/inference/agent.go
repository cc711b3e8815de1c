// Package inference serves greedy actions from a persisted Q-network.
package inference

import (
	"context"
	"fmt"

	"github.com/sawpanic/rltrader/internal/artifacts"
	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/rl"
	"github.com/sawpanic/rltrader/internal/rl/qnet"
)

// Agent is read-only after Load and safe for concurrent use.
type Agent struct {
	symbol string
	net    *qnet.Network
}

// Load restores the agent for symbol. There is no fallback to an untrained
// network: a missing artifact is domain.ErrNotFound.
func Load(ctx context.Context, store artifacts.Store, symbol string) (*Agent, error) {
	sym, err := artifacts.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	data, err := store.Load(ctx, sym)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", sym, err)
	}
	net, err := qnet.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode model %s: %w", sym, err)
	}
	return New(sym, net)
}

// New wraps an in-memory network, typically one fresh from training.
func New(symbol string, net *qnet.Network) (*Agent, error) {
	if net == nil {
		return nil, fmt.Errorf("%w: nil network", domain.ErrConstruction)
	}
	if net.Outputs() != rl.NumActions {
		return nil, fmt.Errorf("%w: model for %s has %d outputs", domain.ErrConstruction, symbol, net.Outputs())
	}
	return &Agent{symbol: symbol, net: net}, nil
}

func (a *Agent) Symbol() string { return a.symbol }

func (a *Agent) StateSize() int { return a.net.Inputs() }

// QValues returns the network output for state.
func (a *Agent) QValues(state rl.MarketState) ([]float64, error) {
	if len(state) != a.net.Inputs() {
		return nil, fmt.Errorf("%w: state has %d values, model %s expects %d",
			domain.ErrInvalidRequest, len(state), a.symbol, a.net.Inputs())
	}
	return a.net.Predict(state), nil
}

// Act picks the greedy action. Ties go to the lowest action index.
func (a *Agent) Act(state rl.MarketState) (rl.Action, error) {
	q, err := a.QValues(state)
	if err != nil {
		return rl.ActionFlat, err
	}
	return rl.Action(rl.Argmax(q)), nil
}
