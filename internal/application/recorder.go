package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx/types"

	"github.com/sawpanic/rltrader/internal/metrics"
	"github.com/sawpanic/rltrader/internal/papertrade"
	"github.com/sawpanic/rltrader/internal/persistence"
)

// PaperRecorder exports run metrics and, when a repository is configured,
// stores the run.
type PaperRecorder struct {
	repo    persistence.PaperRunRepo
	metrics *metrics.Registry
}

func NewPaperRecorder(repo persistence.PaperRunRepo, m *metrics.Registry) *PaperRecorder {
	return &PaperRecorder{repo: repo, metrics: m}
}

func (p *PaperRecorder) SavePaperRun(ctx context.Context, r *papertrade.Result) error {
	p.metrics.RecordPaperRun(r.Symbol, r.PortfolioValue-r.InitialCash)
	if p.repo == nil {
		return nil
	}
	run, err := toPaperRun(r)
	if err != nil {
		return err
	}
	return p.repo.Insert(ctx, run)
}

func toPaperRun(r *papertrade.Result) (persistence.PaperRun, error) {
	trades, err := json.Marshal(r.Trades)
	if err != nil {
		return persistence.PaperRun{}, fmt.Errorf("encode trades: %w", err)
	}
	curve, err := json.Marshal(r.EquityCurve)
	if err != nil {
		return persistence.PaperRun{}, fmt.Errorf("encode equity curve: %w", err)
	}
	return persistence.PaperRun{
		ID:             r.RunID,
		Symbol:         r.Symbol,
		Days:           r.Days,
		InitialCash:    r.InitialCash,
		FinalCash:      r.FinalCash,
		SharesHeld:     r.SharesHeld,
		PortfolioValue: r.PortfolioValue,
		Trades:         types.JSONText(trades),
		EquityCurve:    types.JSONText(curve),
		StartedAt:      r.StartedAt,
	}, nil
}
