package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/persistence"
)

const uniqueViolation = "23505"

type paperRunsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPaperRunsRepo creates a PostgreSQL paper run repository.
func NewPaperRunsRepo(db *sqlx.DB, timeout time.Duration) persistence.PaperRunRepo {
	return &paperRunsRepo{db: db, timeout: timeout}
}

func (r *paperRunsRepo) Insert(ctx context.Context, run persistence.PaperRun) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO paper_runs (id, symbol, days, initial_cash, final_cash, shares_held,
			portfolio_value, trades, equity_curve, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query,
		run.ID, run.Symbol, run.Days, run.InitialCash, run.FinalCash, run.SharesHeld,
		run.PortfolioValue, jsonOrEmpty(run.Trades, "[]"), jsonOrEmpty(run.EquityCurve, "[]"), run.StartedAt).
		Scan(&run.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: duplicate paper run %s", domain.ErrInvalidRequest, run.ID)
		}
		return fmt.Errorf("failed to insert paper run: %w", err)
	}
	return nil
}

func (r *paperRunsRepo) Get(ctx context.Context, id string) (*persistence.PaperRun, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var run persistence.PaperRun
	err := r.db.GetContext(ctx, &run, `
		SELECT id, symbol, days, initial_cash, final_cash, shares_held, portfolio_value,
			trades, equity_curve, started_at, created_at
		FROM paper_runs
		WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: paper run %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get paper run: %w", err)
	}
	return &run, nil
}

func (r *paperRunsRepo) ListBySymbol(ctx context.Context, symbol string, limit int) ([]persistence.PaperRun, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	runs := []persistence.PaperRun{}
	err := r.db.SelectContext(ctx, &runs, `
		SELECT id, symbol, days, initial_cash, final_cash, shares_held, portfolio_value,
			trades, equity_curve, started_at, created_at
		FROM paper_runs
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list paper runs: %w", err)
	}
	return runs, nil
}

func jsonOrEmpty(j []byte, empty string) []byte {
	if len(j) == 0 {
		return []byte(empty)
	}
	return j
}
