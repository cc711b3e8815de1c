package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/persistence"
)

type trainingRunsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTrainingRunsRepo creates a PostgreSQL training run repository.
func NewTrainingRunsRepo(db *sqlx.DB, timeout time.Duration) persistence.TrainingRunRepo {
	return &trainingRunsRepo{db: db, timeout: timeout}
}

// Insert fills run.ID and run.CreatedAt.
func (r *trainingRunsRepo) Insert(ctx context.Context, run *persistence.TrainingRun) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO training_runs (symbol, period, episodes, final_epsilon, updates,
			mean_reward, rewards, artifact_bytes, duration_ns)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		run.Symbol, run.Period, run.Episodes, run.FinalEpsilon, run.Updates,
		run.MeanReward, jsonOrEmpty(run.Rewards, "[]"), run.ArtifactBytes, int64(run.Duration)).
		Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert training run: %w", err)
	}
	return nil
}

func (r *trainingRunsRepo) LatestBySymbol(ctx context.Context, symbol string) (*persistence.TrainingRun, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var run persistence.TrainingRun
	err := r.db.GetContext(ctx, &run, `
		SELECT id, symbol, period, episodes, final_epsilon, updates, mean_reward, rewards,
			artifact_bytes, duration_ns, created_at
		FROM training_runs
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT 1`, symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no training run for %s", domain.ErrNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get training run: %w", err)
	}
	return &run, nil
}
