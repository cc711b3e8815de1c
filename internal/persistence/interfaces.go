// Package persistence defines the run-history repositories. Everything here
// is optional: the service runs without a database.
package persistence

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// PaperRun is one stored paper-trading simulation.
type PaperRun struct {
	ID             string         `json:"id" db:"id"`
	Symbol         string         `json:"symbol" db:"symbol"`
	Days           int            `json:"days" db:"days"`
	InitialCash    float64        `json:"initial_cash" db:"initial_cash"`
	FinalCash      float64        `json:"final_cash" db:"final_cash"`
	SharesHeld     int            `json:"shares_held" db:"shares_held"`
	PortfolioValue float64        `json:"portfolio_value" db:"portfolio_value"`
	Trades         types.JSONText `json:"trades" db:"trades"`
	EquityCurve    types.JSONText `json:"equity_curve" db:"equity_curve"`
	StartedAt      time.Time      `json:"started_at" db:"started_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// TrainingRun summarises one training job.
type TrainingRun struct {
	ID            int64          `json:"id" db:"id"`
	Symbol        string         `json:"symbol" db:"symbol"`
	Period        string         `json:"period" db:"period"`
	Episodes      int            `json:"episodes" db:"episodes"`
	FinalEpsilon  float64        `json:"final_epsilon" db:"final_epsilon"`
	Updates       int            `json:"updates" db:"updates"`
	MeanReward    float64        `json:"mean_reward" db:"mean_reward"`
	Rewards       types.JSONText `json:"rewards" db:"rewards"`
	ArtifactBytes int            `json:"artifact_bytes" db:"artifact_bytes"`
	Duration      time.Duration  `json:"duration" db:"duration_ns"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// PaperRunRepo stores paper-trading results.
type PaperRunRepo interface {
	// Insert fails with domain.ErrInvalidRequest on a duplicate ID.
	Insert(ctx context.Context, run PaperRun) error

	// Get returns domain.ErrNotFound for an unknown ID.
	Get(ctx context.Context, id string) (*PaperRun, error)

	// ListBySymbol returns the newest runs first.
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]PaperRun, error)
}

// TrainingRunRepo stores training summaries.
type TrainingRunRepo interface {
	Insert(ctx context.Context, run *TrainingRun) error
	LatestBySymbol(ctx context.Context, symbol string) (*TrainingRun, error)
}

// Repository bundles the repositories.
type Repository struct {
	PaperRuns    PaperRunRepo
	TrainingRuns TrainingRunRepo
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for persistence layer
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
}
