package application

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/rltrader/internal/artifacts"
	"github.com/sawpanic/rltrader/internal/config"
	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/features"
	rlog "github.com/sawpanic/rltrader/internal/log"
	"github.com/sawpanic/rltrader/internal/market"
	"github.com/sawpanic/rltrader/internal/metrics"
	"github.com/sawpanic/rltrader/internal/persistence"
	"github.com/sawpanic/rltrader/internal/rl"
	"github.com/sawpanic/rltrader/internal/rl/agent"
	"github.com/sawpanic/rltrader/internal/rl/env"
	"github.com/sawpanic/rltrader/internal/rl/qnet"
)

// Training pipeline steps, in order.
const (
	StepFetch    = "fetch bars"
	StepFeatures = "build features"
	StepTrain    = "train agent"
	StepSave     = "save artifact"
	StepRecord   = "record run"
)

var trainingSteps = []string{StepFetch, StepFeatures, StepTrain, StepSave, StepRecord}

// Invalidator drops a cached agent after its artifact changed.
type Invalidator interface {
	Invalidate(symbol string)
}

type TrainRequest struct {
	Symbol   string `json:"symbol"`
	Episodes int    `json:"episodes"`
	Period   string `json:"period"`
}

// TrainResult is what a finished job reports back.
type TrainResult struct {
	Symbol        string                `json:"symbol"`
	Period        string                `json:"period"`
	Bars          int                   `json:"bars"`
	ArtifactBytes int                   `json:"artifact_bytes"`
	Duration      time.Duration         `json:"duration"`
	Report        *agent.TrainingReport `json:"report"`
}

// TrainingService runs the offline pipeline: bars, indicators, DQN training
// and artifact upload. News sentiment is not available historically, so the
// training sentiment column is all zeros.
type TrainingService struct {
	bars     market.BarSource
	store    artifacts.Store
	cfg      config.TrainingConfig
	metrics  *metrics.Registry
	runs     persistence.TrainingRunRepo
	cache    Invalidator
	progress io.Writer
}

func NewTrainingService(bars market.BarSource, store artifacts.Store, cfg config.TrainingConfig, m *metrics.Registry) *TrainingService {
	return &TrainingService{bars: bars, store: store, cfg: cfg, metrics: m}
}

// WithRunRepo records a summary row after every successful job.
func (s *TrainingService) WithRunRepo(repo persistence.TrainingRunRepo) *TrainingService {
	s.runs = repo
	return s
}

// WithInvalidator forgets the served agent once a new artifact is saved.
func (s *TrainingService) WithInvalidator(inv Invalidator) *TrainingService {
	s.cache = inv
	return s
}

// WithProgress prints a step bar to w.
func (s *TrainingService) WithProgress(w io.Writer) *TrainingService {
	s.progress = w
	return s
}

// Train runs one job to completion. Zero or negative values in req fall
// back to the configured episodes and period.
func (s *TrainingService) Train(ctx context.Context, req TrainRequest) (*TrainResult, error) {
	symbol, err := artifacts.NormalizeSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	episodes := req.Episodes
	if episodes <= 0 {
		episodes = s.cfg.Episodes
	}
	period := req.Period
	if period == "" {
		period = s.cfg.Period
	}

	start := time.Now()
	steps := rlog.NewStepLogger("train "+symbol, trainingSteps, s.progress)
	res, err := s.run(ctx, steps, symbol, period, episodes)
	if err != nil {
		steps.Fail(err)
		return nil, err
	}
	steps.Finish()
	res.Duration = time.Since(start)

	log.Info().
		Str("symbol", symbol).
		Str("period", period).
		Int("episodes", episodes).
		Int("artifact_bytes", res.ArtifactBytes).
		Dur("duration", res.Duration).
		Msg("Training job complete")
	return res, nil
}

func (s *TrainingService) run(ctx context.Context, steps *rlog.StepLogger, symbol, period string, episodes int) (*TrainResult, error) {
	steps.StartStep(StepFetch)
	timer := s.metrics.StartStepTimer("train_fetch")
	bars, err := s.bars.Bars(ctx, symbol, period)
	if err != nil {
		timer.Stop("error")
		return nil, fmt.Errorf("bars for %s: %w", symbol, err)
	}
	timer.Stop("ok")

	steps.StartStep(StepFeatures)
	series, err := features.Build(symbol, bars)
	if err != nil {
		return nil, err
	}
	sentiment := make([]float64, series.Len())
	e, err := env.New(series.Closes(), series.Features, sentiment, s.cfg.TransactionCost)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	steps.StartStep(StepTrain)
	netCfg := s.cfg.Network
	netCfg.Inputs = e.StateSize()
	netCfg.Outputs = rl.NumActions
	net, err := qnet.New(netCfg, s.cfg.Agent.Seed)
	if err != nil {
		return nil, err
	}
	dqn, err := agent.NewDQN(s.cfg.Agent, net)
	if err != nil {
		return nil, err
	}
	trainer := &agent.Trainer{Symbol: symbol, BatchSize: s.cfg.BatchSize, Recorder: s.metrics}
	timer = s.metrics.StartStepTimer("train_agent")
	report, err := trainer.Train(e, dqn, episodes)
	if err != nil {
		timer.Stop("error")
		return nil, err
	}
	timer.Stop("ok")

	steps.StartStep(StepSave)
	artifact, err := net.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode %s model: %w", symbol, err)
	}
	if err := s.store.Save(ctx, symbol, artifact); err != nil {
		return nil, fmt.Errorf("save %s model: %w", symbol, err)
	}
	if s.cache != nil {
		s.cache.Invalidate(symbol)
	}

	res := &TrainResult{
		Symbol:        symbol,
		Period:        period,
		Bars:          len(bars),
		ArtifactBytes: len(artifact),
		Report:        report,
	}

	steps.StartStep(StepRecord)
	if s.runs != nil {
		run, err := trainingRun(res, report)
		if err != nil {
			return nil, err
		}
		if err := s.runs.Insert(ctx, run); err != nil {
			// the model is already saved; losing the summary row is not fatal
			log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to record training run")
		}
	}
	return res, nil
}

func trainingRun(res *TrainResult, report *agent.TrainingReport) (*persistence.TrainingRun, error) {
	if len(report.Episodes) == 0 {
		return nil, fmt.Errorf("%w: training report has no episodes", domain.ErrInvalidRequest)
	}
	rewards := make([]float64, len(report.Episodes))
	total := 0.0
	for i, ep := range report.Episodes {
		rewards[i] = ep.TotalReward
		total += ep.TotalReward
	}
	raw, err := json.Marshal(rewards)
	if err != nil {
		return nil, err
	}
	var elapsed time.Duration
	for _, ep := range report.Episodes {
		elapsed += ep.Duration
	}
	return &persistence.TrainingRun{
		Symbol:        res.Symbol,
		Period:        res.Period,
		Episodes:      len(report.Episodes),
		FinalEpsilon:  report.FinalEpsilon,
		Updates:       report.Updates,
		MeanReward:    total / float64(len(report.Episodes)),
		Rewards:       types.JSONText(raw),
		ArtifactBytes: res.ArtifactBytes,
		Duration:      elapsed,
	}, nil
}
