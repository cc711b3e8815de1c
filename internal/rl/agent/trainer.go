package agent

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/rl"
	"github.com/sawpanic/rltrader/internal/rl/env"
)

// DefaultBatchSize is the replay batch drawn after every step.
const DefaultBatchSize = 32

// Recorder receives training telemetry. A nil Recorder is allowed.
type Recorder interface {
	ObserveEpisode(symbol string, reward, epsilon float64)
	ObserveReplay(symbol string, samples int)
}

// EpisodeResult is the outcome of one episode.
type EpisodeResult struct {
	Episode     int           `json:"episode"`
	TotalReward float64       `json:"total_reward"`
	Steps       int           `json:"steps"`
	Epsilon     float64       `json:"epsilon"`
	MeanLoss    float64       `json:"mean_loss"`
	Duration    time.Duration `json:"duration"`
}

// TrainingReport summarises a full run.
type TrainingReport struct {
	Symbol       string          `json:"symbol"`
	Episodes     []EpisodeResult `json:"episodes"`
	FinalEpsilon float64         `json:"final_epsilon"`
	Updates      int             `json:"updates"`
	StateSize    int             `json:"state_size"`
}

// Trainer runs a fixed number of episodes. It has no convergence check:
// the caller picks the episode count and the run always terminates.
type Trainer struct {
	Symbol    string
	BatchSize int
	Recorder  Recorder
}

// Train steps env under agent's policy: act, step, remember, replay.
// Non-finite rewards or losses abort the run with domain.ErrDiverged.
func (tr *Trainer) Train(e *env.Environment, a *DQN, episodes int) (*TrainingReport, error) {
	if episodes <= 0 {
		return nil, fmt.Errorf("%w: episodes must be positive, got %d", domain.ErrInvalidRequest, episodes)
	}
	batch := tr.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	report := &TrainingReport{
		Symbol:    tr.Symbol,
		Episodes:  make([]EpisodeResult, 0, episodes),
		StateSize: e.StateSize(),
	}

	log.Info().
		Str("symbol", tr.Symbol).
		Int("episodes", episodes).
		Int("state_size", e.StateSize()).
		Int("steps_per_episode", e.StepsPerEpisode()).
		Msg("RL training loop started")

	for ep := 0; ep < episodes; ep++ {
		start := time.Now()
		state := e.Reset()
		res := EpisodeResult{Episode: ep + 1}
		lossSum, lossN := 0.0, 0

		for {
			action := a.Act(state)
			next, reward, done, err := e.Step(action)
			if err != nil {
				return report, fmt.Errorf("episode %d step %d: %w", ep+1, res.Steps, err)
			}
			a.Remember(rl.NewTransition(state, action, reward, next, done))

			stats := a.Replay(batch)
			if stats.Samples > 0 {
				if math.IsNaN(stats.MeanLoss) || math.IsInf(stats.MeanLoss, 0) {
					return report, fmt.Errorf("%w: loss %v in episode %d", domain.ErrDiverged, stats.MeanLoss, ep+1)
				}
				lossSum += stats.MeanLoss
				lossN++
			}
			if tr.Recorder != nil {
				tr.Recorder.ObserveReplay(tr.Symbol, stats.Samples)
			}

			state = next
			res.TotalReward += reward
			res.Steps++
			if done {
				break
			}
		}

		if math.IsNaN(res.TotalReward) || math.IsInf(res.TotalReward, 0) {
			return report, fmt.Errorf("%w: reward %v in episode %d", domain.ErrDiverged, res.TotalReward, ep+1)
		}

		res.Epsilon = a.Epsilon()
		if lossN > 0 {
			res.MeanLoss = lossSum / float64(lossN)
		}
		res.Duration = time.Since(start)
		report.Episodes = append(report.Episodes, res)

		if tr.Recorder != nil {
			tr.Recorder.ObserveEpisode(tr.Symbol, res.TotalReward, res.Epsilon)
		}

		log.Info().
			Str("symbol", tr.Symbol).
			Int("episode", ep+1).
			Int("of", episodes).
			Float64("reward", res.TotalReward).
			Float64("epsilon", res.Epsilon).
			Float64("mean_loss", res.MeanLoss).
			Dur("duration", res.Duration).
			Msg("Episode finished")
	}

	report.FinalEpsilon = a.Epsilon()
	report.Updates = a.Updates()
	return report, nil
}
