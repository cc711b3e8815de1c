package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// StepLogger reports progress through a fixed list of pipeline steps. Each
// transition is logged; when out is non-nil a one-line bar is printed too.
type StepLogger struct {
	mu        sync.Mutex
	name      string
	steps     []string
	current   int
	startTime time.Time
	stepStart time.Time
	stepTimes []time.Duration
	out       io.Writer
}

// NewStepLogger starts the clock. Pass a nil writer for log-only output.
func NewStepLogger(name string, steps []string, out io.Writer) *StepLogger {
	now := time.Now()
	return &StepLogger{
		name:      name,
		steps:     steps,
		current:   -1,
		startTime: now,
		stepStart: now,
		stepTimes: make([]time.Duration, len(steps)),
		out:       out,
	}
}

// StartStep closes the running step, if any, and opens stepName.
// Unknown names are logged and ignored.
func (sl *StepLogger) StartStep(stepName string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	idx := -1
	for i, s := range sl.steps {
		if s == stepName {
			idx = i
			break
		}
	}
	if idx == -1 {
		log.Warn().Str("pipeline", sl.name).Str("step", stepName).Msg("Unknown pipeline step")
		return
	}

	sl.closeStep()
	sl.current = idx
	sl.stepStart = time.Now()
	sl.render(stepName)

	log.Info().
		Str("pipeline", sl.name).
		Str("step", stepName).
		Int("step_number", idx+1).
		Int("total_steps", len(sl.steps)).
		Msg("Starting pipeline step")
}

func (sl *StepLogger) closeStep() {
	if sl.current < 0 || sl.stepTimes[sl.current] != 0 {
		return
	}
	d := time.Since(sl.stepStart)
	sl.stepTimes[sl.current] = d
	log.Debug().
		Str("pipeline", sl.name).
		Str("step", sl.steps[sl.current]).
		Dur("duration", d).
		Msg("Pipeline step completed")
}

// Finish closes the last step and logs per-step timings.
func (sl *StepLogger) Finish() {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.closeStep()
	total := time.Since(sl.startTime)
	if sl.out != nil {
		fmt.Fprintf(sl.out, "\r%s: %d steps completed (%v)\n", sl.name, len(sl.steps), total.Round(time.Millisecond))
	}

	ev := log.Info().Str("pipeline", sl.name).Dur("total_duration", total)
	for i, s := range sl.steps {
		ev = ev.Dur(s, sl.stepTimes[i])
	}
	ev.Msg("Pipeline completed")
}

// Fail records the step that was running when the pipeline failed.
func (sl *StepLogger) Fail(err error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	step := "unknown"
	if sl.current >= 0 {
		step = sl.steps[sl.current]
	}
	if sl.out != nil {
		fmt.Fprintf(sl.out, "\r%s failed at %s: %v\n", sl.name, step, err)
	}
	log.Error().
		Err(err).
		Str("pipeline", sl.name).
		Str("failed_step", step).
		Int("completed_steps", sl.current).
		Int("total_steps", len(sl.steps)).
		Msg("Pipeline failed")
}

// Durations returns the recorded time of each step in declaration order.
func (sl *StepLogger) Durations() []time.Duration {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return append([]time.Duration(nil), sl.stepTimes...)
}

func (sl *StepLogger) render(message string) {
	if sl.out == nil || len(sl.steps) == 0 {
		return
	}
	const width = 20
	done := sl.current + 1
	filled := width * done / len(sl.steps)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	fmt.Fprintf(sl.out, "\r\033[K%s [%s] %d/%d - %s", sl.name, bar, done, len(sl.steps), message)
}
