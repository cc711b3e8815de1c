package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/rltrader/internal/domain"
)

// Guarded rate-limits a remote source and stops calling it after repeated
// failures until the breaker timeout elapses.
type Guarded struct {
	name    string
	inner   BarSource
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewGuarded(name string, inner BarSource, cfg Config) *Guarded {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = DefaultConfig().RequestsPerSec
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = DefaultConfig().BreakerFailures
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// missing data is the caller's problem, not the provider's
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrInsufficientData) || errors.Is(err, domain.ErrInvalidRequest)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("source", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Bar source circuit breaker changed state")
		},
	}

	return &Guarded{
		name:    name,
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *Guarded) Bars(ctx context.Context, symbol, period string) ([]Bar, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limit: %w", g.name, err)
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Bars(ctx, symbol, period)
	})
	if err != nil {
		return nil, err
	}
	return res.([]Bar), nil
}

// State reports the breaker state for health output.
func (g *Guarded) State() string {
	return g.breaker.State().String()
}
