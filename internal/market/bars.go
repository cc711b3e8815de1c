// Package market fetches daily OHLCV bars from pluggable sources.
package market

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sawpanic/rltrader/internal/domain"
)

// Bar is one daily OHLCV observation.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is a bar history aligned row for row with its feature matrix.
type Series struct {
	Symbol       string
	Bars         []Bar
	Features     [][]float64
	FeatureNames []string
}

// Closes returns the close price of every bar.
func (s Series) Closes() []float64 {
	return Closes(s.Bars)
}

func (s Series) Len() int { return len(s.Bars) }

// Closes extracts close prices.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// BarSource returns daily bars, oldest first.
type BarSource interface {
	Bars(ctx context.Context, symbol, period string) ([]Bar, error)
}

var periods = map[string]time.Duration{
	"1mo": 30 * 24 * time.Hour,
	"3mo": 91 * 24 * time.Hour,
	"6mo": 182 * 24 * time.Hour,
	"1y":  365 * 24 * time.Hour,
	"2y":  730 * 24 * time.Hour,
	"5y":  1826 * 24 * time.Hour,
}

// PeriodRange converts a lookback like "6mo" into a [start, end) range
// ending at now.
func PeriodRange(period string, now time.Time) (time.Time, time.Time, error) {
	d, ok := periods[strings.ToLower(period)]
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: unknown period %q", domain.ErrInvalidRequest, period)
	}
	return now.Add(-d), now, nil
}

// Config selects the bar source and its protection settings.
type Config struct {
	Source          string        `yaml:"source"`
	CSVDir          string        `yaml:"csv_dir"`
	AlpacaKey       string        `yaml:"alpaca_key"`
	AlpacaSecret    string        `yaml:"alpaca_secret"`
	RequestsPerSec  float64       `yaml:"requests_per_sec"`
	Burst           int           `yaml:"burst"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Source:          "yahoo",
		CSVDir:          "data/bars",
		RequestsPerSec:  2,
		Burst:           4,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// NewSource builds the configured source wrapped in a breaker and limiter.
// CSV sources are local and skip the wrapper.
func NewSource(cfg Config) (BarSource, error) {
	switch strings.ToLower(cfg.Source) {
	case "", "yahoo":
		return NewGuarded("yahoo", NewYahooSource(), cfg), nil
	case "alpaca":
		key, secret := cfg.AlpacaKey, cfg.AlpacaSecret
		if key == "" {
			key = os.Getenv("ALPACA_API_KEY")
		}
		if secret == "" {
			secret = os.Getenv("ALPACA_SECRET_KEY")
		}
		if key == "" || secret == "" {
			return nil, fmt.Errorf("%w: alpaca source needs ALPACA_API_KEY and ALPACA_SECRET_KEY", domain.ErrConstruction)
		}
		return NewGuarded("alpaca", NewAlpacaSource(key, secret), cfg), nil
	case "csv":
		return NewCSVSource(cfg.CSVDir), nil
	default:
		return nil, fmt.Errorf("%w: unknown data source %q", domain.ErrConstruction, cfg.Source)
	}
}

func validBar(b Bar) bool {
	return b.Close > 0 && !b.Time.IsZero()
}
