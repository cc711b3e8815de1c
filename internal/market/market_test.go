package market

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/rltrader/internal/domain"
)

const sampleCSV = `date,open,high,low,close,volume
2024-01-03,101,102,100,101.5,1200
2024-01-02,100,101,99,100.5,1000
2024-01-04,101.5,103,101,102.5,900
`

func TestReadCSVSortsAndParses(t *testing.T) {
	bars, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, []float64{100.5, 101.5, 102.5}, Closes(bars))
	assert.True(t, bars[0].Time.Before(bars[1].Time))
	assert.Equal(t, 1000.0, bars[0].Volume)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("date,open,close\n2024-01-01,1,2\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = ReadCSV(strings.NewReader("date,open,high,low,close,volume\nnope,1,1,1,1,1\n"))
	assert.Error(t, err)

	bars, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestCSVSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "AAPL.csv"), []byte(sampleCSV), 0o644))

	src := NewCSVSource(dir)
	bars, err := src.Bars(context.Background(), "aapl", "1y")
	require.NoError(t, err)
	assert.Len(t, bars, 3)

	_, err = src.Bars(context.Background(), "MSFT", "1y")
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestPeriodRange(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	start, end, err := PeriodRange("6mo", now)
	require.NoError(t, err)
	assert.Equal(t, now, end)
	assert.Equal(t, 182*24*time.Hour, end.Sub(start))

	_, _, err = PeriodRange("10d", now)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

type flakySource struct {
	calls int
	err   error
}

func (f *flakySource) Bars(context.Context, string, string) ([]Bar, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []Bar{{Time: time.Unix(0, 0), Close: 1}}, nil
}

func TestGuardedOpensAfterFailures(t *testing.T) {
	inner := &flakySource{err: errors.New("upstream down")}
	cfg := DefaultConfig()
	cfg.RequestsPerSec = 1000
	cfg.Burst = 100
	cfg.BreakerFailures = 3
	cfg.BreakerTimeout = time.Hour
	g := NewGuarded("test", inner, cfg)

	for i := 0; i < 3; i++ {
		_, err := g.Bars(context.Background(), "X", "1y")
		require.Error(t, err)
	}
	_, err := g.Bars(context.Background(), "X", "1y")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, "open", g.State())
}

func TestGuardedIgnoresMissingData(t *testing.T) {
	inner := &flakySource{err: domain.ErrInsufficientData}
	cfg := DefaultConfig()
	cfg.RequestsPerSec = 1000
	cfg.Burst = 100
	cfg.BreakerFailures = 2
	g := NewGuarded("test", inner, cfg)

	for i := 0; i < 5; i++ {
		_, err := g.Bars(context.Background(), "X", "1y")
		assert.ErrorIs(t, err, domain.ErrInsufficientData)
	}
	assert.Equal(t, 5, inner.calls)
	assert.Equal(t, "closed", g.State())
}

func TestGuardedHonoursContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestsPerSec = 0.001
	cfg.Burst = 1
	g := NewGuarded("slow", &flakySource{}, cfg)

	_, err := g.Bars(context.Background(), "X", "1y")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Bars(ctx, "X", "1y")
	assert.Error(t, err)
}

func TestNewSource(t *testing.T) {
	src, err := NewSource(Config{Source: "csv", CSVDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &CSVSource{}, src)

	src, err = NewSource(DefaultConfig())
	require.NoError(t, err)
	assert.IsType(t, &Guarded{}, src)

	t.Setenv("ALPACA_API_KEY", "")
	t.Setenv("ALPACA_SECRET_KEY", "")
	_, err = NewSource(Config{Source: "alpaca"})
	assert.ErrorIs(t, err, domain.ErrConstruction)

	_, err = NewSource(Config{Source: "bloomberg"})
	assert.ErrorIs(t, err, domain.ErrConstruction)
}
