package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/features"
	"github.com/sawpanic/rltrader/internal/market"
)

func TestPercentileMatchesLinearRank(t *testing.T) {
	x := []float64{5, 1, 4, 2, 3}
	assert.InDelta(t, 1.2, Percentile(x, 5), 1e-12)
	assert.InDelta(t, 3.0, Percentile(x, 50), 1e-12)
	assert.InDelta(t, 5.0, Percentile(x, 100), 1e-12)
	assert.True(t, math.IsNaN(Percentile(nil, 5)))
}

func TestMaxDrawdown(t *testing.T) {
	// 100 -> 110 -> 88 -> 99
	r := Returns([]float64{100, 110, 88, 99})
	assert.InDelta(t, -0.2, MaxDrawdown(r), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdown(Returns([]float64{1, 2, 3})))
}

func TestRisk(t *testing.T) {
	prices := make([]float64, 41)
	for i := range prices {
		if i%2 == 0 {
			prices[i] = 100
		} else {
			prices[i] = 101
		}
	}
	m, err := Risk("X", prices)
	require.NoError(t, err)
	assert.Equal(t, 40, m.Returns)
	assert.Greater(t, m.Volatility, 0.0)
	assert.LessOrEqual(t, m.MaxDrawdown, 0.0)
	assert.InDelta(t, -0.0099, m.VaR95, 1e-4)

	_, err = Risk("X", prices[:30])
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestHistory(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, 10)
	for i := range bars {
		bars[i] = market.Bar{Time: start.AddDate(0, 0, i), Close: float64(i)}
	}
	h := History(bars, 3)
	require.Len(t, h, 3)
	assert.Equal(t, PricePoint{Date: "2024-01-08", Price: 7}, h[0])
	assert.Len(t, History(bars, 0), 10)
	assert.Len(t, History(bars, 60), 10)
}

func TestIndicators(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, 80)
	for i := range bars {
		c := 100 + 5*math.Sin(float64(i)/4)
		bars[i] = market.Bar{Time: start.AddDate(0, 0, i), Close: c, Volume: float64(1000 + i)}
	}

	all, err := Indicators("X", bars, 0)
	require.NoError(t, err)
	// EMA(50) is the last column to warm up
	require.Len(t, all, len(bars)-(features.SlowEMA-1))
	assert.Equal(t, "2024-02-19", all[0].Date)

	pts, err := Indicators("X", bars, 5)
	require.NoError(t, err)
	require.Len(t, pts, 5)
	last := pts[4]
	assert.Equal(t, bars[79].Close, last.Close)
	assert.Equal(t, 1079.0, last.Volume)
	assert.Equal(t, all[len(all)-1], last)

	mean := 0.0
	for _, b := range bars[60:] {
		mean += b.Close
	}
	mean /= 20
	assert.InDelta(t, mean, last.BBMiddle, 1e-9)
	assert.InDelta(t, last.BBUpper-last.BBMiddle, last.BBMiddle-last.BBLower, 1e-9)
	for _, p := range pts {
		assert.InDelta(t, p.MACD-p.MACDSignal, p.MACDHistogram, 1e-12)
		assert.GreaterOrEqual(t, p.BBUpper, p.BBLower)
	}

	_, err = Indicators("X", bars[:30], 10)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}
