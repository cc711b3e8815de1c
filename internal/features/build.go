package features

import (
	"fmt"
	"math"

	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/market"
)

const (
	RSIWindow        = 14
	FastEMA          = 20
	SlowEMA          = 50
	VolatilityWindow = 20

	MACDFast      = 12
	MACDSlow      = 26
	MACDSignal    = 9
	BollingerSpan = 20
	BollingerK    = 2.0

	// MinRows is the shortest usable series after warm-up rows are dropped.
	MinRows = 3
)

// Names lists the feature columns in state order.
var Names = []string{"rsi", "ema_20", "ema_50", "volatility"}

// Width is the number of feature columns per row.
var Width = len(Names)

// MinBars is the bar count needed to produce MinRows complete rows.
func MinBars() int {
	return SlowEMA - 1 + MinRows
}

// Build computes the indicator matrix and keeps only rows where every
// indicator is defined, so Bars[i] and Features[i] describe the same day.
func Build(symbol string, bars []market.Bar) (market.Series, error) {
	closes := market.Closes(bars)

	cols := [][]float64{
		RSI(closes, RSIWindow),
		EMA(closes, FastEMA),
		EMA(closes, SlowEMA),
		RollingStd(PctChange(closes), VolatilityWindow),
	}

	s := market.Series{Symbol: symbol, FeatureNames: Names}
	for i := range bars {
		row := make([]float64, len(cols))
		ok := true
		for j, c := range cols {
			if math.IsNaN(c[i]) || math.IsInf(c[i], 0) {
				ok = false
				break
			}
			row[j] = c[i]
		}
		if !ok {
			continue
		}
		s.Bars = append(s.Bars, bars[i])
		s.Features = append(s.Features, row)
	}

	if len(s.Bars) < MinRows {
		return market.Series{}, fmt.Errorf("%w: %s has %d usable rows from %d bars, need %d (about %d bars)",
			domain.ErrInsufficientData, symbol, len(s.Bars), len(bars), MinRows, MinBars())
	}
	return s, nil
}
