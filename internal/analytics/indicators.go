package analytics

import (
	"fmt"
	"math"

	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/features"
	"github.com/sawpanic/rltrader/internal/market"
)

// IndicatorPoint is one bar of the indicator table.
type IndicatorPoint struct {
	Date          string  `json:"date"`
	Close         float64 `json:"close"`
	Volume        float64 `json:"volume"`
	RSI           float64 `json:"rsi"`
	EMA20         float64 `json:"ema_20"`
	EMA50         float64 `json:"ema_50"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	BBUpper       float64 `json:"bb_upper"`
	BBMiddle      float64 `json:"bb_middle"`
	BBLower       float64 `json:"bb_lower"`
}

// Indicators computes every column over the whole bar series, keeps the
// bars where all of them are defined and returns the last limit of those,
// oldest first.
func Indicators(symbol string, bars []market.Bar, limit int) ([]IndicatorPoint, error) {
	closes := market.Closes(bars)
	rsi := features.RSI(closes, features.RSIWindow)
	fast := features.EMA(closes, features.FastEMA)
	slow := features.EMA(closes, features.SlowEMA)
	macd, sig, hist := features.MACD(closes, features.MACDFast, features.MACDSlow, features.MACDSignal)
	upper, middle, lower := features.Bollinger(closes, features.BollingerSpan, features.BollingerK)

	out := make([]IndicatorPoint, 0, len(bars))
	for i, b := range bars {
		p := IndicatorPoint{
			Date:          b.Time.Format("2006-01-02"),
			Close:         b.Close,
			Volume:        b.Volume,
			RSI:           rsi[i],
			EMA20:         fast[i],
			EMA50:         slow[i],
			MACD:          macd[i],
			MACDSignal:    sig[i],
			MACDHistogram: hist[i],
			BBUpper:       upper[i],
			BBMiddle:      middle[i],
			BBLower:       lower[i],
		}
		if !finite(p.RSI, p.EMA20, p.EMA50, p.MACD, p.MACDSignal, p.MACDHistogram, p.BBUpper, p.BBMiddle, p.BBLower) {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s has no complete indicator rows from %d bars",
			domain.ErrInsufficientData, symbol, len(bars))
	}
	if limit > 0 && limit < len(out) {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
