// Package analytics computes descriptive risk figures from a close series.
package analytics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/sawpanic/rltrader/internal/domain"
	"github.com/sawpanic/rltrader/internal/market"
)

const (
	TradingDays = 252
	MinReturns  = 30
)

// RiskMetrics is rounded to four decimals.
type RiskMetrics struct {
	Symbol      string  `json:"symbol"`
	Volatility  float64 `json:"volatility"`
	MaxDrawdown float64 `json:"max_drawdown"`
	VaR95       float64 `json:"var_95"`
	Returns     int     `json:"returns"`
}

// Risk reports annualised volatility (population std of simple returns
// times sqrt 252), the deepest peak-to-trough drawdown of the compounded
// return path, and the 5th percentile of returns.
func Risk(symbol string, prices []float64) (RiskMetrics, error) {
	returns := Returns(prices)
	if len(returns) < MinReturns {
		return RiskMetrics{}, fmt.Errorf("%w: %d returns, need %d for risk metrics",
			domain.ErrInsufficientData, len(returns), MinReturns)
	}

	_, std := stat.PopMeanStdDev(returns, nil)
	return RiskMetrics{
		Symbol:      symbol,
		Volatility:  round4(std * math.Sqrt(TradingDays)),
		MaxDrawdown: round4(MaxDrawdown(returns)),
		VaR95:       round4(Percentile(returns, 5)),
		Returns:     len(returns),
	}, nil
}

// Returns are simple one-period returns.
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		out[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}
	return out
}

// MaxDrawdown is <= 0.
func MaxDrawdown(returns []float64) float64 {
	cum, peak, worst := 1.0, math.Inf(-1), 0.0
	for _, r := range returns {
		cum *= 1 + r
		peak = math.Max(peak, cum)
		if dd := (cum - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst
}

// Percentile interpolates linearly between closest ranks, with rank
// (n-1)*p/100 on the sorted data.
func Percentile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	rank := float64(len(s)-1) * p / 100
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return s[lo] + (s[hi]-s[lo])*frac
}

// PricePoint is one row of the price history.
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// History returns up to limit of the most recent closes, oldest first.
func History(bars []market.Bar, limit int) []PricePoint {
	if limit <= 0 || limit > len(bars) {
		limit = len(bars)
	}
	tail := bars[len(bars)-limit:]
	out := make([]PricePoint, len(tail))
	for i, b := range tail {
		out[i] = PricePoint{Date: b.Time.Format("2006-01-02"), Price: b.Close}
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
