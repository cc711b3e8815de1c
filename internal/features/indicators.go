// Package features turns raw bars into the per-step indicator rows the agent
// observes.
package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Values before an indicator's warm-up window are NaN.

// EMA is the recursive exponential average with alpha 2/(span+1), seeded
// with the first value. Output is valid from index span-1.
func EMA(x []float64, span int) []float64 {
	return ewm(x, 2.0/float64(span+1), span)
}

// ewm seeds with x[0] and reports NaN until minPeriods values were seen.
func ewm(x []float64, alpha float64, minPeriods int) []float64 {
	out := make([]float64, len(x))
	var y float64
	for i, v := range x {
		if i == 0 {
			y = v
		} else {
			y = (1-alpha)*y + alpha*v
		}
		if i+1 < minPeriods {
			out[i] = math.NaN()
		} else {
			out[i] = y
		}
	}
	return out
}

// RSI is Wilder's relative strength index. A window with no losses
// reads 100.
func RSI(closes []float64, window int) []float64 {
	n := len(closes)
	up := make([]float64, n)
	down := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			up[i] = d
		} else {
			down[i] = -d
		}
	}
	alpha := 1.0 / float64(window)
	avgUp := ewm(up, alpha, window)
	avgDown := ewm(down, alpha, window)

	out := make([]float64, n)
	for i := range out {
		switch {
		case math.IsNaN(avgUp[i]):
			out[i] = math.NaN()
		case avgDown[i] == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+avgUp[i]/avgDown[i])
		}
	}
	return out
}

// PctChange is x[i]/x[i-1]-1; index 0 is NaN.
func PctChange(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i == 0 || x[i-1] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[i]/x[i-1] - 1
	}
	return out
}

// RollingStd is the sample standard deviation over a trailing window. Any
// NaN inside the window makes that output NaN.
func RollingStd(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i+1 < window {
			out[i] = math.NaN()
			continue
		}
		w := x[i+1-window : i+1]
		if hasNaN(w) {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.StdDev(w, nil)
	}
	return out
}

func hasNaN(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// MACD is EMA(fast) - EMA(slow) with its EMA(signal) line and the histogram
// between them. Unlike EMA it has no warm-up: every index is defined.
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	f := ewm(closes, 2.0/float64(fast+1), 1)
	s := ewm(closes, 2.0/float64(slow+1), 1)
	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = f[i] - s[i]
	}
	sig = ewm(line, 2.0/float64(signal+1), 1)
	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// SMA is the trailing simple mean; NaN before the window fills.
func SMA(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i+1 < window {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.Mean(x[i+1-window:i+1], nil)
	}
	return out
}

// Bollinger returns SMA(window) plus and minus k sample standard deviations.
func Bollinger(closes []float64, window int, k float64) (upper, middle, lower []float64) {
	middle = SMA(closes, window)
	sd := RollingStd(closes, window)
	upper = make([]float64, len(closes))
	lower = make([]float64, len(closes))
	for i := range closes {
		upper[i] = middle[i] + k*sd[i]
		lower[i] = middle[i] - k*sd[i]
	}
	return upper, middle, lower
}
