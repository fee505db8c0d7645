package indicator

import "math"

// Series helpers for factor computation. Every function returns a slice
// aligned to its input: positions without enough samples hold NaN, so a
// factor can index indicator values and bars by the same row.

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// RollingMean computes the trailing-window mean at every position.
// NaN samples are skipped; positions where fewer than minPeriods
// samples remain are NaN.
func RollingMean(vals []float64, window, minPeriods int) []float64 {
	out := nanSlice(len(vals))
	for i := range vals {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		var sum float64
		count := 0
		for j := lo; j <= i; j++ {
			if !math.IsNaN(vals[j]) {
				sum += vals[j]
				count++
			}
		}
		if count >= minPeriods && count > 0 {
			out[i] = sum / float64(count)
		}
	}
	return out
}

// RollingStd computes the trailing-window sample standard deviation
// (ddof 1) at every position, skipping NaN samples. Positions with
// fewer than minPeriods samples, or fewer than two, are NaN.
func RollingStd(vals []float64, window, minPeriods int) []float64 {
	out := nanSlice(len(vals))
	for i := range vals {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		var sum float64
		count := 0
		for j := lo; j <= i; j++ {
			if !math.IsNaN(vals[j]) {
				sum += vals[j]
				count++
			}
		}
		if count < minPeriods || count < 2 {
			continue
		}
		mean := sum / float64(count)
		var ss float64
		for j := lo; j <= i; j++ {
			if !math.IsNaN(vals[j]) {
				d := vals[j] - mean
				ss += d * d
			}
		}
		out[i] = math.Sqrt(ss / float64(count-1))
	}
	return out
}

// EMA computes an exponential moving average seeded from the first
// value, alpha = 2/(span+1). The result has no warmup NaNs.
func EMA(vals []float64, span int) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = (vals[i]-out[i-1])*alpha + out[i-1]
	}
	return out
}

// MACD computes the MACD line (fast EMA - slow EMA) and its signal
// line (EMA of the MACD line over signalSpan).
func MACD(closes []float64, fast, slow, signalSpan int) (macd, signal []float64) {
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	macd = make([]float64, len(closes))
	for i := range macd {
		macd[i] = emaFast[i] - emaSlow[i]
	}
	signal = EMA(macd, signalSpan)
	return macd, signal
}

// RSI computes the relative strength index over trailing simple means
// of gains and losses. Valid from index period onward; a window with
// no losing days yields 0.
func RSI(closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if n == 0 || period < 1 {
		return out
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	for i := period; i < n; i++ {
		var g, l float64
		for j := i - period + 1; j <= i; j++ {
			g += gains[j]
			l += losses[j]
		}
		g /= float64(period)
		l /= float64(period)
		if l == 0 {
			out[i] = 0
			continue
		}
		rs := g / l
		out[i] = 100 - 100/(1+rs)
	}
	return out
}
