// Package factor implements the atomic screening rules and the
// combinations that group them. A factor sees one stock's daily bars in
// ascending date order and judges either the latest row (screening) or
// every row at once (backtest signal scan).
package factor

import (
	"math"
	"strings"

	"github.com/minleaf/sieve/internal/core"
)

// Result carries one factor's verdict for a single stock.
type Result struct {
	Passed   bool
	Value    float64 // sortable metric, meaningful only when HasValue
	HasValue bool
	Detail   string
}

func value(v float64) (float64, bool) {
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func joinReasons(reasons []string) string {
	if len(reasons) == 0 {
		return "not passed"
	}
	return strings.Join(reasons, "; ")
}

// Factor is one atomic screening rule.
type Factor interface {
	ID() string
	Label() string
	// Params reports the effective parameters for report payloads.
	Params() map[string]any
	// Evaluate judges the latest bar of the series.
	Evaluate(bars []core.Bar) Result
	// Scan marks every bar on which the rule fires. The returned mask
	// has the same length as bars.
	Scan(bars []core.Bar) []bool
}

// Column extractors. Bars always carry open/close/volume; turnover and
// pct_chg may be NaN depending on the data source.

func closes(bars []core.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func volumes(bars []core.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

func pctChgs(bars []core.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.PctChg
	}
	return out
}

func turnovers(bars []core.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Turnover
	}
	return out
}
