package factor

import (
	"fmt"
	"math"

	"github.com/minleaf/sieve/internal/core"
	"github.com/minleaf/sieve/internal/indicator"
)

// RSIRebound fires when the RSI climbs back out of the oversold zone
// within the recent check window.
type RSIRebound struct {
	period    int
	oversold  float64
	checkDays int
}

// NewRSIRebound creates the oversold-rebound factor. Zero values select
// the defaults (RSI 14, oversold 35, 3-day window).
func NewRSIRebound(period int, oversold float64, checkDays int) *RSIRebound {
	if period == 0 {
		period = 14
	}
	if oversold == 0 {
		oversold = 35
	}
	if checkDays == 0 {
		checkDays = 3
	}
	return &RSIRebound{period: period, oversold: oversold, checkDays: checkDays}
}

func (f *RSIRebound) ID() string    { return "rsi" }
func (f *RSIRebound) Label() string { return "RSI超卖反弹" }

func (f *RSIRebound) Params() map[string]any {
	return map[string]any{
		"period":     f.period,
		"oversold":   f.oversold,
		"check_days": f.checkDays,
	}
}

func (f *RSIRebound) minBars() int { return f.period + f.checkDays + 1 }

func (f *RSIRebound) reboundAt(rsi []float64, i int) bool {
	if i < 1 || math.IsNaN(rsi[i-1]) || math.IsNaN(rsi[i]) {
		return false
	}
	return rsi[i-1] < f.oversold && rsi[i] >= f.oversold
}

func (f *RSIRebound) Evaluate(bars []core.Bar) Result {
	if len(bars) < f.minBars() {
		return Result{Detail: fmt.Sprintf("need %d bars", f.minBars())}
	}

	rsi := indicator.RSI(closes(bars), f.period)
	n := len(rsi)

	current := rsi[n-1]
	val, hasVal := value(round1(current))

	for i := n - f.checkDays; i < n; i++ {
		if f.reboundAt(rsi, i) {
			daysAgo := n - 1 - i
			return Result{
				Passed:   true,
				Value:    val,
				HasValue: hasVal,
				Detail:   fmt.Sprintf("RSI crossed %.0f from below %d days ago", f.oversold, daysAgo),
			}
		}
	}
	return Result{
		Value:    val,
		HasValue: hasVal,
		Detail:   fmt.Sprintf("RSI %.1f, no oversold rebound", current),
	}
}

func (f *RSIRebound) Scan(bars []core.Bar) []bool {
	n := len(bars)
	mask := make([]bool, n)
	if n < f.minBars() {
		return mask
	}

	rsi := indicator.RSI(closes(bars), f.period)
	for i := f.minBars() - 1; i < n; i++ {
		for j := i - f.checkDays + 1; j <= i; j++ {
			if f.reboundAt(rsi, j) {
				mask[i] = true
				break
			}
		}
	}
	return mask
}

func round1(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Round(v*10) / 10
}
