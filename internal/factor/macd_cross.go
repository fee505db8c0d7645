package factor

import (
	"fmt"

	"github.com/minleaf/sieve/internal/core"
	"github.com/minleaf/sieve/internal/indicator"
)

// MACDCross fires when the MACD line crosses above its signal line
// within the recent check window.
type MACDCross struct {
	checkDays  int
	fastSpan   int
	slowSpan   int
	signalSpan int
}

// NewMACDCross creates the golden-cross factor. Zero values select the
// defaults (2-day window, 12/26/9 spans).
func NewMACDCross(checkDays, fastSpan, slowSpan, signalSpan int) *MACDCross {
	if checkDays == 0 {
		checkDays = 2
	}
	if fastSpan == 0 {
		fastSpan = 12
	}
	if slowSpan == 0 {
		slowSpan = 26
	}
	if signalSpan == 0 {
		signalSpan = 9
	}
	return &MACDCross{checkDays: checkDays, fastSpan: fastSpan, slowSpan: slowSpan, signalSpan: signalSpan}
}

func (f *MACDCross) ID() string    { return "macd_golden_cross" }
func (f *MACDCross) Label() string { return "MACD金叉" }

func (f *MACDCross) Params() map[string]any {
	return map[string]any{
		"check_days":    f.checkDays,
		"fast_period":   f.fastSpan,
		"slow_period":   f.slowSpan,
		"signal_period": f.signalSpan,
	}
}

func (f *MACDCross) minBars() int { return f.slowSpan + f.signalSpan + f.checkDays }

// diff returns the MACD histogram (MACD line minus signal line).
func (f *MACDCross) diff(bars []core.Bar) []float64 {
	macd, signal := indicator.MACD(closes(bars), f.fastSpan, f.slowSpan, f.signalSpan)
	out := make([]float64, len(macd))
	for i := range macd {
		out[i] = macd[i] - signal[i]
	}
	return out
}

func crossesUp(diff []float64, i int) bool {
	if i < 1 {
		return false
	}
	return diff[i-1] < 0 && diff[i] >= 0
}

func (f *MACDCross) Evaluate(bars []core.Bar) Result {
	if len(bars) < f.minBars() {
		return Result{Detail: fmt.Sprintf("need %d bars", f.minBars())}
	}

	diff := f.diff(bars)
	n := len(diff)

	// Earliest cross within the last checkDays days.
	for i := n - f.checkDays; i < n; i++ {
		if crossesUp(diff, i) {
			daysAgo := n - 1 - i
			return Result{
				Passed:   true,
				Value:    float64(daysAgo),
				HasValue: true,
				Detail:   fmt.Sprintf("golden cross %d days ago", daysAgo),
			}
		}
	}
	return Result{Detail: fmt.Sprintf("no golden cross in last %d days", f.checkDays)}
}

func (f *MACDCross) Scan(bars []core.Bar) []bool {
	n := len(bars)
	mask := make([]bool, n)
	if n < f.minBars() {
		return mask
	}

	diff := f.diff(bars)
	for i := f.minBars() - 1; i < n; i++ {
		for j := i - f.checkDays + 1; j <= i; j++ {
			if crossesUp(diff, j) {
				mask[i] = true
				break
			}
		}
	}
	return mask
}
