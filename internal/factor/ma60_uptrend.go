package factor

import (
	"fmt"
	"math"

	"github.com/minleaf/sieve/internal/core"
	"github.com/minleaf/sieve/internal/indicator"
)

// MA60Uptrend requires the 60-day moving average to rise strictly over
// the recent window, filtering out stocks whose long average is flat or
// chopping sideways.
type MA60Uptrend struct {
	lookbackDays int     // window of MA60 values to inspect
	minChange    float64 // minimum MA60 change over the window, percent
}

// NewMA60Uptrend creates the uptrend factor. Zero values select the
// defaults (10-day window, 0.5% minimum change).
func NewMA60Uptrend(lookbackDays int, minChange float64) *MA60Uptrend {
	if lookbackDays == 0 {
		lookbackDays = 10
	}
	if minChange == 0 {
		minChange = 0.5
	}
	return &MA60Uptrend{lookbackDays: lookbackDays, minChange: minChange}
}

func (f *MA60Uptrend) ID() string    { return "ma60_recent_uptrend" }
func (f *MA60Uptrend) Label() string { return "MA60近期上升" }

func (f *MA60Uptrend) Params() map[string]any {
	return map[string]any{
		"lookback_days": f.lookbackDays,
		"min_change":    f.minChange,
	}
}

func (f *MA60Uptrend) Evaluate(bars []core.Bar) Result {
	minDays := 60 + f.lookbackDays
	if len(bars) < minDays {
		return Result{Detail: fmt.Sprintf("need %d bars", minDays)}
	}

	ma60 := indicator.RollingMean(closes(bars), 60, 60)

	// Last lookbackDays defined MA60 values.
	recent := make([]float64, 0, f.lookbackDays)
	for i := len(ma60) - 1; i >= 0 && len(recent) < f.lookbackDays; i-- {
		if !math.IsNaN(ma60[i]) {
			recent = append(recent, ma60[i])
		}
	}
	if len(recent) < f.lookbackDays {
		return Result{Detail: fmt.Sprintf("MA60 series shorter than %d", f.lookbackDays)}
	}
	// recent was collected backwards.
	for l, r := 0, len(recent)-1; l < r; l, r = l+1, r-1 {
		recent[l], recent[r] = recent[r], recent[l]
	}

	downDays, flatDays := 0, 0
	for i := 1; i < len(recent); i++ {
		switch {
		case recent[i] < recent[i-1]:
			downDays++
		case recent[i] == recent[i-1]:
			flatDays++
		}
	}

	changePct := (recent[len(recent)-1] - recent[0]) / recent[0] * 100
	strictlyUp := downDays == 0 && flatDays == 0
	meetsMin := changePct >= f.minChange

	if strictlyUp && meetsMin {
		return Result{
			Passed:   true,
			Value:    changePct,
			HasValue: true,
			Detail: fmt.Sprintf("strictly rising %d days, +%.2f%%, MA60 %.2f -> %.2f",
				f.lookbackDays, changePct, recent[0], recent[len(recent)-1]),
		}
	}

	var reasons []string
	if downDays > 0 {
		reasons = append(reasons, fmt.Sprintf("%d down days", downDays))
	}
	if flatDays > 0 {
		reasons = append(reasons, fmt.Sprintf("%d flat days", flatDays))
	}
	if !meetsMin {
		reasons = append(reasons, fmt.Sprintf("change %.2f%% < %.2f%%", changePct, f.minChange))
	}
	return Result{Detail: joinReasons(reasons)}
}

func (f *MA60Uptrend) Scan(bars []core.Bar) []bool {
	n := len(bars)
	mask := make([]bool, n)
	if n < 60+f.lookbackDays {
		return mask
	}

	ma60 := indicator.RollingMean(closes(bars), 60, 60)

	for i := range bars {
		lo := i - f.lookbackDays + 1
		if lo < 0 || math.IsNaN(ma60[lo]) {
			continue
		}
		rising := true
		for j := lo + 1; j <= i; j++ {
			if math.IsNaN(ma60[j]) || ma60[j] <= ma60[j-1] {
				rising = false
				break
			}
		}
		if !rising {
			continue
		}
		changePct := (ma60[i] - ma60[lo]) / ma60[lo] * 100
		if changePct >= f.minChange {
			mask[i] = true
		}
	}
	return mask
}
