package factor

import (
	"fmt"
	"math"

	"github.com/minleaf/sieve/internal/core"
)

// NDayReturn requires the cumulative close-to-close return over the
// window to stay inside a band, rejecting stocks that already ran too
// far or are still falling hard.
type NDayReturn struct {
	days      int
	minReturn float64
	maxReturn float64
}

// NewNDayReturn creates the return-band factor. Zero values select the
// defaults (20 days, -5% to +15%).
func NewNDayReturn(days int, minReturn, maxReturn float64) *NDayReturn {
	if days == 0 {
		days = 20
	}
	if minReturn == 0 {
		minReturn = -5.0
	}
	if maxReturn == 0 {
		maxReturn = 15.0
	}
	return &NDayReturn{days: days, minReturn: minReturn, maxReturn: maxReturn}
}

func (f *NDayReturn) ID() string    { return "n_day_return" }
func (f *NDayReturn) Label() string { return "N日涨幅区间" }

func (f *NDayReturn) Params() map[string]any {
	return map[string]any{
		"days":       f.days,
		"min_return": f.minReturn,
		"max_return": f.maxReturn,
	}
}

// windowReturn computes the close-to-close percent change over the
// days-wide window ending at index i. NaN when undefined.
func (f *NDayReturn) windowReturn(cl []float64, i int) float64 {
	start := i - f.days + 1
	if start < 0 {
		return math.NaN()
	}
	if cl[start] <= 0 {
		return math.NaN()
	}
	return (cl[i] - cl[start]) / cl[start] * 100
}

func (f *NDayReturn) Evaluate(bars []core.Bar) Result {
	if len(bars) < f.days {
		return Result{Detail: fmt.Sprintf("need %d bars", f.days)}
	}

	cl := closes(bars)
	ret := f.windowReturn(cl, len(cl)-1)
	if math.IsNaN(ret) {
		return Result{Detail: "invalid starting price"}
	}

	val := round2(ret)
	switch {
	case ret >= f.minReturn && ret <= f.maxReturn:
		return Result{
			Passed:   true,
			Value:    val,
			HasValue: true,
			Detail:   fmt.Sprintf("%d-day return %.2f%% within %.0f%%~%.0f%%", f.days, ret, f.minReturn, f.maxReturn),
		}
	case ret < f.minReturn:
		return Result{
			Value:    val,
			HasValue: true,
			Detail:   fmt.Sprintf("%d-day return %.2f%% < %.0f%%", f.days, ret, f.minReturn),
		}
	default:
		return Result{
			Value:    val,
			HasValue: true,
			Detail:   fmt.Sprintf("%d-day return %.2f%% > %.0f%%", f.days, ret, f.maxReturn),
		}
	}
}

func (f *NDayReturn) Scan(bars []core.Bar) []bool {
	cl := closes(bars)
	mask := make([]bool, len(bars))
	for i := range bars {
		ret := f.windowReturn(cl, i)
		mask[i] = !math.IsNaN(ret) && ret >= f.minReturn && ret <= f.maxReturn
	}
	return mask
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*100) / 100
}
