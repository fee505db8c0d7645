package factor

import (
	"fmt"
	"math"

	"github.com/minleaf/sieve/internal/core"
)

// TurnoverBand requires the average turnover over the check window to
// sit inside a band: enough churn to be tradable, not so much that the
// stock is overheated.
type TurnoverBand struct {
	checkDays int
	minRate   float64
	maxRate   float64
}

// NewTurnoverBand creates the turnover factor. Zero values select the
// defaults (5 days, 1% to 10%).
func NewTurnoverBand(checkDays int, minRate, maxRate float64) *TurnoverBand {
	if checkDays == 0 {
		checkDays = 5
	}
	if minRate == 0 {
		minRate = 1.0
	}
	if maxRate == 0 {
		maxRate = 10.0
	}
	return &TurnoverBand{checkDays: checkDays, minRate: minRate, maxRate: maxRate}
}

func (f *TurnoverBand) ID() string    { return "turnover" }
func (f *TurnoverBand) Label() string { return "换手率适中" }

func (f *TurnoverBand) Params() map[string]any {
	return map[string]any{
		"check_days": f.checkDays,
		"min_rate":   f.minRate,
		"max_rate":   f.maxRate,
	}
}

// meanTurnover averages the defined turnover values in the window
// ending at index i. NaN when the window is out of range or empty.
func (f *TurnoverBand) meanTurnover(turns []float64, i int) float64 {
	start := i - f.checkDays + 1
	if start < 0 {
		return math.NaN()
	}
	var sum float64
	count := 0
	for j := start; j <= i; j++ {
		if !math.IsNaN(turns[j]) {
			sum += turns[j]
			count++
		}
	}
	if count == 0 {
		return math.NaN()
	}
	return sum / float64(count)
}

func (f *TurnoverBand) Evaluate(bars []core.Bar) Result {
	if len(bars) < f.checkDays {
		return Result{Detail: fmt.Sprintf("need %d bars", f.checkDays)}
	}

	avg := f.meanTurnover(turnovers(bars), len(bars)-1)
	if math.IsNaN(avg) {
		return Result{Detail: "no turnover data"}
	}

	val := round2(avg)
	switch {
	case avg >= f.minRate && avg <= f.maxRate:
		return Result{
			Passed:   true,
			Value:    val,
			HasValue: true,
			Detail:   fmt.Sprintf("avg turnover %.2f%% within %.0f%%~%.0f%%", avg, f.minRate, f.maxRate),
		}
	case avg < f.minRate:
		return Result{
			Value:    val,
			HasValue: true,
			Detail:   fmt.Sprintf("turnover too low: %.2f%% < %.0f%%", avg, f.minRate),
		}
	default:
		return Result{
			Value:    val,
			HasValue: true,
			Detail:   fmt.Sprintf("turnover too high: %.2f%% > %.0f%%", avg, f.maxRate),
		}
	}
}

func (f *TurnoverBand) Scan(bars []core.Bar) []bool {
	turns := turnovers(bars)
	mask := make([]bool, len(bars))
	for i := range bars {
		avg := f.meanTurnover(turns, i)
		mask[i] = !math.IsNaN(avg) && avg >= f.minRate && avg <= f.maxRate
	}
	return mask
}
