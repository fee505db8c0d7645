package factor

import (
	"fmt"
	"math"

	"github.com/minleaf/sieve/internal/core"
	"github.com/minleaf/sieve/internal/indicator"
)

// QualityFilter screens out weak bounce candidates. The thresholds came
// out of a parameter grid search: a breakdown must be young, today's
// volume has to beat the trailing 5-day average, and turnover has to sit
// inside a healthy band.
type QualityFilter struct {
	maxDaysBelow  int     // consecutive closes below MA60 through yesterday
	maxVolatility float64 // 20-day pct_chg standard deviation cap
	minVolRatio5d float64 // today's volume vs trailing 5-day mean
	minTurn       float64 // turnover band, percent
	maxTurn       float64
}

// QualityParams configures NewQualityFilter; zero fields select the
// grid-search defaults.
type QualityParams struct {
	MaxDaysBelow  int
	MaxVolatility float64
	MinVolRatio5d float64
	MinTurn       float64
	MaxTurn       float64
}

// NewQualityFilter creates the quality filter factor.
func NewQualityFilter(p QualityParams) *QualityFilter {
	f := &QualityFilter{
		maxDaysBelow:  p.MaxDaysBelow,
		maxVolatility: p.MaxVolatility,
		minVolRatio5d: p.MinVolRatio5d,
		minTurn:       p.MinTurn,
		maxTurn:       p.MaxTurn,
	}
	if f.maxDaysBelow == 0 {
		f.maxDaysBelow = 5
	}
	if f.maxVolatility == 0 {
		f.maxVolatility = 999.0
	}
	if f.minVolRatio5d == 0 {
		f.minVolRatio5d = 1.5
	}
	if f.minTurn == 0 {
		f.minTurn = 5.0
	}
	if f.maxTurn == 0 {
		f.maxTurn = 12.0
	}
	return f
}

func (f *QualityFilter) ID() string    { return "signal_quality_filter" }
func (f *QualityFilter) Label() string { return "信号质量过滤" }

func (f *QualityFilter) Params() map[string]any {
	return map[string]any{
		"max_days_below":   f.maxDaysBelow,
		"max_volatility":   f.maxVolatility,
		"min_vol_ratio_5d": f.minVolRatio5d,
		"min_turn":         f.minTurn,
		"max_turn":         f.maxTurn,
	}
}

func (f *QualityFilter) Evaluate(bars []core.Bar) Result {
	n := len(bars)
	if n < 61 {
		return Result{Detail: "need 61 bars"}
	}

	cl := closes(bars)
	ma60 := indicator.RollingMean(cl, 60, 60)
	if math.IsNaN(ma60[n-1]) {
		return Result{Detail: "MA60 unavailable"}
	}

	// Consecutive closes below MA60 through yesterday, looking back at
	// most 20 days.
	daysBelow := 0
	for i := n - 2; i >= n-21 && i >= 0; i-- {
		if math.IsNaN(ma60[i]) {
			break
		}
		if cl[i] < ma60[i] {
			daysBelow++
		} else {
			break
		}
	}
	youngBreakdown := daysBelow <= f.maxDaysBelow

	volatility := 0.0
	if n >= 20 {
		pct := pctChgs(bars)[n-20:]
		var sum float64
		count := 0
		for _, v := range pct {
			if !math.IsNaN(v) {
				sum += v
				count++
			}
		}
		if count >= 10 {
			mean := sum / float64(count)
			var ss float64
			for _, v := range pct {
				if !math.IsNaN(v) {
					d := v - mean
					ss += d * d
				}
			}
			volatility = math.Sqrt(ss / float64(count-1))
		}
	}
	calm := volatility <= f.maxVolatility

	volToday := bars[n-1].Volume
	var vol5Sum float64
	vol5Count := 0
	for _, v := range volumes(bars)[n-6 : n-1] {
		if !math.IsNaN(v) {
			vol5Sum += v
			vol5Count++
		}
	}
	volRatio := 0.0
	if vol5Count > 0 && vol5Sum > 0 {
		volRatio = volToday / (vol5Sum / float64(vol5Count))
	}
	volumeActive := volRatio >= f.minVolRatio5d

	turn := bars[n-1].Turnover
	turnInBand := !math.IsNaN(turn) && turn >= f.minTurn && turn <= f.maxTurn

	if youngBreakdown && calm && volumeActive && turnInBand {
		return Result{
			Passed:   true,
			Value:    volRatio,
			HasValue: true,
			Detail: fmt.Sprintf("below %d days, volatility %.1f, volume %.1fx 5d, turnover %.1f%%",
				daysBelow, volatility, volRatio, turn),
		}
	}

	var reasons []string
	if !youngBreakdown {
		reasons = append(reasons, fmt.Sprintf("below MA60 %d days > %d", daysBelow, f.maxDaysBelow))
	}
	if !calm {
		reasons = append(reasons, fmt.Sprintf("volatility %.1f > %.1f", volatility, f.maxVolatility))
	}
	if !volumeActive {
		reasons = append(reasons, fmt.Sprintf("volume %.1fx < %.1fx 5d", volRatio, f.minVolRatio5d))
	}
	if !turnInBand {
		reasons = append(reasons, fmt.Sprintf("turnover %.1f%% outside %.1f~%.1f%%", turn, f.minTurn, f.maxTurn))
	}
	return Result{Detail: joinReasons(reasons)}
}

func (f *QualityFilter) Scan(bars []core.Bar) []bool {
	n := len(bars)
	mask := make([]bool, n)
	if n < 61 {
		return mask
	}

	cl := closes(bars)
	vols := volumes(bars)
	ma60 := indicator.RollingMean(cl, 60, 60)
	volatility := indicator.RollingStd(pctChgs(bars), 20, 10)

	// Consecutive below-MA60 streak ending at each row.
	streak := make([]int, n)
	for i := range bars {
		if !math.IsNaN(ma60[i]) && cl[i] < ma60[i] {
			if i > 0 {
				streak[i] = streak[i-1] + 1
			} else {
				streak[i] = 1
			}
		}
	}

	for i := range bars {
		daysBelow := 0
		if i > 0 {
			daysBelow = streak[i-1]
		}
		if daysBelow > f.maxDaysBelow {
			continue
		}

		vol := volatility[i]
		if math.IsNaN(vol) {
			vol = 0
		}
		if vol > f.maxVolatility {
			continue
		}

		if i < 5 {
			continue
		}
		var vol5Sum float64
		ok := true
		for j := i - 5; j < i; j++ {
			if math.IsNaN(vols[j]) {
				ok = false
				break
			}
			vol5Sum += vols[j]
		}
		vol5 := vol5Sum / 5
		if !ok || vol5 <= 0 || vols[i]/vol5 < f.minVolRatio5d {
			continue
		}

		turn := bars[i].Turnover
		if math.IsNaN(turn) || turn < f.minTurn || turn > f.maxTurn {
			continue
		}
		mask[i] = true
	}
	return mask
}
