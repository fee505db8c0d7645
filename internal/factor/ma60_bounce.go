package factor

import (
	"fmt"
	"math"

	"github.com/minleaf/sieve/internal/core"
	"github.com/minleaf/sieve/internal/indicator"
)

// MA60Bounce fires when a stock dips below its 60-day moving average
// and reclaims it the next day on a strong gain with expanded volume.
// The stock must have traded above the MA60 within the lookback window,
// so only fresh breakdowns qualify.
type MA60Bounce struct {
	minGain      float64 // minimum day gain, percent
	volumeRatio  float64 // today's volume vs yesterday's
	lookbackDays int     // window that must contain a close above MA60
}

// NewMA60Bounce creates the bounce factor. Zero values select the
// defaults (5% gain, 2x volume, 5-day lookback).
func NewMA60Bounce(minGain, volumeRatio float64, lookbackDays int) *MA60Bounce {
	if minGain == 0 {
		minGain = 5.0
	}
	if volumeRatio == 0 {
		volumeRatio = 2.0
	}
	if lookbackDays == 0 {
		lookbackDays = 5
	}
	return &MA60Bounce{minGain: minGain, volumeRatio: volumeRatio, lookbackDays: lookbackDays}
}

func (f *MA60Bounce) ID() string    { return "ma60_bounce_volume" }
func (f *MA60Bounce) Label() string { return "MA60支撑反弹" }

func (f *MA60Bounce) Params() map[string]any {
	return map[string]any{
		"min_gain":      f.minGain,
		"volume_ratio":  f.volumeRatio,
		"lookback_days": f.lookbackDays,
	}
}

func (f *MA60Bounce) minBars() int { return 60 + f.lookbackDays + 1 }

func (f *MA60Bounce) Evaluate(bars []core.Bar) Result {
	if len(bars) < f.minBars() {
		return Result{Detail: fmt.Sprintf("need %d bars", f.minBars())}
	}

	cl := closes(bars)
	ma60 := indicator.RollingMean(cl, 60, 60)
	n := len(bars)
	today, yesterday := bars[n-1], bars[n-2]

	if math.IsNaN(ma60[n-1]) || math.IsNaN(ma60[n-2]) {
		return Result{Detail: "MA60 unavailable"}
	}
	if math.IsNaN(today.PctChg) {
		return Result{Detail: "pct_chg unavailable"}
	}

	// Any close above MA60 in the lookback window before yesterday.
	wasAbove := false
	for j := n - 2 - f.lookbackDays; j <= n-3; j++ {
		if j >= 0 && !math.IsNaN(ma60[j]) && cl[j] > ma60[j] {
			wasAbove = true
			break
		}
	}

	brokeDown := yesterday.Close < ma60[n-2]
	reclaimed := today.Close > ma60[n-1]
	strongGain := today.PctChg > f.minGain

	volumeIncrease := 0.0
	if yesterday.Volume > 0 {
		volumeIncrease = today.Volume / yesterday.Volume
	}
	volumeExpanded := volumeIncrease >= f.volumeRatio

	if wasAbove && brokeDown && reclaimed && strongGain && volumeExpanded {
		return Result{
			Passed:   true,
			Value:    today.PctChg,
			HasValue: true,
			Detail: fmt.Sprintf("+%.2f%% on %.2fx volume, close %.2f vs MA60 %.2f",
				today.PctChg, volumeIncrease, today.Close, ma60[n-1]),
		}
	}

	var reasons []string
	if !wasAbove {
		reasons = append(reasons, fmt.Sprintf("below MA60 throughout last %d days", f.lookbackDays))
	}
	if !brokeDown {
		reasons = append(reasons, fmt.Sprintf("no breakdown yesterday (%.2f >= %.2f)", yesterday.Close, ma60[n-2]))
	}
	if !reclaimed {
		reasons = append(reasons, fmt.Sprintf("not above MA60 today (%.2f <= %.2f)", today.Close, ma60[n-1]))
	}
	if !strongGain {
		reasons = append(reasons, fmt.Sprintf("gain %.2f%% < %.2f%%", today.PctChg, f.minGain))
	}
	if !volumeExpanded {
		reasons = append(reasons, fmt.Sprintf("volume %.2fx < %.2fx", volumeIncrease, f.volumeRatio))
	}
	return Result{Detail: joinReasons(reasons)}
}

func (f *MA60Bounce) Scan(bars []core.Bar) []bool {
	n := len(bars)
	mask := make([]bool, n)
	if n < f.minBars() {
		return mask
	}

	cl := closes(bars)
	ma60 := indicator.RollingMean(cl, 60, 60)

	above := make([]bool, n)
	for i := range bars {
		above[i] = !math.IsNaN(ma60[i]) && cl[i] > ma60[i]
	}

	for i := 2; i < n; i++ {
		// Close above MA60 somewhere in the lookback window ending two
		// days back.
		wasAbove := false
		lo := i - 2 - f.lookbackDays + 1
		if lo < 0 {
			lo = 0
		}
		for j := lo; j <= i-2; j++ {
			if above[j] {
				wasAbove = true
				break
			}
		}
		if !wasAbove {
			continue
		}
		if math.IsNaN(ma60[i-1]) || cl[i-1] >= ma60[i-1] {
			continue
		}
		if !above[i] {
			continue
		}
		if !(bars[i].PctChg > f.minGain) { // NaN compares false
			continue
		}
		prevVol := bars[i-1].Volume
		if !(prevVol > 0) || bars[i].Volume/prevVol < f.volumeRatio {
			continue
		}
		mask[i] = true
	}
	return mask
}
