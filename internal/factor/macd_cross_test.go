package factor

import (
	"testing"

	"github.com/minleaf/sieve/internal/core"
	"github.com/minleaf/sieve/internal/indicator"
)

// crossBars: a slide followed by a hard rally, guaranteeing one MACD
// golden cross somewhere in the rally.
func crossBars() []core.Bar {
	price := 100.0
	return testBars(60, func(i int, b *core.Bar) {
		if i < 40 {
			price -= 0.5
		} else {
			price += 2.0
		}
		b.Close = price
	})
}

// findCross locates the first golden-cross day the same way the factor
// defines it, so the assertions below track the series, not constants.
func findCross(t *testing.T, bars []core.Bar) int {
	t.Helper()
	cl := make([]float64, len(bars))
	for i, b := range bars {
		cl[i] = b.Close
	}
	macd, sig := indicator.MACD(cl, 12, 26, 9)
	for i := 1; i < len(cl); i++ {
		if macd[i-1]-sig[i-1] < 0 && macd[i]-sig[i] >= 0 {
			return i
		}
	}
	t.Fatal("constructed series produced no golden cross")
	return -1
}

func TestMACDCross_ScanAndEvaluate(t *testing.T) {
	f := NewMACDCross(2, 12, 26, 9)
	bars := crossBars()
	cross := findCross(t, bars)
	if cross < f.minBars()-1 {
		t.Skipf("cross at %d inside warmup; series too short", cross)
	}

	mask := f.Scan(bars)
	if !mask[cross] {
		t.Errorf("mask[%d] should fire on the cross day", cross)
	}
	if cross >= 1 && mask[cross-1] {
		t.Errorf("mask[%d] fired before the cross", cross-1)
	}

	res := f.Evaluate(bars[:cross+1])
	if !res.Passed {
		t.Fatalf("Evaluate at the cross day should pass, detail: %s", res.Detail)
	}
	if !res.HasValue || res.Value != 0 {
		t.Errorf("Value = %v, want 0 days ago", res.Value)
	}
}

func TestMACDCross_WindowExtendsPastCross(t *testing.T) {
	f := NewMACDCross(2, 12, 26, 9)
	bars := crossBars()
	cross := findCross(t, bars)

	// One day after the cross is still inside the 2-day window.
	if cross+1 < len(bars) {
		res := f.Evaluate(bars[:cross+2])
		if !res.Passed {
			t.Errorf("cross one day back should still pass, detail: %s", res.Detail)
		}
	}
}

func TestMACDCross_InsufficientData(t *testing.T) {
	f := NewMACDCross(2, 12, 26, 9)
	if res := f.Evaluate(testBars(20, nil)); res.Passed {
		t.Error("expected fail below minimum bars")
	}
	mask := f.Scan(testBars(20, nil))
	for i, m := range mask {
		if m {
			t.Fatalf("mask[%d] set on short series", i)
		}
	}
}
