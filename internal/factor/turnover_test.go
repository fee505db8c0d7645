package factor

import (
	"math"
	"strings"
	"testing"

	"github.com/minleaf/sieve/internal/core"
)

func turnoverBars(turns ...float64) []core.Bar {
	return testBars(len(turns), func(i int, b *core.Bar) {
		b.Turnover = turns[i]
	})
}

func TestTurnoverBand_Evaluate(t *testing.T) {
	f := NewTurnoverBand(5, 1.0, 10.0)

	tests := []struct {
		name      string
		bars      []core.Bar
		wantPass  bool
		wantValue float64
	}{
		{"in band", turnoverBars(8, 8, 8, 8, 8), true, 8.0},
		{"too quiet", turnoverBars(0.5, 0.5, 0.5, 0.5, 0.5), false, 0.5},
		{"overheated", turnoverBars(15, 15, 15, 15, 15), false, 15.0},
		{"band edge", turnoverBars(10, 10, 10, 10, 10), true, 10.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.Evaluate(tt.bars)
			if res.Passed != tt.wantPass {
				t.Errorf("Passed = %v, want %v (%s)", res.Passed, tt.wantPass, res.Detail)
			}
			if !res.HasValue || res.Value != tt.wantValue {
				t.Errorf("Value = %v (has %v), want %v", res.Value, res.HasValue, tt.wantValue)
			}
		})
	}
}

func TestTurnoverBand_SkipsMissingDays(t *testing.T) {
	f := NewTurnoverBand(5, 1.0, 10.0)
	nan := math.NaN()

	// Average over the three defined days only: (6+8+10)/3 = 8.
	res := f.Evaluate(turnoverBars(6, nan, 8, nan, 10))
	if !res.Passed {
		t.Fatalf("Evaluate().Passed = false, want true (%s)", res.Detail)
	}
	if res.Value != 8.0 {
		t.Errorf("Evaluate().Value = %v, want 8.0", res.Value)
	}
}

func TestTurnoverBand_NoData(t *testing.T) {
	f := NewTurnoverBand(5, 1.0, 10.0)
	nan := math.NaN()

	res := f.Evaluate(turnoverBars(nan, nan, nan, nan, nan))
	if res.Passed || res.HasValue {
		t.Errorf("Evaluate() = %+v, want no pass and no value", res)
	}
	if !strings.Contains(res.Detail, "no turnover data") {
		t.Errorf("Detail = %q, want no turnover data", res.Detail)
	}
}

func TestTurnoverBand_Scan(t *testing.T) {
	f := NewTurnoverBand(3, 1.0, 10.0)
	mask := f.Scan(turnoverBars(8, 8, 8, 20, 20))

	// First two positions lack a full window start; the spike lifts the
	// trailing average out of the band from index 3 on.
	want := []bool{false, false, true, false, false}
	for i := range want {
		if mask[i] != want[i] {
			t.Errorf("Scan()[%d] = %v, want %v", i, mask[i], want[i])
		}
	}
}
