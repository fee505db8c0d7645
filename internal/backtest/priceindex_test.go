package backtest

import (
	"testing"

	"github.com/minleaf/sieve/internal/core"
)

func indexFixture() *PriceIndex {
	return NewPriceIndex(map[string][]core.Bar{
		"600001": {
			{Code: "600001", Date: "2024-01-02", Open: 10.0, Close: 10.5},
			{Code: "600001", Date: "2024-01-03", Open: 10.5, Close: 10.2},
		},
		"000001": {
			{Code: "000001", Date: "2024-01-03", Open: 5.0, Close: 5.1},
			{Code: "000001", Date: "2024-01-04", Open: 5.1, Close: 5.0},
		},
	})
}

func TestPriceIndex_TradingDates(t *testing.T) {
	idx := indexFixture()

	got := idx.TradingDates("", "")
	want := []string{"2024-01-02", "2024-01-03", "2024-01-04"}
	if len(got) != len(want) {
		t.Fatalf("TradingDates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TradingDates[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestPriceIndex_TradingDatesClipped(t *testing.T) {
	idx := indexFixture()

	got := idx.TradingDates("2024-01-03", "2024-01-03")
	if len(got) != 1 || got[0] != "2024-01-03" {
		t.Errorf("TradingDates clipped = %v, want [2024-01-03]", got)
	}

	if got := idx.TradingDates("2024-02-01", ""); len(got) != 0 {
		t.Errorf("TradingDates past range = %v, want empty", got)
	}
}

func TestPriceIndex_At(t *testing.T) {
	idx := indexFixture()

	p, ok := idx.At("600001", "2024-01-02")
	if !ok {
		t.Fatal("At(600001, 2024-01-02) absent, want present")
	}
	if p.Open != 10.0 || p.Close != 10.5 {
		t.Errorf("At = %+v, want open 10.0 close 10.5", p)
	}

	// Suspended day for this instrument.
	if _, ok := idx.At("600001", "2024-01-04"); ok {
		t.Error("At(600001, 2024-01-04) present, want absent")
	}
	if _, ok := idx.At("999999", "2024-01-02"); ok {
		t.Error("At(unknown code) present, want absent")
	}
}
