package backtest

import "testing"

func TestEntryExitStrategy_IsBearishCandle(t *testing.T) {
	s := EntryExitStrategy{}

	tests := []struct {
		open, close float64
		want        bool
	}{
		{10.0, 9.9, true},
		{10.0, 10.0, false}, // flat is not bearish
		{10.0, 10.1, false},
	}
	for _, tt := range tests {
		if got := s.IsBearishCandle(tt.open, tt.close); got != tt.want {
			t.Errorf("IsBearishCandle(%v, %v) = %v, want %v", tt.open, tt.close, got, tt.want)
		}
	}
}

func TestEntryExitStrategy_TakeProfitBoundary(t *testing.T) {
	s := EntryExitStrategy{TakeProfitPct: 10.0}

	if !s.ShouldExit(11.0, 10.0) {
		t.Error("ShouldExit(11.0, 10.0) = false, want true (boundary is inclusive)")
	}
	if s.ShouldExit(10.9, 10.0) {
		t.Error("ShouldExit(10.9, 10.0) = true, want false (9% is below the line)")
	}
}

func TestEntryExitStrategy_StopLoss(t *testing.T) {
	s := EntryExitStrategy{TakeProfitPct: 10.0, StopLossPct: 5.0}

	if !s.ShouldExit(9.5, 10.0) {
		t.Error("ShouldExit(9.5, 10.0) = false, want true at -5%")
	}
	if s.ShouldExit(9.51, 10.0) {
		t.Error("ShouldExit(9.51, 10.0) = true, want false above the stop")
	}

	// Stop loss disabled: an arbitrarily deep loss holds.
	s = EntryExitStrategy{TakeProfitPct: 10.0}
	if s.ShouldExit(1.0, 10.0) {
		t.Error("ShouldExit(1.0, 10.0) = true with stop loss disabled, want false")
	}
}

func TestEntryExitStrategy_DegenerateEntryPrice(t *testing.T) {
	s := EntryExitStrategy{TakeProfitPct: 10.0, StopLossPct: 5.0}

	if s.ShouldExit(100.0, 0) {
		t.Error("ShouldExit with zero entry = true, want false")
	}
	if s.ShouldExit(100.0, -10.0) {
		t.Error("ShouldExit with negative entry = true, want false")
	}
}
