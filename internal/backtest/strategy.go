package backtest

// EntryExitStrategy holds the stateless entry and exit rules. A zero
// StopLossPct disables the stop loss; a zero MaxHoldDays disables the
// holding-period cap (the cap itself is enforced by the engine, which
// owns the calendar).
type EntryExitStrategy struct {
	EntryWindow   int
	TakeProfitPct float64
	StopLossPct   float64
	MaxHoldDays   int
}

// IsBearishCandle reports whether the day closed below its open. A
// bearish candle is the entry trigger for pending signals.
func (s EntryExitStrategy) IsBearishCandle(open, close float64) bool {
	return close < open
}

// ShouldExit reports whether the position's return has crossed the
// take-profit line (inclusive) or the stop-loss line. A nonpositive
// entry price never exits.
func (s EntryExitStrategy) ShouldExit(close, entryPrice float64) bool {
	if entryPrice <= 0 {
		return false
	}
	returnPct := (close - entryPrice) / entryPrice * 100
	if returnPct >= s.TakeProfitPct {
		return true
	}
	if s.StopLossPct > 0 && returnPct <= -s.StopLossPct {
		return true
	}
	return false
}
