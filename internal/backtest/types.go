package backtest

import "github.com/minleaf/sieve/internal/core"

// PendingSignal is an instrument whose entry signal fired but has not
// yet met an entry candle. The engine bumps DaysWaited once per
// simulated day until the signal converts or expires.
type PendingSignal struct {
	Code       string
	Name       string
	SignalDate string
	DaysWaited int
}

// Position is an open holding.
type Position struct {
	Code       string
	Name       string
	EntryDate  string
	EntryPrice float64
	Shares     int
}

// Trade is a closed round-trip. Immutable once appended to the ledger.
type Trade struct {
	Code       string
	Name       string
	EntryDate  string
	EntryPrice float64
	ExitDate   string
	ExitPrice  float64
	Shares     int
}

// PnL returns the trade's profit or loss in currency.
func (t Trade) PnL() float64 {
	return (t.ExitPrice - t.EntryPrice) * float64(t.Shares)
}

// ReturnPct returns the trade's percentage return.
func (t Trade) ReturnPct() float64 {
	if t.EntryPrice == 0 {
		return 0
	}
	return (t.ExitPrice - t.EntryPrice) / t.EntryPrice * 100
}

// HoldingDays returns calendar days between entry and exit.
func (t Trade) HoldingDays() int {
	return core.DaysBetween(t.EntryDate, t.ExitDate)
}

// NAVPoint is one day's closing net asset value.
type NAVPoint struct {
	Date string
	NAV  float64
}

// Result holds the complete backtest output.
type Result struct {
	CombinationID    string
	CombinationLabel string
	StartDate        string
	EndDate          string
	InitialCapital   float64
	FinalNAV         float64
	Trades           []Trade
	NAVHistory       []NAVPoint
	Metrics          map[string]float64
}
