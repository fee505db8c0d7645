package backtest

import (
	"sort"

	"github.com/minleaf/sieve/internal/core"
	"github.com/minleaf/sieve/internal/factor"
)

// WarmupDays is the bar count a factor scan needs behind a row before
// that row may emit a signal.
const WarmupDays = 61

// ProgressFunc receives per-instrument progress during signal
// detection: current index (1-based), total count, and a phase tag.
type ProgressFunc func(current, total int, phase string)

// Config parameterizes a single backtest run. Zero values select the
// production defaults; StopLossPct 0 disables the stop loss and
// MaxHoldDays 0 disables the holding cap.
type Config struct {
	CombinationID  string
	StartDate      string
	EndDate        string
	InitialCapital float64
	EntryWindow    int
	TakeProfitPct  float64
	StopLossPct    float64
	MaxHoldDays    int
}

func (c Config) withDefaults() Config {
	if c.InitialCapital == 0 {
		c.InitialCapital = 1_000_000
	}
	if c.EntryWindow == 0 {
		c.EntryWindow = 5
	}
	if c.TakeProfitPct == 0 {
		c.TakeProfitPct = 10.0
	}
	return c
}

// Engine runs the two-phase simulation: a vectorized signal scan per
// instrument, then a single-threaded day loop driving the pending
// queue, the portfolio, and the NAV history. A run performs no I/O,
// never fails mid-flight, and is deterministic for identical inputs.
type Engine struct {
	cfg         Config
	combination factor.Combination
	factors     []factor.Factor
	strategy    EntryExitStrategy
}

// New creates an engine for a combination registered in the factor
// registry.
func New(cfg Config) (*Engine, error) {
	combo, err := factor.GetCombination(cfg.CombinationID)
	if err != nil {
		return nil, err
	}
	factors, err := combo.Factors()
	if err != nil {
		return nil, err
	}
	return NewWithFactors(cfg, combo, factors), nil
}

// NewWithFactors creates an engine with an explicit factor set,
// bypassing the registry. The grid sweep uses this to try custom
// factor parameterizations.
func NewWithFactors(cfg Config, combo factor.Combination, factors []factor.Factor) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:         cfg,
		combination: combo,
		factors:     factors,
		strategy: EntryExitStrategy{
			EntryWindow:   cfg.EntryWindow,
			TakeProfitPct: cfg.TakeProfitPct,
			StopLossPct:   cfg.StopLossPct,
			MaxHoldDays:   cfg.MaxHoldDays,
		},
	}
}

type exitTicket struct {
	code  string
	price float64
}

type entryTicket struct {
	code  string
	name  string
	price float64
}

// Run simulates the strategy over per-instrument bar histories.
// stockData maps code to bars; stockNames supplies display names for
// reporting. progress, when non-nil, is invoked once per instrument
// while signals are detected.
func (e *Engine) Run(stockData map[string][]core.Bar, stockNames map[string]string, progress ProgressFunc) *Result {
	signals := e.detectSignals(stockData, stockNames, progress)

	idx := NewPriceIndex(stockData)
	dates := idx.TradingDates(e.cfg.StartDate, e.cfg.EndDate)

	portfolio := NewPortfolio(e.cfg.InitialCapital)
	pending := newPendingQueue()
	navHistory := make([]NAVPoint, 0, len(dates))

	for _, date := range dates {
		// (a) Exit evaluation. Collect every qualifying position
		// first, then sell, so one day's exits see a consistent
		// portfolio. A position with no bar today is held untouched.
		var exits []exitTicket
		for _, code := range portfolio.OpenCodes() {
			price, ok := idx.At(code, date)
			if !ok {
				continue
			}
			pos, _ := portfolio.Position(code)
			if e.strategy.ShouldExit(price.Close, pos.EntryPrice) {
				exits = append(exits, exitTicket{code, price.Close})
				continue
			}
			if e.cfg.MaxHoldDays > 0 && core.DaysBetween(pos.EntryDate, date) >= e.cfg.MaxHoldDays {
				exits = append(exits, exitTicket{code, price.Close})
			}
		}
		for _, ex := range exits {
			portfolio.Sell(ex.code, ex.price, date)
		}

		// (b) Pending advancement. Wait counters tick before the
		// candle check, and a bearish bar converts the signal even on
		// its final window day.
		var entries []entryTicket
		for _, sig := range pending.All() {
			sig.DaysWaited++
			if price, ok := idx.At(sig.Code, date); ok && e.strategy.IsBearishCandle(price.Open, price.Close) {
				entries = append(entries, entryTicket{sig.Code, sig.Name, price.Close})
				continue
			}
			if sig.DaysWaited > e.cfg.EntryWindow {
				pending.Remove(sig.Code)
			}
		}
		if len(entries) > 0 {
			// Equal-weight split of today's cash, fixed before any buy
			// executes. Lot rounding can leave residual cash behind.
			perStock := portfolio.Cash() / float64(len(entries))
			for _, en := range entries {
				pending.Remove(en.code)
				portfolio.Buy(en.code, en.name, en.price, date, perStock)
			}
		}

		// (c) New-signal admission. Instruments already held or
		// already waiting are not admitted twice.
		for _, s := range signals[date] {
			if !portfolio.HasPosition(s.Code) && !pending.Has(s.Code) {
				pending.Add(s.Code, s.Name, date)
			}
		}

		// (d) NAV snapshot at today's closes. Suspended instruments
		// keep their entry price as a stale mark.
		marks := make(map[string]float64)
		for _, code := range portfolio.OpenCodes() {
			if price, ok := idx.At(code, date); ok {
				marks[code] = price.Close
			}
		}
		navHistory = append(navHistory, NAVPoint{Date: date, NAV: portfolio.NAV(marks)})
	}

	// Force-liquidate what is still open at the horizon. Instruments
	// without a final-day bar stay open; that is an accepted edge
	// case, not an error.
	if len(dates) > 0 {
		last := dates[len(dates)-1]
		for _, code := range portfolio.OpenCodes() {
			if price, ok := idx.At(code, last); ok {
				portfolio.Sell(code, price.Close, last)
			}
		}
	}

	startDate, endDate := e.cfg.StartDate, e.cfg.EndDate
	if startDate == "" && len(dates) > 0 {
		startDate = dates[0]
	}
	if endDate == "" && len(dates) > 0 {
		endDate = dates[len(dates)-1]
	}
	finalNAV := e.cfg.InitialCapital
	if len(navHistory) > 0 {
		finalNAV = navHistory[len(navHistory)-1].NAV
	}

	trades := portfolio.ClosedTrades()
	return &Result{
		CombinationID:    e.combination.ID,
		CombinationLabel: e.combination.Label,
		StartDate:        startDate,
		EndDate:          endDate,
		InitialCapital:   e.cfg.InitialCapital,
		FinalNAV:         finalNAV,
		Trades:           trades,
		NAVHistory:       navHistory,
		Metrics:          CalcMetrics(trades, navHistory, e.cfg.InitialCapital),
	}
}

// detectSignals runs every factor's vectorized scan per instrument and
// collects passing rows into a date-keyed signal map. Instruments scan
// in code order so each date's signal list is deterministic.
func (e *Engine) detectSignals(stockData map[string][]core.Bar, stockNames map[string]string, progress ProgressFunc) map[string][]core.Stock {
	codes := make([]string, 0, len(stockData))
	for code := range stockData {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	signals := make(map[string][]core.Stock)
	for i, code := range codes {
		if progress != nil {
			progress(i+1, len(codes), "signal")
		}

		bars := sortedByDate(stockData[code])
		if len(bars) < WarmupDays {
			continue
		}

		mask := make([]bool, len(bars))
		for j := range mask {
			mask[j] = true
		}
		for _, f := range e.factors {
			fm := f.Scan(bars)
			for j := range mask {
				mask[j] = mask[j] && fm[j]
			}
		}

		// The first signal-eligible row needs a full warmup behind it.
		for j := 0; j < WarmupDays-1 && j < len(mask); j++ {
			mask[j] = false
		}

		name := stockNames[code]
		for j, ok := range mask {
			if !ok {
				continue
			}
			date := bars[j].Date
			if e.cfg.StartDate != "" && date < e.cfg.StartDate {
				continue
			}
			if e.cfg.EndDate != "" && date > e.cfg.EndDate {
				continue
			}
			signals[date] = append(signals[date], core.Stock{Code: code, Name: name})
		}
	}
	return signals
}

// sortedByDate returns the bars in date order, copying only when the
// input is out of order.
func sortedByDate(bars []core.Bar) []core.Bar {
	if sort.SliceIsSorted(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date }) {
		return bars
	}
	out := make([]core.Bar, len(bars))
	copy(out, bars)
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
