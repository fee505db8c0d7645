package backtest

import "sort"

// LotSize is the minimum tradable share unit. Buys round down to a
// whole number of lots.
const LotSize = 100

// Portfolio owns the cash balance, open positions, and the ledger of
// closed trades. Every anomalous call (duplicate buy, unaffordable buy,
// sell with no position) is a silent no-op so a simulation never aborts
// over sparse data.
type Portfolio struct {
	initialCapital float64
	cash           float64
	positions      map[string]*Position
	closedTrades   []Trade
}

// NewPortfolio creates a portfolio holding only cash.
func NewPortfolio(initialCapital float64) *Portfolio {
	return &Portfolio{
		initialCapital: initialCapital,
		cash:           initialCapital,
		positions:      make(map[string]*Position),
	}
}

// Buy opens a position sized to the given cash allocation, rounded down
// to whole lots. No-op when a position already exists, the rounded size
// is zero, or the cost exceeds available cash.
func (p *Portfolio) Buy(code, name string, price float64, date string, amount float64) {
	if p.HasPosition(code) || price <= 0 {
		return
	}

	shares := int(amount/price/LotSize) * LotSize
	if shares <= 0 {
		return
	}

	cost := float64(shares) * price
	if cost > p.cash {
		return
	}

	p.cash -= cost
	p.positions[code] = &Position{
		Code:       code,
		Name:       name,
		EntryDate:  date,
		EntryPrice: price,
		Shares:     shares,
	}
}

// Sell closes the position at the given price and appends the round
// trip to the ledger. No-op when no position is open.
func (p *Portfolio) Sell(code string, price float64, date string) {
	pos, ok := p.positions[code]
	if !ok {
		return
	}
	delete(p.positions, code)

	p.cash += float64(pos.Shares) * price
	p.closedTrades = append(p.closedTrades, Trade{
		Code:       pos.Code,
		Name:       pos.Name,
		EntryDate:  pos.EntryDate,
		EntryPrice: pos.EntryPrice,
		ExitDate:   date,
		ExitPrice:  price,
		Shares:     pos.Shares,
	})
}

// NAV returns cash plus the mark-to-market value of open positions.
// Positions without a mark are valued at their entry price.
func (p *Portfolio) NAV(marks map[string]float64) float64 {
	nav := p.cash
	for code, pos := range p.positions {
		mark, ok := marks[code]
		if !ok {
			mark = pos.EntryPrice
		}
		nav += float64(pos.Shares) * mark
	}
	return nav
}

// HasPosition reports whether the instrument is currently held.
func (p *Portfolio) HasPosition(code string) bool {
	_, ok := p.positions[code]
	return ok
}

// Cash returns the uninvested balance.
func (p *Portfolio) Cash() float64 { return p.cash }

// Position returns the open position for the instrument, if any.
func (p *Portfolio) Position(code string) (*Position, bool) {
	pos, ok := p.positions[code]
	return pos, ok
}

// OpenCodes returns the codes of all open positions, sorted ascending
// so callers iterate deterministically.
func (p *Portfolio) OpenCodes() []string {
	codes := make([]string, 0, len(p.positions))
	for code := range p.positions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ClosedTrades returns the ledger in close order.
func (p *Portfolio) ClosedTrades() []Trade { return p.closedTrades }
