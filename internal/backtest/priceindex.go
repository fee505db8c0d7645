package backtest

import (
	"sort"

	"github.com/minleaf/sieve/internal/core"
)

// DayPrice is one instrument's open and close for a single day.
type DayPrice struct {
	Open  float64
	Close float64
}

// PriceIndex answers per-instrument, per-date price lookups and owns
// the trading calendar built from the union of all instruments' bars.
// Days an instrument did not trade simply report absent; callers must
// not assume a bar exists.
type PriceIndex struct {
	prices map[string]map[string]DayPrice
	dates  []string
}

// NewPriceIndex builds the index once from per-instrument bar series.
func NewPriceIndex(data map[string][]core.Bar) *PriceIndex {
	idx := &PriceIndex{prices: make(map[string]map[string]DayPrice, len(data))}

	seen := make(map[string]struct{})
	for code, bars := range data {
		byDate := make(map[string]DayPrice, len(bars))
		for _, b := range bars {
			byDate[b.Date] = DayPrice{Open: b.Open, Close: b.Close}
			if _, ok := seen[b.Date]; !ok {
				seen[b.Date] = struct{}{}
				idx.dates = append(idx.dates, b.Date)
			}
		}
		idx.prices[code] = byDate
	}
	sort.Strings(idx.dates)
	return idx
}

// TradingDates returns the sorted union of all bar dates, clipped to
// [start, end] when the bounds are non-empty. ISO dates compare
// correctly as strings.
func (idx *PriceIndex) TradingDates(start, end string) []string {
	out := make([]string, 0, len(idx.dates))
	for _, d := range idx.dates {
		if start != "" && d < start {
			continue
		}
		if end != "" && d > end {
			continue
		}
		out = append(out, d)
	}
	return out
}

// At returns the instrument's prices for the date, or false when the
// instrument did not trade that day.
func (idx *PriceIndex) At(code, date string) (DayPrice, bool) {
	byDate, ok := idx.prices[code]
	if !ok {
		return DayPrice{}, false
	}
	p, ok := byDate[date]
	return p, ok
}
