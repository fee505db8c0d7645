// Package screen evaluates every registered factor against the latest
// bar of each stock and reports which stocks pass which combinations.
package screen

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/minleaf/sieve/internal/core"
	"github.com/minleaf/sieve/internal/factor"
)

// Result is one stock passing one combination.
type Result struct {
	Code          string
	Name          string
	Combination   string
	RunDate       string
	LatestPrice   float64
	FactorValues  map[string]float64
	FactorDetails map[string]string
}

// Report summarizes one screening run.
type Report struct {
	RunID             string
	RunDate           string
	TotalStocks       int
	Results           []Result
	Duration          time.Duration
	CombinationCounts map[string]int
	Combinations      []factor.Combination
}

// ProgressFunc reports screening progress. current is 1-based.
type ProgressFunc func(current, total int, code string)

// Screener runs every factor once per stock and evaluates combinations
// over the shared results.
type Screener struct {
	factors      []factor.Factor
	combinations []factor.Combination
}

// New creates a Screener. Nil factors or combinations fall back to the
// full registry.
func New(factors []factor.Factor, combinations []factor.Combination) *Screener {
	if factors == nil {
		factors = factor.All()
	}
	if combinations == nil {
		combinations = factor.Combinations()
	}
	return &Screener{factors: factors, combinations: combinations}
}

// ScreenStock evaluates one stock and returns a result per passing
// combination. bars must be in ascending date order.
func (s *Screener) ScreenStock(bars []core.Bar, code, runDate, name string) []Result {
	factorResults := make(map[string]factor.Result, len(s.factors))
	for _, f := range s.factors {
		factorResults[f.ID()] = f.Evaluate(bars)
	}

	var latestPrice float64
	if len(bars) > 0 {
		latestPrice = bars[len(bars)-1].Close
	}

	var results []Result
	for _, combo := range s.combinations {
		if !passes(combo, factorResults) {
			continue
		}

		values := make(map[string]float64, len(combo.FactorIDs))
		details := make(map[string]string, len(combo.FactorIDs))
		for _, fid := range combo.FactorIDs {
			fr, ok := factorResults[fid]
			if !ok {
				continue
			}
			if fr.HasValue {
				values[fid] = fr.Value
			}
			details[fid] = fr.Detail
		}

		results = append(results, Result{
			Code:          code,
			Name:          name,
			Combination:   combo.ID,
			RunDate:       runDate,
			LatestPrice:   latestPrice,
			FactorValues:  values,
			FactorDetails: details,
		})
	}
	return results
}

// passes reports whether every member factor of the combination passed.
func passes(combo factor.Combination, results map[string]factor.Result) bool {
	for _, fid := range combo.FactorIDs {
		r, ok := results[fid]
		if !ok || !r.Passed {
			return false
		}
	}
	return true
}

// ScreenAll screens the whole universe, iterating stocks in code order
// so runs over the same data produce identical reports.
func (s *Screener) ScreenAll(data map[string][]core.Bar, runDate string, names map[string]string, progress ProgressFunc) *Report {
	if runDate == "" {
		runDate = core.FormatDate(time.Now())
	}

	codes := make([]string, 0, len(data))
	for code := range data {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	start := time.Now()
	var all []Result
	for i, code := range codes {
		if progress != nil {
			progress(i+1, len(codes), code)
		}
		bars := sortedByDate(data[code])
		all = append(all, s.ScreenStock(bars, code, runDate, names[code])...)
	}

	counts := make(map[string]int)
	for _, r := range all {
		counts[r.Combination]++
	}

	return &Report{
		RunID:             uuid.New().String(),
		RunDate:           runDate,
		TotalStocks:       len(codes),
		Results:           all,
		Duration:          time.Since(start),
		CombinationCounts: counts,
		Combinations:      s.combinations,
	}
}

// sortedByDate returns bars ascending by date, copying only when the
// input is out of order.
func sortedByDate(bars []core.Bar) []core.Bar {
	sorted := sort.SliceIsSorted(bars, func(i, j int) bool {
		return bars[i].Date < bars[j].Date
	})
	if sorted {
		return bars
	}
	out := make([]core.Bar, len(bars))
	copy(out, bars)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}
