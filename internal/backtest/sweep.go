package backtest

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/minleaf/sieve/internal/core"
	"github.com/minleaf/sieve/internal/factor"
)

// SweepVariant is one quality-filter parameterization tried by the
// grid sweep. Entry and exit settings stay fixed across the grid.
type SweepVariant struct {
	MaxDaysBelow  int
	MinVolRatio5d float64
	MinTurn       float64
	MaxTurn       float64
}

// DefaultGrid returns the production sweep: variations of the quality
// filter's dip length, volume ratio, and turnover band.
func DefaultGrid() []SweepVariant {
	return []SweepVariant{
		{3, 2.0, 5, 12},
		{5, 2.0, 5, 12},
		{7, 2.0, 5, 12},
		{5, 1.5, 5, 12},
		{5, 2.5, 5, 12},
		{5, 2.0, 3, 12},
		{5, 2.0, 5, 10},
		{5, 2.0, 5, 15},
		{5, 2.0, 5, 20},
		{3, 2.0, 5, 10},
		{3, 2.5, 5, 12},
		{3, 1.5, 5, 15},
		{5, 1.5, 3, 15},
		{5, 2.0, 3, 10},
		{7, 2.0, 3, 15},
		{3, 2.0, 3, 12},
		{5, 2.5, 5, 10},
		{7, 1.5, 5, 12},
	}
}

// SweepOutcome pairs a variant with the headline numbers of its run.
type SweepOutcome struct {
	Variant         SweepVariant
	TotalReturnPct  float64
	ProfitLossRatio float64
	MaxDrawdownPct  float64
	TradeCount      int
	WinRatePct      float64
}

func newSweepOutcome(v SweepVariant, r *Result) SweepOutcome {
	wins := 0
	for _, t := range r.Trades {
		if t.ReturnPct() > 0 {
			wins++
		}
	}
	winRate := 0.0
	if len(r.Trades) > 0 {
		winRate = float64(wins) / float64(len(r.Trades)) * 100
	}
	return SweepOutcome{
		Variant:         v,
		TotalReturnPct:  r.Metrics["total_return_pct"],
		ProfitLossRatio: r.Metrics["profit_loss_ratio"],
		MaxDrawdownPct:  r.Metrics["max_drawdown_pct"],
		TradeCount:      len(r.Trades),
		WinRatePct:      winRate,
	}
}

// sweepPrefixes restricts the sweep universe to Shanghai and Shenzhen
// main-board listings.
var sweepPrefixes = []string{"000", "001", "002", "003", "600", "601", "603", "605"}

// FilterMainBoard returns only main-board instruments from the bar map.
func FilterMainBoard(data map[string][]core.Bar) map[string][]core.Bar {
	out := make(map[string][]core.Bar)
	for code, bars := range data {
		for _, prefix := range sweepPrefixes {
			if len(code) >= len(prefix) && code[:len(prefix)] == prefix {
				out[code] = bars
				break
			}
		}
	}
	return out
}

// Sweep runs every variant through an independent engine over the
// shared read-only bar map. Outcomes come back in grid order
// regardless of worker scheduling.
func Sweep(data map[string][]core.Bar, names map[string]string, variants []SweepVariant, workers int) []SweepOutcome {
	if workers < 1 {
		workers = 1
	}
	if workers > len(variants) {
		workers = len(variants)
	}

	combo := factor.Combination{ID: "grid_test", Label: "网格测试"}
	outcomes := make([]SweepOutcome, len(variants))

	taskCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range taskCh {
				v := variants[i]
				factors := []factor.Factor{
					factor.NewMA60Bounce(0, 0, 0),
					factor.NewMA60Uptrend(0, 0),
					factor.NewQualityFilter(factor.QualityParams{
						MaxDaysBelow:  v.MaxDaysBelow,
						MinVolRatio5d: v.MinVolRatio5d,
						MinTurn:       v.MinTurn,
						MaxTurn:       v.MaxTurn,
					}),
				}
				engine := NewWithFactors(Config{
					EntryWindow:   5,
					TakeProfitPct: 10.0,
					MaxHoldDays:   15,
				}, combo, factors)
				outcomes[i] = newSweepOutcome(v, engine.Run(data, names, nil))
			}
		}()
	}
	for i := range variants {
		taskCh <- i
	}
	close(taskCh)
	wg.Wait()

	return outcomes
}

// RankByReturn returns the outcomes sorted by total return, best
// first. Ties keep grid order.
func RankByReturn(outcomes []SweepOutcome) []SweepOutcome {
	ranked := make([]SweepOutcome, len(outcomes))
	copy(ranked, outcomes)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalReturnPct > ranked[j].TotalReturnPct
	})
	return ranked
}

// RenderSweep writes the grid-order result table followed by the
// ranked top-N table.
func RenderSweep(w io.Writer, outcomes []SweepOutcome, topN int) {
	fmt.Fprintf(w, "%3s %5s %5s %8s | %8s %6s %7s\n",
		"#", "跌破", "量比", "换手", "收益率", "盈亏比", "回撤")
	fmt.Fprintln(w, "-------------------------------------------------------")
	for i, o := range outcomes {
		v := o.Variant
		fmt.Fprintf(w, "%3d %4d天 %4.1fx %2.0f~%2.0f%% | %+7.1f%% %6.2f %6.1f%%  (%d笔 %.0f%%胜)\n",
			i+1, v.MaxDaysBelow, v.MinVolRatio5d, v.MinTurn, v.MaxTurn,
			o.TotalReturnPct, o.ProfitLossRatio, o.MaxDrawdownPct,
			o.TradeCount, o.WinRatePct)
	}

	ranked := RankByReturn(outcomes)
	if topN > len(ranked) {
		topN = len(ranked)
	}
	fmt.Fprintf(w, "\n===== 按收益率排序 TOP %d =====\n", topN)
	fmt.Fprintf(w, "%5s %5s %8s | %8s %6s %7s %5s %5s\n",
		"跌破", "量比", "换手", "收益率", "盈亏比", "回撤", "笔数", "胜率")
	fmt.Fprintln(w, "------------------------------------------------------------")
	for _, o := range ranked[:topN] {
		v := o.Variant
		fmt.Fprintf(w, "%4d天 %4.1fx %2.0f~%2.0f%% | %+7.1f%% %6.2f %6.1f%% %5d %4.0f%%\n",
			v.MaxDaysBelow, v.MinVolRatio5d, v.MinTurn, v.MaxTurn,
			o.TotalReturnPct, o.ProfitLossRatio, o.MaxDrawdownPct,
			o.TradeCount, o.WinRatePct)
	}
}
