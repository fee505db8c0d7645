package backtest

import "math"

// CalcMetrics derives performance statistics from the closed-trade
// ledger and the NAV time series. An empty NAV history yields an empty
// map, so a zero-day run still produces a well-formed report.
func CalcMetrics(trades []Trade, navHistory []NAVPoint, initialCapital float64) map[string]float64 {
	if len(navHistory) == 0 {
		return map[string]float64{}
	}

	metrics := make(map[string]float64)

	finalNAV := navHistory[len(navHistory)-1].NAV
	totalReturn := (finalNAV - initialCapital) / initialCapital * 100
	metrics["total_return_pct"] = round2(totalReturn)

	// Annualize over 250 trading days per year. A single NAV point has
	// no duration to annualize over.
	tradingDays := len(navHistory)
	if tradingDays > 1 {
		annualFactor := 250.0 / float64(tradingDays)
		annualized := (math.Pow(finalNAV/initialCapital, annualFactor) - 1) * 100
		metrics["annualized_return_pct"] = round2(annualized)
	}

	// Max drawdown against a running peak seeded at initial capital.
	peak := initialCapital
	maxDD := 0.0
	for _, p := range navHistory {
		if p.NAV > peak {
			peak = p.NAV
		}
		dd := (peak - p.NAV) / peak * 100
		if dd > maxDD {
			maxDD = dd
		}
	}
	metrics["max_drawdown_pct"] = round2(maxDD)

	metrics["total_trades"] = float64(len(trades))

	if len(trades) > 0 {
		var winners, losers []float64
		for _, t := range trades {
			ret := t.ReturnPct()
			if ret > 0 {
				winners = append(winners, ret)
			} else {
				losers = append(losers, ret)
			}
		}

		metrics["win_rate_pct"] = round2(float64(len(winners)) / float64(len(trades)) * 100)

		avgWin := mean(winners)
		avgLoss := math.Abs(mean(losers))
		if avgLoss > 0 {
			metrics["profit_loss_ratio"] = round2(avgWin / avgLoss)
		} else {
			metrics["profit_loss_ratio"] = math.Inf(1)
		}

		var holdSum float64
		maxWin := math.Inf(-1)
		maxLoss := math.Inf(1)
		for _, t := range trades {
			holdSum += float64(t.HoldingDays())
			ret := t.ReturnPct()
			if ret > maxWin {
				maxWin = ret
			}
			if ret < maxLoss {
				maxLoss = ret
			}
		}
		metrics["avg_holding_days"] = round1(holdSum / float64(len(trades)))
		metrics["max_win_pct"] = round2(maxWin)
		metrics["max_loss_pct"] = round2(maxLoss)
	}

	return metrics
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
