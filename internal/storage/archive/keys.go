package archive

import "path"

// Keys use forward slashes on every backend.

// ScreeningKey returns the key for a screening report artifact.
func ScreeningKey(runDate string) string {
	return path.Join("screening", runDate, "report.json")
}

// BacktestResultKey returns the key for a backtest result document.
func BacktestResultKey(combination, runID string) string {
	return path.Join("backtest", combination, runID, "result.json")
}

// BacktestTradesKey returns the key for a backtest trade ledger CSV.
func BacktestTradesKey(combination, runID string) string {
	return path.Join("backtest", combination, runID, "trades.csv")
}
