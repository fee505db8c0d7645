package archive

import "testing"

func TestKeys(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{ScreeningKey("2024-01-03"), "screening/2024-01-03/report.json"},
		{BacktestResultKey("ma60_bounce_uptrend", "abc"), "backtest/ma60_bounce_uptrend/abc/result.json"},
		{BacktestTradesKey("ma60_bounce_uptrend", "abc"), "backtest/ma60_bounce_uptrend/abc/trades.csv"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
