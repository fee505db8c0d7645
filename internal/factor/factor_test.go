package factor

import (
	"time"

	"github.com/minleaf/sieve/internal/core"
)

/// testBars builds n ascending daily bars starting 2024-01-01: close 10,
// volume 100, turnover 8, pct_chg 0.5. mutate adjusts individual bars.
func testBars(n int, mutate func(i int, b *core.Bar)) []core.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.Bar, n)
	for i := range bars {
		b := core.Bar{
			Code:     "600000",
			Date:     core.FormatDate(start.AddDate(0, 0, i)),
			Open:     10,
			High:     10,
			Low:      10,
			Close:    10,
			Volume:   100,
			Amount:   1000,
			Turnover: 8,
			PctChg:   0.5,
		}
		if mutate != nil {
			mutate(i, &b)
		}
		bars[i] = b
	}
	return bars
}

// risingBars slopes the close so every bar sits above its MA60.
func risingBars(n int, mutate func(i int, b *core.Bar)) []core.Bar {
	return testBars(n, func(i int, b *core.Bar) {
		b.Close = 10 + 0.01*float64(i)
		if mutate != nil {
			mutate(i, b)
		}
	})
}
