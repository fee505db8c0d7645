package factor

import (
	"fmt"

	"github.com/minleaf/sieve/internal/core"
)

// Combination groups factors that must all pass for a signal.
type Combination struct {
	ID          string
	Label       string
	Description string
	EntryRule   string
	ExitRule    string
	FactorIDs   []string
}

// Factors resolves the combination's members against the registry.
func (c Combination) Factors() ([]Factor, error) {
	out := make([]Factor, 0, len(c.FactorIDs))
	for _, id := range c.FactorIDs {
		f, err := Get(id)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// The registered factor set is closed: combinations may only reference
// factors listed here. Parameters are the production defaults; custom
// parameterizations (the grid sweep) construct their own instances.
var registered = []Factor{
	NewMA60Bounce(5.0, 2.0, 5),
	NewMA60Uptrend(10, 0.5),
	NewQualityFilter(QualityParams{}),
	NewMACDCross(2, 12, 26, 9),
	NewRSIRebound(14, 35, 3),
	NewNDayReturn(20, -5.0, 15.0),
	NewTurnoverBand(5, 1.0, 10.0),
}

var factorByID = func() map[string]Factor {
	m := make(map[string]Factor, len(registered))
	for _, f := range registered {
		m[f.ID()] = f
	}
	return m
}()

var combinations = []Combination{
	{
		ID:          "ma60_bounce_uptrend",
		Label:       "MA60支撑反弹+趋势向上",
		Description: "跌破MA60后强力反弹+趋势向上+信号质量过滤（跌破≤5天、量比5d≥1.5、换手率5~12%）。10%止盈、15天最大持仓、5天入场窗口。",
		EntryRule:   "信号日出现阴线时买入（5天入场窗口）。条件：跌破MA60后反弹涨幅≥5%、量比5d≥1.5、换手率5~12%、跌破天数≤5天、MA60近10日持续上升",
		ExitRule:    "止盈：涨幅达10%卖出 | 最大持仓：15个交易日强制卖出",
		FactorIDs: []string{
			"ma60_bounce_volume",
			"ma60_recent_uptrend",
			"signal_quality_filter",
		},
	},
}

var combinationByID = func() map[string]Combination {
	m := make(map[string]Combination, len(combinations))
	for _, c := range combinations {
		m[c.ID] = c
	}
	return m
}()

// Get returns the registered factor with the given id.
func Get(id string) (Factor, error) {
	f, ok := factorByID[id]
	if !ok {
		return nil, core.WrapError(core.ErrUnknownFactor, fmt.Errorf("%q", id))
	}
	return f, nil
}

// All returns every registered factor in registration order.
func All() []Factor {
	out := make([]Factor, len(registered))
	copy(out, registered)
	return out
}

// GetCombination returns the combination with the given id.
func GetCombination(id string) (Combination, error) {
	c, ok := combinationByID[id]
	if !ok {
		return Combination{}, core.WrapError(core.ErrUnknownCombination, fmt.Errorf("%q", id))
	}
	return c, nil
}

// Combinations returns every defined combination.
func Combinations() []Combination {
	out := make([]Combination, len(combinations))
	copy(out, combinations)
	return out
}
