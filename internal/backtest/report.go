package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// TradeRecord is the serializable view of a Trade with its derived
// values materialized.
type TradeRecord struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	EntryDate   string  `json:"entry_date"`
	EntryPrice  float64 `json:"entry_price"`
	ExitDate    string  `json:"exit_date"`
	ExitPrice   float64 `json:"exit_price"`
	Shares      int     `json:"shares"`
	PnL         float64 `json:"pnl"`
	ReturnPct   float64 `json:"return_pct"`
	HoldingDays int     `json:"holding_days"`
}

// Record converts the trade to its serializable view.
func (t Trade) Record() TradeRecord {
	return TradeRecord{
		Code:        t.Code,
		Name:        t.Name,
		EntryDate:   t.EntryDate,
		EntryPrice:  t.EntryPrice,
		ExitDate:    t.ExitDate,
		ExitPrice:   t.ExitPrice,
		Shares:      t.Shares,
		PnL:         t.PnL(),
		ReturnPct:   t.ReturnPct(),
		HoldingDays: t.HoldingDays(),
	}
}

// NAVRecord is the serializable view of a NAV point.
type NAVRecord struct {
	Date string  `json:"date"`
	NAV  float64 `json:"nav"`
}

// ResultDoc is the archive/inspection document for a completed run.
type ResultDoc struct {
	CombinationID    string         `json:"combination_id"`
	CombinationLabel string         `json:"combination_label"`
	StartDate        string         `json:"start_date"`
	EndDate          string         `json:"end_date"`
	InitialCapital   float64        `json:"initial_capital"`
	FinalNAV         float64        `json:"final_nav"`
	Metrics          map[string]any `json:"metrics"`
	Trades           []TradeRecord  `json:"trades"`
	NAVHistory       []NAVRecord    `json:"nav_history"`
}

// NewResultDoc builds the serializable document for a result.
func NewResultDoc(r *Result) ResultDoc {
	trades := make([]TradeRecord, len(r.Trades))
	for i, t := range r.Trades {
		trades[i] = t.Record()
	}
	navs := make([]NAVRecord, len(r.NAVHistory))
	for i, p := range r.NAVHistory {
		navs[i] = NAVRecord{Date: p.Date, NAV: p.NAV}
	}
	return ResultDoc{
		CombinationID:    r.CombinationID,
		CombinationLabel: r.CombinationLabel,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		InitialCapital:   r.InitialCapital,
		FinalNAV:         r.FinalNAV,
		Metrics:          jsonMetrics(r.Metrics),
		Trades:           trades,
		NAVHistory:       navs,
	}
}

// MarshalJSON renders the result as an indented archive document.
func MarshalJSON(r *Result) ([]byte, error) {
	return json.MarshalIndent(NewResultDoc(r), "", "  ")
}

// jsonMetrics rewrites non-finite metric values as strings, since JSON
// numbers cannot represent them. The profit/loss ratio is +Inf when a
// run has no losing trades.
func jsonMetrics(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch {
		case math.IsInf(v, 1):
			out[k] = "inf"
		case math.IsInf(v, -1):
			out[k] = "-inf"
		case math.IsNaN(v):
			out[k] = "nan"
		default:
			out[k] = v
		}
	}
	return out
}

// RenderText writes the terminal report: run header, performance
// overview, trade statistics, and the most recent trades.
func RenderText(w io.Writer, r *Result) {
	m := r.Metrics
	rule := strings.Repeat("=", 50)

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  回测报告：%s\n", r.CombinationLabel)
	fmt.Fprintf(w, "  组合 ID：%s\n", r.CombinationID)
	fmt.Fprintf(w, "  回测区间：%s ~ %s\n", r.StartDate, r.EndDate)
	fmt.Fprintf(w, "  初始资金：%s\n", formatAmount(r.InitialCapital, 0))
	fmt.Fprintln(w, rule)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "【绩效概览】")
	fmt.Fprintf(w, "  总收益率:      %s%%\n", signedPct(m["total_return_pct"]))
	if ann, ok := m["annualized_return_pct"]; ok {
		fmt.Fprintf(w, "  年化收益率:    %s%%\n", signedPct(ann))
	}
	fmt.Fprintf(w, "  最大回撤:      -%.2f%%\n", m["max_drawdown_pct"])

	totalTrades := int(m["total_trades"])
	if totalTrades > 0 {
		winRate := m["win_rate_pct"]
		winners := int(math.Round(float64(totalTrades) * winRate / 100))
		fmt.Fprintf(w, "  胜率:          %.1f%%  (%d/%d)\n", winRate, winners, totalTrades)
		fmt.Fprintf(w, "  盈亏比:        %.2f\n", m["profit_loss_ratio"])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "【交易统计】")
	fmt.Fprintf(w, "  总交易笔数:    %d\n", totalTrades)

	if totalTrades > 0 && len(r.Trades) > 0 {
		fmt.Fprintf(w, "  平均持仓天数:  %.1f\n", m["avg_holding_days"])

		best, worst := r.Trades[0], r.Trades[0]
		for _, t := range r.Trades[1:] {
			if t.ReturnPct() > best.ReturnPct() {
				best = t
			}
			if t.ReturnPct() < worst.ReturnPct() {
				worst = t
			}
		}
		fmt.Fprintf(w, "  单笔最大盈利:  +%.2f%%  (%s %s)\n", best.ReturnPct(), best.Code, best.Name)
		fmt.Fprintf(w, "  单笔最大亏损:  %.2f%%  (%s %s)\n", worst.ReturnPct(), worst.Code, worst.Name)
	}

	if len(r.Trades) > 0 {
		recent := r.Trades
		if len(recent) > 10 {
			recent = recent[len(recent)-10:]
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "【交易明细】(最近 %d 笔)\n", len(recent))
		fmt.Fprintf(w, "  %10s  %6s  %-6s  %7s  %7s  %7s  %4s\n",
			"买入日", "代码", "名称", "买入价", "卖出价", "收益率", "天数")
		for _, t := range recent {
			fmt.Fprintf(w, "  %10s  %6s  %-6s  %7.2f  %7.2f  %s%%  %4d\n",
				t.EntryDate, t.Code, t.Name,
				t.EntryPrice, t.ExitPrice, signedPct(t.ReturnPct()), t.HoldingDays())
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  期末净值: %s\n", formatAmount(r.FinalNAV, 2))
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

// ExportCSV writes the trade ledger to path.
func ExportCSV(path string, r *Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()
	return WriteCSV(f, r)
}

// WriteCSV writes the trade ledger with a UTF-8 BOM so Excel opens the
// Chinese headers correctly.
func WriteCSV(out io.Writer, r *Result) error {
	if _, err := io.WriteString(out, "\uFEFF"); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	w := csv.NewWriter(out)
	header := []string{
		"代码", "名称", "买入日期", "买入价格",
		"卖出日期", "卖出价格", "股数",
		"盈亏金额", "收益率(%)", "持仓天数",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range r.Trades {
		row := []string{
			t.Code, t.Name, t.EntryDate,
			fmt.Sprintf("%.2f", t.EntryPrice),
			t.ExitDate,
			fmt.Sprintf("%.2f", t.ExitPrice),
			strconv.Itoa(t.Shares),
			fmt.Sprintf("%.2f", t.PnL()),
			fmt.Sprintf("%.2f", t.ReturnPct()),
			strconv.Itoa(t.HoldingDays()),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write trade: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// signedPct renders a percentage with an explicit plus sign on
// non-negative values.
func signedPct(v float64) string {
	if v >= 0 {
		return fmt.Sprintf("+%.2f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

// formatAmount renders an amount with thousands separators.
func formatAmount(v float64, decimals int) string {
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	intPart := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	var b strings.Builder
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
