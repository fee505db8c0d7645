package backtest

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func reportFixture() *Result {
	trades := []Trade{
		{
			Code: "600001", Name: "甲",
			EntryDate: "2024-03-02", EntryPrice: 9.5,
			ExitDate: "2024-03-04", ExitPrice: 10.5,
			Shares: 105200,
		},
		{
			Code: "000002", Name: "乙",
			EntryDate: "2024-03-10", EntryPrice: 20.0,
			ExitDate: "2024-03-15", ExitPrice: 19.0,
			Shares: 5000,
		},
	}
	return &Result{
		CombinationID:    "ma60_bounce_uptrend",
		CombinationLabel: "MA60支撑反弹+趋势向上",
		StartDate:        "2024-01-01",
		EndDate:          "2024-06-30",
		InitialCapital:   1_000_000,
		FinalNAV:         1_100_200,
		Trades:           trades,
		NAVHistory:       []NAVPoint{{"2024-01-02", 1_000_000}, {"2024-06-28", 1_100_200}},
		Metrics:          CalcMetrics(trades, []NAVPoint{{"2024-01-02", 1_000_000}, {"2024-06-28", 1_100_200}}, 1_000_000),
	}
}

func TestTradeRecord(t *testing.T) {
	tr := Trade{
		Code: "600001", EntryDate: "2024-03-02", EntryPrice: 10.0,
		ExitDate: "2024-03-06", ExitPrice: 11.0, Shares: 5000,
	}
	rec := tr.Record()

	if rec.PnL != 5000.0 {
		t.Errorf("PnL = %v, want 5000", rec.PnL)
	}
	if rec.ReturnPct != tr.ReturnPct() {
		t.Errorf("ReturnPct = %v, want %v", rec.ReturnPct, tr.ReturnPct())
	}
	if rec.HoldingDays != 4 {
		t.Errorf("HoldingDays = %d, want 4", rec.HoldingDays)
	}
}

func TestMarshalJSON(t *testing.T) {
	data, err := MarshalJSON(reportFixture())
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc["combination_id"] != "ma60_bounce_uptrend" {
		t.Errorf("combination_id = %v", doc["combination_id"])
	}
	if got := len(doc["trades"].([]any)); got != 2 {
		t.Errorf("trades = %d entries, want 2", got)
	}
}

func TestMarshalJSON_InfiniteRatio(t *testing.T) {
	r := reportFixture()
	r.Metrics = map[string]float64{
		"total_return_pct":  10.0,
		"profit_loss_ratio": math.Inf(1),
	}

	data, err := MarshalJSON(r)
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v (non-finite metric must not fail)", err)
	}
	if !strings.Contains(string(data), `"profit_loss_ratio": "inf"`) {
		t.Error("expected the infinite ratio rendered as the string inf")
	}
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	RenderText(&buf, reportFixture())
	out := buf.String()

	for _, want := range []string{
		"回测报告：MA60支撑反弹+趋势向上",
		"组合 ID：ma60_bounce_uptrend",
		"2024-01-01 ~ 2024-06-30",
		"初始资金：1,000,000",
		"总交易笔数:    2",
		"期末净值: 1,100,200.00",
		"600001",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRenderText_NoTrades(t *testing.T) {
	r := &Result{
		CombinationID:    "test",
		CombinationLabel: "测试",
		InitialCapital:   1_000_000,
		FinalNAV:         1_000_000,
		Metrics:          map[string]float64{},
	}

	var buf bytes.Buffer
	RenderText(&buf, r)
	out := buf.String()

	if !strings.Contains(out, "总交易笔数:    0") {
		t.Error("zero-trade report should still show the trade count")
	}
	if strings.Contains(out, "交易明细") {
		t.Error("zero-trade report should omit the trade table")
	}
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	if err := ExportCSV(path, reportFixture()); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(raw, []byte("\uFEFF")) {
		t.Error("CSV must start with a UTF-8 BOM")
	}

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 {
		t.Fatalf("CSV has %d lines, want header + 2 trades", len(lines))
	}
	if !strings.Contains(lines[0], "收益率(%)") {
		t.Errorf("header = %q, missing return column", lines[0])
	}
	if !strings.Contains(lines[1], "600001") || !strings.Contains(lines[1], "9.50") {
		t.Errorf("first row = %q, want code and 2dp entry price", lines[1])
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		v        float64
		decimals int
		want     string
	}{
		{1_000_000, 0, "1,000,000"},
		{1_105_200.5, 2, "1,105,200.50"},
		{999, 0, "999"},
		{-12_345.6, 1, "-12,345.6"},
	}
	for _, tt := range tests {
		if got := formatAmount(tt.v, tt.decimals); got != tt.want {
			t.Errorf("formatAmount(%v, %d) = %q, want %q", tt.v, tt.decimals, got, tt.want)
		}
	}
}
