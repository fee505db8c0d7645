package eastmoney

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/minleaf/sieve/internal/collector"
	"github.com/minleaf/sieve/internal/core"
)

func TestEastmoney_ImplementsCollector(t *testing.T) {
	var _ collector.Collector = (*Eastmoney)(nil)
}

func TestEastmoney_Name(t *testing.T) {
	e := New()
	if e.Name() != "eastmoney" {
		t.Errorf("expected 'eastmoney', got '%s'", e.Name())
	}
}

func TestSecid(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"600000", "1.600000"}, // Shanghai = 1
		{"000001", "0.000001"}, // Shenzhen = 0
		{"300750", "0.300750"},
	}

	for _, tc := range tests {
		if got := secid(tc.code); got != tc.want {
			t.Errorf("secid(%s) = %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestParseKline(t *testing.T) {
	line := "2024-01-02,10.00,10.50,10.60,9.90,123456,98765432.00,7.07,5.00,0.50,2.35"

	bar, ok := parseKline("600000", line)
	if !ok {
		t.Fatal("expected line to parse")
	}

	if bar.Date != "2024-01-02" {
		t.Errorf("Date = %s, want 2024-01-02", bar.Date)
	}
	if bar.Open != 10.00 {
		t.Errorf("Open = %v, want 10.00", bar.Open)
	}
	if bar.Close != 10.50 {
		t.Errorf("Close = %v, want 10.50", bar.Close)
	}
	if bar.High != 10.60 {
		t.Errorf("High = %v, want 10.60", bar.High)
	}
	if bar.Low != 9.90 {
		t.Errorf("Low = %v, want 9.90", bar.Low)
	}
	if bar.Volume != 123456 {
		t.Errorf("Volume = %v, want 123456", bar.Volume)
	}
	if bar.PctChg != 5.00 {
		t.Errorf("PctChg = %v, want 5.00", bar.PctChg)
	}
	if bar.Turnover != 2.35 {
		t.Errorf("Turnover = %v, want 2.35", bar.Turnover)
	}
}

func TestParseKline_MissingFieldsBecomeNaN(t *testing.T) {
	line := "2024-01-02,10.00,10.50,10.60,9.90,123456,98765432.00,7.07,5.00,0.50,-"

	bar, ok := parseKline("600000", line)
	if !ok {
		t.Fatal("expected line to parse")
	}
	if !math.IsNaN(bar.Turnover) {
		t.Errorf("Turnover = %v, want NaN for '-'", bar.Turnover)
	}
}

func TestParseKline_ShortLine(t *testing.T) {
	if _, ok := parseKline("600000", "2024-01-02,10.00"); ok {
		t.Error("expected short line to be rejected")
	}
}

func testCollector(t *testing.T, listURL, klineURL string) *Eastmoney {
	t.Helper()
	e := New()
	if err := e.Init(collector.Config{
		ListURL:   listURL,
		KlineURL:  klineURL,
		PerSecond: 1000, // keep tests fast
	}); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestFetchStockList_Pages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("pn") {
		case "1":
			fmt.Fprint(w, `{"data":{"total":3,"diff":[{"f12":"600000","f14":"浦发银行"},{"f12":"000001","f14":"平安银行"}]}}`)
		case "2":
			fmt.Fprint(w, `{"data":{"total":3,"diff":[{"f12":"430001","f14":"北交所股"}]}}`)
		default:
			fmt.Fprint(w, `{"data":null}`)
		}
	}))
	defer server.Close()

	e := testCollector(t, server.URL, server.URL)

	stocks, err := e.FetchStockList(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stocks) != 2 {
		t.Fatalf("expected 2 stocks (Beijing code dropped), got %d", len(stocks))
	}
	if stocks[0].Code != "600000" || stocks[0].Name != "浦发银行" {
		t.Errorf("stocks[0] = %+v", stocks[0])
	}
	if stocks[1].Code != "000001" {
		t.Errorf("stocks[1] = %+v", stocks[1])
	}
}

func TestFetchStockList_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":null}`)
	}))
	defer server.Close()

	e := testCollector(t, server.URL, server.URL)

	_, err := e.FetchStockList(context.Background())
	if !errors.Is(err, core.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestFetchDaily(t *testing.T) {
	var gotQuery map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"secid": q.Get("secid"),
			"klt":   q.Get("klt"),
			"fqt":   q.Get("fqt"),
			"beg":   q.Get("beg"),
			"end":   q.Get("end"),
		}
		fmt.Fprint(w, `{"data":{"code":"600000","name":"浦发银行","klines":[
			"2024-01-02,10.00,10.50,10.60,9.90,123456,98765432.00,7.07,5.00,0.50,2.35",
			"2024-01-03,10.50,10.40,10.70,10.30,110000,90000000.00,3.81,-0.95,-0.10,2.10"
		]}}`)
	}))
	defer server.Close()

	e := testCollector(t, server.URL, server.URL)

	bars, err := e.FetchDaily(context.Background(), "600000", "2024-01-01", "2024-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotQuery["secid"] != "1.600000" {
		t.Errorf("secid = %s, want 1.600000", gotQuery["secid"])
	}
	if gotQuery["klt"] != "101" || gotQuery["fqt"] != "1" {
		t.Errorf("klt/fqt = %s/%s, want 101/1", gotQuery["klt"], gotQuery["fqt"])
	}
	if gotQuery["beg"] != "20240101" || gotQuery["end"] != "20240131" {
		t.Errorf("beg/end = %s/%s", gotQuery["beg"], gotQuery["end"])
	}

	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Date != "2024-01-02" || bars[1].Date != "2024-01-03" {
		t.Errorf("dates = %s, %s", bars[0].Date, bars[1].Date)
	}
	if bars[1].Close != 10.40 {
		t.Errorf("second close = %v, want 10.40", bars[1].Close)
	}
	if bars[1].PctChg != -0.95 {
		t.Errorf("second pct_chg = %v, want -0.95", bars[1].PctChg)
	}
}

func TestFetchDaily_NoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":null}`)
	}))
	defer server.Close()

	e := testCollector(t, server.URL, server.URL)

	_, err := e.FetchDaily(context.Background(), "600000", "", "")
	if !errors.Is(err, core.ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}
