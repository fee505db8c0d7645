package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/minleaf/sieve/internal/collector"
	"github.com/minleaf/sieve/internal/core"
	"github.com/minleaf/sieve/internal/util"
)

const (
	defaultListURL  = "https://push2.eastmoney.com/api/qt/clist/get"
	defaultKlineURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get"

	// SZ main, ChiNext, SH main, STAR. Beijing boards are not selected.
	listMarkets = "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23"
	pageSize    = 100

	maxRetries = 3
	retryWait  = 2 * time.Second
)

// Eastmoney fetches the A-share universe and daily bars from the
// eastmoney push2 APIs.
type Eastmoney struct {
	client   *http.Client
	listURL  string
	klineURL string
	limiter  *util.RateLimiter
}

// New creates an Eastmoney collector with production endpoints.
func New() *Eastmoney {
	return &Eastmoney{
		client:   &http.Client{Timeout: 10 * time.Second},
		listURL:  defaultListURL,
		klineURL: defaultKlineURL,
		limiter:  util.NewRateLimiter(10),
	}
}

func (e *Eastmoney) Name() string {
	return "eastmoney"
}

func (e *Eastmoney) Init(cfg collector.Config) error {
	if cfg.ListURL != "" {
		e.listURL = cfg.ListURL
	}
	if cfg.KlineURL != "" {
		e.klineURL = cfg.KlineURL
	}
	if cfg.Timeout > 0 {
		e.client.Timeout = cfg.Timeout
	}
	if cfg.PerSecond > 0 {
		e.limiter = util.NewRateLimiter(cfg.PerSecond)
	}
	return nil
}

// secid converts a bare stock code to the eastmoney security id.
// Shanghai (6xxxxx) = 1, Shenzhen = 0.
func secid(code string) string {
	if strings.HasPrefix(code, "6") {
		return "1." + code
	}
	return "0." + code
}

// FetchStockList pages through the clist API and returns the full
// SH+SZ universe.
func (e *Eastmoney) FetchStockList(ctx context.Context) ([]core.Stock, error) {
	var stocks []core.Stock

	for page := 1; ; page++ {
		data, err := e.fetchListPage(ctx, page)
		if err != nil {
			return nil, core.WrapError(core.ErrCollectorFailed, err)
		}
		if data == nil || len(data.Diff) == 0 {
			break
		}

		for _, item := range data.Diff {
			// Beijing exchange codes occasionally leak through; the
			// pipeline does not trade them.
			if strings.HasPrefix(item.Code, "4") || strings.HasPrefix(item.Code, "8") {
				continue
			}
			stocks = append(stocks, core.Stock{Code: item.Code, Name: item.Name})
		}

		if len(stocks) >= data.Total {
			break
		}
	}

	if len(stocks) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("empty stock list"))
	}
	return stocks, nil
}

func (e *Eastmoney) fetchListPage(ctx context.Context, page int) (*listData, error) {
	url := fmt.Sprintf("%s?pn=%d&pz=%d&po=1&np=1&fltt=2&invt=2&fid=f12&fs=%s&fields=f12,f14",
		e.listURL, page, pageSize, listMarkets)

	var data *listData
	err := util.Retry(ctx, maxRetries, retryWait, func() error {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		var result listResponse
		if err := e.getJSON(ctx, url, &result); err != nil {
			return err
		}
		data = result.Data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list page %d: %w", page, err)
	}
	return data, nil
}

// FetchDaily fetches forward-adjusted daily bars for one stock,
// ascending by date.
func (e *Eastmoney) FetchDaily(ctx context.Context, code, startDate, endDate string) ([]core.Bar, error) {
	beg := "0"
	if startDate != "" {
		beg = strings.ReplaceAll(startDate, "-", "")
	}
	end := "20500101"
	if endDate != "" {
		end = strings.ReplaceAll(endDate, "-", "")
	}

	url := fmt.Sprintf("%s?secid=%s&klt=101&fqt=1&beg=%s&end=%s&fields1=f1,f2,f3,f4,f5,f6&fields2=f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61",
		e.klineURL, secid(code), beg, end)

	var data *klineData
	err := util.Retry(ctx, maxRetries, retryWait, func() error {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		var result klineResponse
		if err := e.getJSON(ctx, url, &result); err != nil {
			return err
		}
		data = result.Data
		return nil
	})
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("kline %s: %w", code, err))
	}
	if data == nil {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no kline data for %s", code))
	}

	bars := make([]core.Bar, 0, len(data.Klines))
	for _, line := range data.Klines {
		if bar, ok := parseKline(code, line); ok {
			bars = append(bars, bar)
		}
	}
	return bars, nil
}

func (e *Eastmoney) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// parseKline parses one push2his kline string. Field order is
// date,open,close,high,low,volume,amount,amplitude,pct_chg,chg,turnover.
func parseKline(code, line string) (core.Bar, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < 11 {
		return core.Bar{}, false
	}

	return core.Bar{
		Code:     code,
		Date:     fields[0],
		Open:     parseFloat(fields[1]),
		Close:    parseFloat(fields[2]),
		High:     parseFloat(fields[3]),
		Low:      parseFloat(fields[4]),
		Volume:   parseFloat(fields[5]),
		Amount:   parseFloat(fields[6]),
		PctChg:   parseFloat(fields[8]),
		Turnover: parseFloat(fields[10]),
	}, true
}

// parseFloat maps the API's empty and "-" placeholders to NaN.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// Response types
type listResponse struct {
	Data *listData `json:"data"`
}

type listData struct {
	Total int        `json:"total"`
	Diff  []listItem `json:"diff"`
}

type listItem struct {
	Code string `json:"f12"`
	Name string `json:"f14"`
}

type klineResponse struct {
	Data *klineData `json:"data"`
}

type klineData struct {
	Code   string   `json:"code"`
	Name   string   `json:"name"`
	Klines []string `json:"klines"`
}
