package tencent

import (
	"context"
	"encoding/json"
	"errors"
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
	defaultKlineURL = "https://web.ifzq.gtimg.cn/appstock/app/fqkline/get"

	maxBars    = 800
	maxRetries = 3
	retryWait  = 2 * time.Second
)

// Tencent fetches forward-adjusted daily bars from the ifzq kline API.
// It is a bar source only; the stock universe comes from eastmoney.
// The payload carries no turnover (stored as NaN) and no change
// percent, which is derived from consecutive closes instead.
type Tencent struct {
	client   *http.Client
	klineURL string
	limiter  *util.RateLimiter
}

// New creates a Tencent collector with the production endpoint.
func New() *Tencent {
	return &Tencent{
		client:   &http.Client{Timeout: 10 * time.Second},
		klineURL: defaultKlineURL,
		limiter:  util.NewRateLimiter(10),
	}
}

func (t *Tencent) Name() string {
	return "tencent"
}

func (t *Tencent) Init(cfg collector.Config) error {
	if cfg.KlineURL != "" {
		t.klineURL = cfg.KlineURL
	}
	if cfg.Timeout > 0 {
		t.client.Timeout = cfg.Timeout
	}
	if cfg.PerSecond > 0 {
		t.limiter = util.NewRateLimiter(cfg.PerSecond)
	}
	return nil
}

// symbol converts a bare stock code to the tencent exchange-prefixed
// form.
func symbol(code string) string {
	if strings.HasPrefix(code, "6") {
		return "sh" + code
	}
	return "sz" + code
}

// FetchStockList is not supported; tencent has no usable universe
// endpoint.
func (t *Tencent) FetchStockList(ctx context.Context) ([]core.Stock, error) {
	return nil, core.WrapError(core.ErrCollectorFailed,
		errors.New("tencent provides bars only; fetch the stock list from eastmoney"))
}

// FetchDaily fetches qfq daily bars for one stock, ascending by date.
func (t *Tencent) FetchDaily(ctx context.Context, code, startDate, endDate string) ([]core.Bar, error) {
	if startDate == "" {
		startDate = "1990-01-01"
	}
	if endDate == "" {
		endDate = core.FormatDate(time.Now())
	}

	sym := symbol(code)
	url := fmt.Sprintf("%s?param=%s,day,%s,%s,%d,qfq",
		t.klineURL, sym, startDate, endDate, maxBars)

	var result klineResponse
	err := util.Retry(ctx, maxRetries, retryWait, func() error {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		resp, err := t.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetching: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		result = klineResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("kline %s: %w", code, err))
	}

	if result.Code != 0 {
		return nil, core.WrapError(core.ErrCollectorFailed,
			fmt.Errorf("kline %s: api code %d %s", code, result.Code, result.Msg))
	}

	sd, ok := result.Data[sym]
	if !ok {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no kline data for %s", code))
	}

	rows := sd.QfqDay
	if len(rows) == 0 {
		rows = sd.Day
	}

	bars := make([]core.Bar, 0, len(rows))
	prevClose := math.NaN()
	for _, row := range rows {
		bar, ok := parseRow(code, row, prevClose)
		if !ok {
			continue
		}
		prevClose = bar.Close
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseRow parses one kline row. Layout is
// [date, open, close, high, low, volume, ...].
func parseRow(code string, row []any, prevClose float64) (core.Bar, bool) {
	if len(row) < 6 {
		return core.Bar{}, false
	}

	date, ok := row[0].(string)
	if !ok || date == "" {
		return core.Bar{}, false
	}

	close := toFloat(row[2])
	pctChg := math.NaN()
	if !math.IsNaN(prevClose) && prevClose > 0 {
		pctChg = (close/prevClose - 1) * 100
	}

	return core.Bar{
		Code:     code,
		Date:     date,
		Open:     toFloat(row[1]),
		Close:    close,
		High:     toFloat(row[3]),
		Low:      toFloat(row[4]),
		Volume:   toFloat(row[5]),
		Amount:   math.NaN(),
		Turnover: math.NaN(),
		PctChg:   pctChg,
	}, true
}

// toFloat coerces the API's mixed string/number cells.
func toFloat(v any) float64 {
	switch x := v.(type) {
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case float64:
		return x
	default:
		return math.NaN()
	}
}

// Response types
type klineResponse struct {
	Code int                   `json:"code"`
	Msg  string                `json:"msg"`
	Data map[string]symbolData `json:"data"`
}

type symbolData struct {
	QfqDay [][]any `json:"qfqday"`
	Day    [][]any `json:"day"`
}
