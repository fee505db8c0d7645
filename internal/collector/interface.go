package collector

import (
	"context"
	"time"

	"github.com/minleaf/sieve/internal/core"
)

// Config holds collector configuration. Zero values keep each
// collector's production defaults; tests point the URLs at a local
// server.
type Config struct {
	ListURL   string        // stock-list endpoint
	KlineURL  string        // daily-bar endpoint
	Timeout   time.Duration // per-request HTTP timeout
	PerSecond float64       // rate-limit tokens per second
}

// Collector defines the interface for daily-bar data sources.
type Collector interface {
	// Name returns the registry key, e.g. "eastmoney".
	Name() string

	// Init applies configuration before first use.
	Init(cfg Config) error

	// FetchStockList returns the tradable A-share universe.
	FetchStockList(ctx context.Context) ([]core.Stock, error)

	// FetchDaily returns daily bars for one stock in ascending date
	// order. Dates are ISO strings; empty start or end leaves that
	// side unbounded.
	FetchDaily(ctx context.Context, code, startDate, endDate string) ([]core.Bar, error)
}
