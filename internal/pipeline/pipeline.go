// Package pipeline runs the daily collect, screen and sync cycle.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/minleaf/sieve/internal/collector"
	"github.com/minleaf/sieve/internal/config"
	"github.com/minleaf/sieve/internal/core"
	"github.com/minleaf/sieve/internal/metrics"
	"github.com/minleaf/sieve/internal/screen"
	"github.com/minleaf/sieve/internal/storage/archive"
	"github.com/minleaf/sieve/internal/store"
	"github.com/minleaf/sieve/internal/sync"
)

const (
	// listSource names the collector used for the stock universe.
	// Only eastmoney serves the full list; tencent only serves bars.
	listSource = "eastmoney"

	// freshCacheRatio is the share of cached stocks already at the
	// target date above which the download phase is skipped entirely.
	freshCacheRatio = 0.95

	// probeWindowDays is how far back the target-date probe looks.
	probeWindowDays = 30

	// progressLogEvery throttles screening progress logs.
	progressLogEvery = 1000
)

// ProgressFunc reports download progress. current is 1-based.
type ProgressFunc func(current, total int, code string)

// FetchStats counts per-stock download outcomes. Skipped, Incremental
// and Full classify the planned action and sum to the universe size;
// Failed counts fetches that errored or came back empty afterwards.
type FetchStats struct {
	Skipped     int
	Incremental int
	Full        int
	Failed      int
}

// RunStats summarizes one pipeline run.
type RunStats struct {
	RunDate    string
	TargetDate string
	Stocks     int
	Fetch      FetchStats
	Deleted    int64
	Screened   int
	Passed     int
	Synced     bool
	Archived   bool
	Duration   time.Duration
}

// RunOptions control a single run.
type RunOptions struct {
	// RunDate stamps the report; empty means today.
	RunDate string

	// DryRun screens and logs but skips upload and archive.
	DryRun bool

	// Progress, when set, is called once per stock during download.
	Progress ProgressFunc
}

// Dependencies carries the components a Pipeline drives. Store,
// Collectors and Screener are required; Sync and Archive are optional
// and nil disables the corresponding step.
type Dependencies struct {
	Store      *store.KlineStore
	Collectors *collector.Registry
	Screener   *screen.Screener
	Sync       *sync.Client
	Archive    archive.Storage
	Metrics    *metrics.Registry
}

// Pipeline orchestrates one end-to-end daily run: probe the source's
// latest trading date, top up the local k-line cache, trim old rows,
// screen the universe and push the report to the results service.
type Pipeline struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      *store.KlineStore
	collectors *collector.Registry
	screener   *screen.Screener
	client     *sync.Client
	archive    archive.Storage
	metrics    *metrics.Registry
}

// New creates a Pipeline. A nil logger falls back to a no-op logger,
// nil metrics to a private registry and a nil screener to the full
// factor registry.
func New(cfg *config.Config, deps Dependencies, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRegistry()
	}
	if deps.Screener == nil {
		deps.Screener = screen.New(nil, nil)
	}
	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		store:      deps.Store,
		collectors: deps.Collectors,
		screener:   deps.Screener,
		client:     deps.Sync,
		archive:    deps.Archive,
		metrics:    deps.Metrics,
	}
}

// Run executes one full cycle. Per-stock fetch failures are counted
// and logged but never abort the run; an error is returned only when a
// whole phase cannot proceed, such as the universe fetch or the local
// store failing.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunStats, error) {
	start := time.Now()
	stats := &RunStats{}

	if err := p.run(ctx, opts, stats); err != nil {
		p.metrics.RecordRun("failed", time.Since(start).Seconds())
		return nil, err
	}

	stats.Duration = time.Since(start)
	p.metrics.RecordRun("success", stats.Duration.Seconds())
	p.logger.Info("pipeline complete",
		zap.Duration("duration", stats.Duration),
		zap.Int("passed", stats.Passed),
	)
	return stats, nil
}

func (p *Pipeline) run(ctx context.Context, opts RunOptions, stats *RunStats) error {
	runDate := opts.RunDate
	if runDate == "" {
		runDate = time.Now().Format(core.DateLayout)
	}
	stats.RunDate = runDate
	p.logger.Info("pipeline starting",
		zap.String("run_date", runDate),
		zap.Bool("dry_run", opts.DryRun),
	)

	barSource, ok := p.collectors.Get(p.cfg.Data.Source)
	if !ok {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data source %q not registered", p.cfg.Data.Source))
	}
	universeSource, ok := p.collectors.Get(listSource)
	if !ok {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("stock list source %q not registered", listSource))
	}

	stocks, err := universeSource.FetchStockList(ctx)
	if err != nil {
		return err
	}
	stats.Stocks = len(stocks)
	p.logger.Info("stock universe fetched", zap.Int("stocks", len(stocks)))

	fetchStart := time.Now()
	target := p.probeTargetDate(ctx, barSource)
	stats.TargetDate = target
	p.logger.Info("target trading date", zap.String("target_date", target))

	fetch, err := p.download(ctx, barSource, stocks, target, opts.Progress)
	if err != nil {
		return err
	}
	stats.Fetch = fetch
	p.metrics.RecordStage("fetch", time.Since(fetchStart).Seconds())
	p.logger.Info("download complete",
		zap.Int("skipped", fetch.Skipped),
		zap.Int("incremental", fetch.Incremental),
		zap.Int("full", fetch.Full),
		zap.Int("failed", fetch.Failed),
	)

	deleted, err := p.store.Cleanup(ctx, p.cfg.Data.KeepDays)
	if err != nil {
		return err
	}
	stats.Deleted = deleted
	p.logger.Info("cache trimmed",
		zap.Int64("deleted", deleted),
		zap.Int("keep_days", p.cfg.Data.KeepDays),
	)
	if st, err := p.store.Stats(ctx); err == nil {
		p.metrics.SetKlineStats(int64(st.Stocks), int64(st.Records))
	}

	screenStart := time.Now()
	data, err := p.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	p.logger.Info("cache loaded", zap.Int("stocks", len(data)))

	names := make(map[string]string, len(stocks))
	for _, s := range stocks {
		names[s.Code] = s.Name
	}

	rep := p.screener.ScreenAll(data, runDate, names, func(current, total int, code string) {
		if current%progressLogEvery == 0 {
			p.logger.Info("screening progress",
				zap.Int("current", current),
				zap.Int("total", total),
			)
		}
	})
	p.metrics.RecordStage("screen", time.Since(screenStart).Seconds())
	p.metrics.RecordScreen(rep.Duration.Seconds(), rep.TotalStocks, len(rep.Results))
	stats.Screened = rep.TotalStocks
	stats.Passed = len(rep.Results)

	p.logger.Info("screening complete",
		zap.Int("stocks", rep.TotalStocks),
		zap.Int("passed", len(rep.Results)),
		zap.Duration("duration", rep.Duration),
	)
	for _, id := range sortedKeys(rep.CombinationCounts) {
		p.logger.Info("combination matched",
			zap.String("combination", id),
			zap.Int("count", rep.CombinationCounts[id]),
		)
	}

	if opts.DryRun {
		p.logger.Info("dry run, skipping upload and archive")
		p.logResults(rep)
		return nil
	}

	syncStart := time.Now()
	stats.Synced = p.upload(ctx, rep)
	p.metrics.RecordStage("sync", time.Since(syncStart).Seconds())

	stats.Archived = p.archiveReport(ctx, rep)
	return nil
}

// probeTargetDate fetches a short recent window for the reference code
// and takes the newest bar date as the source's latest trading date.
// When the probe fails it falls back to yesterday, which at worst
// re-downloads one extra day.
func (p *Pipeline) probeTargetDate(ctx context.Context, src collector.Collector) string {
	startDate := time.Now().AddDate(0, 0, -probeWindowDays).Format(core.DateLayout)
	bars, err := src.FetchDaily(ctx, p.cfg.Data.ProbeCode, startDate, "")
	if err != nil || len(bars) == 0 {
		fallback := time.Now().AddDate(0, 0, -1).Format(core.DateLayout)
		p.logger.Warn("probe failed, falling back to yesterday",
			zap.String("probe_code", p.cfg.Data.ProbeCode),
			zap.String("target_date", fallback),
			zap.Error(err),
		)
		return fallback
	}

	target := bars[0].Date
	for _, b := range bars[1:] {
		if b.Date > target {
			target = b.Date
		}
	}
	return target
}

// download tops up the cache to the target date. Each stock is
// classified once: already current, incremental from the day after its
// latest cached bar, or full history for cache misses.
func (p *Pipeline) download(ctx context.Context, src collector.Collector, stocks []core.Stock, target string, progress ProgressFunc) (FetchStats, error) {
	var stats FetchStats

	latest, err := p.store.LatestDates(ctx)
	if err != nil {
		return stats, err
	}

	if len(latest) > 0 {
		upToDate := 0
		for _, d := range latest {
			if d >= target {
				upToDate++
			}
		}
		ratio := float64(upToDate) / float64(len(latest))
		p.logger.Info("cache coverage",
			zap.Int("up_to_date", upToDate),
			zap.Int("cached_stocks", len(latest)),
			zap.String("target_date", target),
		)
		if ratio > freshCacheRatio {
			p.logger.Info("cache is current, skipping download",
				zap.String("coverage", fmt.Sprintf("%.1f%%", ratio*100)))
			stats.Skipped = len(stocks)
			return stats, nil
		}
	}

	fullStart := time.Now().AddDate(0, 0, -p.cfg.Data.FullHistoryDays).Format(core.DateLayout)

	for i, stock := range stocks {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if progress != nil {
			progress(i+1, len(stocks), stock.Code)
		}

		last, cached := latest[stock.Code]
		if cached && last >= target {
			stats.Skipped++
			p.metrics.RecordFetch(src.Name(), "skipped")
			continue
		}

		startDate := fullStart
		kind := "full"
		if cached {
			if begin, perr := core.ParseDate(last); perr == nil {
				startDate = begin.AddDate(0, 0, 1).Format(core.DateLayout)
				kind = "incremental"
			}
		}
		if kind == "incremental" {
			stats.Incremental++
		} else {
			stats.Full++
		}
		p.metrics.RecordFetch(src.Name(), kind)

		bars, err := src.FetchDaily(ctx, stock.Code, startDate, target)
		if err != nil || len(bars) == 0 {
			stats.Failed++
			p.metrics.RecordFetch(src.Name(), "failed")
			p.logger.Warn("fetch failed",
				zap.String("code", stock.Code),
				zap.String("start", startDate),
				zap.Error(err),
			)
			continue
		}
		if _, err := p.store.UpsertBars(ctx, bars); err != nil {
			stats.Failed++
			p.metrics.RecordFetch(src.Name(), "failed")
			p.logger.Warn("store write failed",
				zap.String("code", stock.Code),
				zap.Error(err),
			)
		}
	}
	return stats, nil
}

// upload pushes the report to the results service. Failures are logged
// and reported as false so a flaky service never loses a local run.
func (p *Pipeline) upload(ctx context.Context, rep *screen.Report) bool {
	if p.client == nil || !p.cfg.Sync.Enabled {
		p.logger.Info("sync disabled, skipping upload")
		return false
	}
	if !p.client.Health(ctx) {
		p.logger.Error("results service unreachable, skipping upload")
		return false
	}

	resp, err := p.client.Ingest(ctx, rep.IngestPayload())
	if err != nil {
		p.logger.Error("upload failed", zap.Error(err))
		return false
	}
	p.logger.Info("upload complete",
		zap.Int("inserted", resp.Inserted),
		zap.String("message", resp.Message),
	)
	return true
}

// archiveReport writes the report artifact to cold storage when an
// archive backend is configured.
func (p *Pipeline) archiveReport(ctx context.Context, rep *screen.Report) bool {
	if p.archive == nil {
		return false
	}

	data, err := screen.MarshalJSON(rep)
	if err != nil {
		p.logger.Error("archive encode failed", zap.Error(err))
		return false
	}
	key := archive.ScreeningKey(rep.RunDate)
	if err := p.archive.Write(ctx, key, data); err != nil {
		p.logger.Error("archive write failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}
	p.logger.Info("report archived", zap.String("key", key))
	return true
}

// logResults prints each passing stock with its factor readings, the
// dry-run replacement for uploading.
func (p *Pipeline) logResults(rep *screen.Report) {
	if len(rep.Results) == 0 {
		p.logger.Info("no stocks passed")
		return
	}
	for _, r := range rep.Results {
		fields := []zap.Field{
			zap.String("code", r.Code),
			zap.String("name", r.Name),
			zap.String("combination", r.Combination),
		}
		for _, id := range sortedDetailKeys(r.FactorDetails) {
			fields = append(fields, zap.String(id, r.FactorDetails[id]))
		}
		p.logger.Info("passed", fields...)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedDetailKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
