package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minleaf/sieve/internal/collector"
	"github.com/minleaf/sieve/internal/collector/eastmoney"
	"github.com/minleaf/sieve/internal/collector/tencent"
	"github.com/minleaf/sieve/internal/config"
	"github.com/minleaf/sieve/internal/core"
	"github.com/minleaf/sieve/internal/factor"
	"github.com/minleaf/sieve/internal/logger"
	"github.com/minleaf/sieve/internal/metrics"
	"github.com/minleaf/sieve/internal/pipeline"
	"github.com/minleaf/sieve/internal/screen"
	"github.com/minleaf/sieve/internal/storage/archive"
	"github.com/minleaf/sieve/internal/store"
	"github.com/minleaf/sieve/internal/sync"
)

var (
	runDryRun bool
	runDate   string
	runDBPath string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily collect and screen pipeline",
	Long: `Fetch the stock universe, top up the local k-line cache to the latest
trading date, screen every combination, and upload the report to the
results service.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "screen and log results without uploading")
	runCmd.Flags().StringVar(&runDate, "date", "", "run date YYYY-MM-DD (default today)")
	runCmd.Flags().StringVar(&runDBPath, "db-path", "", "override the k-line cache path")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if runDBPath != "" {
		cfg.Data.DBPath = runDBPath
	}
	if runDate != "" {
		if _, err := core.ParseDate(runDate); err != nil {
			return fmt.Errorf("invalid date format (expected YYYY-MM-DD): %w", err)
		}
	}

	st, err := store.Open(cfg.Data.DBPath)
	if err != nil {
		return fmt.Errorf("opening k-line cache: %w", err)
	}
	defer st.Close()

	scr, err := buildScreener(cfg)
	if err != nil {
		return err
	}

	deps := pipeline.Dependencies{
		Store:      st,
		Collectors: buildCollectors(),
		Screener:   scr,
		Metrics:    metrics.NewRegistry(),
	}
	if cfg.Sync.Enabled {
		deps.Sync = sync.New(cfg.Sync.BaseURL, cfg.Sync.Token, cfg.Sync.Timeout)
	}
	if cfg.Archive.Enabled {
		deps.Archive, err = buildArchive(cfg)
		if err != nil {
			return err
		}
	}

	// Ctrl-C cancels the run between stocks instead of killing it
	// mid-write.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Warn("interrupt received, stopping after current stock")
		cancel()
	}()

	p := pipeline.New(cfg, deps, log)
	stats, err := p.Run(ctx, pipeline.RunOptions{
		RunDate: runDate,
		DryRun:  runDryRun,
		Progress: func(current, total int, code string) {
			if current%500 == 0 || current == total {
				log.Info("downloading",
					zap.Int("current", current),
					zap.Int("total", total),
				)
			}
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("Run %s: %d stocks screened, %d passed (%.1fs)\n",
		stats.RunDate, stats.Screened, stats.Passed, stats.Duration.Seconds())
	return nil
}

// buildCollectors registers every known data source; the pipeline
// picks by config.
func buildCollectors() *collector.Registry {
	reg := collector.NewRegistry()
	reg.Register(eastmoney.New())
	reg.Register(tencent.New())
	return reg
}

// buildScreener resolves the configured combination IDs against the
// registry; an empty list screens everything.
func buildScreener(cfg *config.Config) (*screen.Screener, error) {
	if len(cfg.Screen.Combinations) == 0 {
		return screen.New(nil, nil), nil
	}
	combos := make([]factor.Combination, 0, len(cfg.Screen.Combinations))
	for _, id := range cfg.Screen.Combinations {
		combo, err := factor.GetCombination(id)
		if err != nil {
			return nil, fmt.Errorf("screen.combinations: %w", err)
		}
		combos = append(combos, combo)
	}
	return screen.New(nil, combos), nil
}

// buildArchive creates the configured cold-storage backend.
func buildArchive(cfg *config.Config) (archive.Storage, error) {
	switch cfg.Archive.Backend {
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.Archive.S3.Bucket,
			Endpoint:  cfg.Archive.S3.Endpoint,
			Region:    cfg.Archive.S3.Region,
			AccessKey: cfg.Archive.S3.AccessKey,
			SecretKey: cfg.Archive.S3.SecretKey,
			Prefix:    cfg.Archive.S3.Prefix,
		})
	default:
		return archive.NewLocalFS(cfg.Archive.Path)
	}
}
