package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minleaf/sieve/internal/backtest"
	"github.com/minleaf/sieve/internal/core"
	"github.com/minleaf/sieve/internal/logger"
)

var (
	gridWorkers int
	gridTop     int
	gridDBPath  string
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Sweep quality-filter parameters over the main board",
	Long: `Run the parameter grid against the cached main-board history, one
independent backtest per variant, and rank the outcomes by return.`,
	RunE: runGrid,
}

func init() {
	gridCmd.Flags().IntVar(&gridWorkers, "workers", runtime.NumCPU(), "parallel backtest workers")
	gridCmd.Flags().IntVar(&gridTop, "top", 10, "size of the ranked table")
	gridCmd.Flags().StringVar(&gridDBPath, "db-path", "", "override the k-line cache path")
	rootCmd.AddCommand(gridCmd)
}

func runGrid(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if gridDBPath != "" {
		cfg.Data.DBPath = gridDBPath
	}

	data, err := loadStockData(cfg, core.BoardAll, log)
	if err != nil {
		return err
	}
	data = backtest.FilterMainBoard(data)
	log.Info("sweep universe", zap.Int("stocks", len(data)))

	variants := backtest.DefaultGrid()
	log.Info("sweep starting",
		zap.Int("variants", len(variants)),
		zap.Int("workers", gridWorkers),
	)

	started := time.Now()
	outcomes := backtest.Sweep(data, nil, variants, gridWorkers)
	log.Info("sweep finished", zap.Duration("duration", time.Since(started)))

	backtest.RenderSweep(os.Stdout, outcomes, gridTop)
	fmt.Println()
	return nil
}
