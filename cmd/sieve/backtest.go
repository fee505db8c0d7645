package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minleaf/sieve/internal/backtest"
	"github.com/minleaf/sieve/internal/config"
	"github.com/minleaf/sieve/internal/core"
	"github.com/minleaf/sieve/internal/logger"
	"github.com/minleaf/sieve/internal/storage/archive"
	"github.com/minleaf/sieve/internal/store"
)

var (
	btCombination string
	btStart       string
	btEnd         string
	btCapital     float64
	btEntryWindow int
	btTakeProfit  float64
	btStopLoss    float64
	btMaxHold     int
	btBoard       string
	btCSV         string
	btArchive     bool
	btDBPath      string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest a factor combination against the local cache",
	Long: `Replay a combination's entry and exit rules over the cached k-line
history and print the performance report.`,
	RunE: runBacktest,
}

func init() {
	d := config.Defaults().Backtest
	backtestCmd.Flags().StringVarP(&btCombination, "combination", "m", "", "combination ID, e.g. ma60_bounce_uptrend (required)")
	backtestCmd.Flags().StringVar(&btStart, "start", "", "start date YYYY-MM-DD (default earliest cached)")
	backtestCmd.Flags().StringVar(&btEnd, "end", "", "end date YYYY-MM-DD (default latest cached)")
	backtestCmd.Flags().Float64Var(&btCapital, "capital", d.Capital, "initial capital")
	backtestCmd.Flags().IntVar(&btEntryWindow, "entry-window", d.EntryWindow, "days to wait for a bearish entry candle")
	backtestCmd.Flags().Float64Var(&btTakeProfit, "take-profit", d.TakeProfitPct, "take-profit percent")
	backtestCmd.Flags().Float64Var(&btStopLoss, "stop-loss", d.StopLossPct, "stop-loss percent, 0 disables")
	backtestCmd.Flags().IntVar(&btMaxHold, "max-hold", d.MaxHoldDays, "max holding days, 0 disables")
	backtestCmd.Flags().StringVar(&btBoard, "board", d.Board, "board filter: all, main or star")
	backtestCmd.Flags().StringVar(&btCSV, "csv", "", "export the trade ledger to a CSV file")
	backtestCmd.Flags().BoolVar(&btArchive, "archive", false, "store result artifacts in the configured archive")
	backtestCmd.Flags().StringVar(&btDBPath, "db-path", "", "override the k-line cache path")

	backtestCmd.MarkFlagRequired("combination")
	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	// Explicit flags win over the config file.
	f := cmd.Flags()
	if f.Changed("capital") {
		cfg.Backtest.Capital = btCapital
	}
	if f.Changed("entry-window") {
		cfg.Backtest.EntryWindow = btEntryWindow
	}
	if f.Changed("take-profit") {
		cfg.Backtest.TakeProfitPct = btTakeProfit
	}
	if f.Changed("stop-loss") {
		cfg.Backtest.StopLossPct = btStopLoss
	}
	if f.Changed("max-hold") {
		cfg.Backtest.MaxHoldDays = btMaxHold
	}
	if f.Changed("board") {
		cfg.Backtest.Board = btBoard
	}
	if btDBPath != "" {
		cfg.Data.DBPath = btDBPath
	}

	if btStart != "" {
		if _, err := core.ParseDate(btStart); err != nil {
			return fmt.Errorf("invalid start date (expected YYYY-MM-DD): %w", err)
		}
	}
	if btEnd != "" {
		if _, err := core.ParseDate(btEnd); err != nil {
			return fmt.Errorf("invalid end date (expected YYYY-MM-DD): %w", err)
		}
	}
	if btStart != "" && btEnd != "" && btEnd < btStart {
		return fmt.Errorf("end date must not be before start date")
	}

	data, err := loadStockData(cfg, core.Board(cfg.Backtest.Board), log)
	if err != nil {
		return err
	}

	engine, err := backtest.New(backtest.Config{
		CombinationID:  btCombination,
		StartDate:      btStart,
		EndDate:        btEnd,
		InitialCapital: cfg.Backtest.Capital,
		EntryWindow:    cfg.Backtest.EntryWindow,
		TakeProfitPct:  cfg.Backtest.TakeProfitPct,
		StopLossPct:    cfg.Backtest.StopLossPct,
		MaxHoldDays:    cfg.Backtest.MaxHoldDays,
	})
	if err != nil {
		return err
	}

	log.Info("backtest starting",
		zap.String("combination", btCombination),
		zap.Float64("capital", cfg.Backtest.Capital),
		zap.Int("stocks", len(data)),
	)

	started := time.Now()
	result := engine.Run(data, nil, scanProgress)
	log.Info("backtest finished",
		zap.Duration("duration", time.Since(started)),
		zap.Int("trades", len(result.Trades)),
	)

	backtest.RenderText(os.Stdout, result)

	if btCSV != "" {
		if err := backtest.ExportCSV(btCSV, result); err != nil {
			return fmt.Errorf("exporting csv: %w", err)
		}
		fmt.Printf("Trade ledger written to %s\n", btCSV)
	}

	if btArchive {
		if err := archiveResult(cfg, result, log); err != nil {
			return err
		}
	}
	return nil
}

// scanProgress keeps the signal-detection phase visibly alive on long
// universes without flooding the terminal.
func scanProgress(current, total int, phase string) {
	if current%500 == 0 || current == total {
		fmt.Fprintf(os.Stderr, "\r%s %d/%d", phase, current, total)
		if current == total {
			fmt.Fprintln(os.Stderr)
		}
	}
}

// loadStockData opens the cache, loads every bar series, and applies
// the board filter.
func loadStockData(cfg *config.Config, board core.Board, log *zap.Logger) (map[string][]core.Bar, error) {
	st, err := store.Open(cfg.Data.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening k-line cache: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if info, err := st.Stats(ctx); err == nil {
		log.Info("k-line cache",
			zap.String("path", info.Path),
			zap.Int("stocks", info.Stocks),
			zap.Int("records", info.Records),
			zap.String("latest_date", info.LatestDate),
		)
	}

	data, err := st.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading bars: %w", err)
	}

	if board != core.BoardAll {
		filtered := make(map[string][]core.Bar, len(data))
		for code, bars := range data {
			if core.MatchesBoard(code, board) {
				filtered[code] = bars
			}
		}
		log.Info("board filter applied",
			zap.String("board", string(board)),
			zap.Int("stocks", len(filtered)),
		)
		data = filtered
	}
	return data, nil
}

// archiveResult stores the result document and trade ledger under a
// fresh run ID.
func archiveResult(cfg *config.Config, result *backtest.Result, log *zap.Logger) error {
	storage, err := buildArchive(cfg)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	ctx := context.Background()

	doc, err := backtest.MarshalJSON(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	resultKey := archive.BacktestResultKey(result.CombinationID, runID)
	if err := storage.Write(ctx, resultKey, doc); err != nil {
		return fmt.Errorf("archiving result: %w", err)
	}

	var trades bytes.Buffer
	if err := backtest.WriteCSV(&trades, result); err != nil {
		return fmt.Errorf("encoding trades: %w", err)
	}
	tradesKey := archive.BacktestTradesKey(result.CombinationID, runID)
	if err := storage.Write(ctx, tradesKey, trades.Bytes()); err != nil {
		return fmt.Errorf("archiving trades: %w", err)
	}

	log.Info("artifacts archived",
		zap.String("run_id", runID),
		zap.String("result_key", resultKey),
		zap.String("trades_key", tradesKey),
	)
	return nil
}
