package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minleaf/sieve/internal/api"
	"github.com/minleaf/sieve/internal/logger"
	"github.com/minleaf/sieve/internal/metrics"
	"github.com/minleaf/sieve/internal/storage/report"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the results service",
	Long: `Serve the ingest and screening-report API the daily pipeline syncs to,
with Prometheus metrics on /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	log.Info("starting results service",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("max_reports", cfg.Server.MaxReports),
		zap.Bool("auth", cfg.Server.APIToken != ""),
	)

	server, err := api.NewServer(api.Config{
		Host:     cfg.Server.Host,
		Port:     cfg.Server.Port,
		APIToken: cfg.Server.APIToken,
	}, api.Dependencies{
		Reports: report.NewMemoryStore(cfg.Server.MaxReports),
		Metrics: metrics.NewRegistry(),
	}, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down results service")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
