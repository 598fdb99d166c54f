package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dhcgn/msg-partition/cmd"
	"github.com/dhcgn/msg-partition/config"
	"github.com/dhcgn/msg-partition/runner"
	"github.com/dhcgn/msg-partition/stats"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "msg-partition",
		Short: "Partition Outlook .msg files into typed JSON document elements",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			logger.Info("starting msg-partition",
				zap.Strings("inputs", cfg.Inputs),
				zap.String("output", cfg.OutputDir),
				zap.Bool("dryRun", cfg.DryRun),
			)

			return run(cfg, logger)
		},
	}
	rootCmd.SilenceUsage = true

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}
	rootCmd.AddCommand(cmd.NewAttachmentsCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	r, err := runner.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}
	metrics := stats.NewMetrics()
	reporter := stats.NewReporter(r, metrics, logger)

	results, runErr := r.Run()

	if cfg.MetricsFile != "" {
		if err := metrics.WriteFile(cfg.MetricsFile); err != nil {
			logger.Error("metrics not written", zap.String("path", cfg.MetricsFile), zap.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	if summary := reporter.Summary(); summary.Errors > 0 {
		return fmt.Errorf("%d of %d inputs failed, last error: %w", summary.Errors, len(results), summary.LastError)
	}
	return nil
}

func setupLogger(cfg config.Config) (*zap.Logger, func() error, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	switch cfg.LogLevel {
	case "debug":
		level.SetLevel(zapcore.DebugLevel)
	case "info":
		level.SetLevel(zapcore.InfoLevel)
	case "warn":
		level.SetLevel(zapcore.WarnLevel)
	case "error":
		level.SetLevel(zapcore.ErrorLevel)
	}

	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = []string{"stdout"}
	zc.ErrorOutputPaths = []string{"stderr"}

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, nil, err
		}
		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("msg-partition-%s.log", time.Now().Format("20060102T150405")))
		zc.OutputPaths = append(zc.OutputPaths, logFilePath)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error {
		_ = logger.Sync()
		return nil
	}
	return logger, cleanup, nil
}
