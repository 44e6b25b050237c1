package main

import (
	"context"
	"errors"
	"fmt"

	"ecommerce-etl/internal/redisclient"
	"ecommerce-etl/internal/scheduler"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const lockName = "ecommerce-etl-pipeline"

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline daily at the configured time, then sweep expired files",
	RunE: func(cmd *cobra.Command, _ []string) error {
		at, err := cfg.Pipeline.ScheduleClock()
		if err != nil {
			return err
		}

		lock, closeLock, err := newLock()
		if err != nil {
			return err
		}
		defer closeLock()

		job := func(ctx context.Context) error {
			report, err := executePipeline(ctx)
			if err != nil {
				return err
			}
			logger.Info("Scheduled run finished",
				zap.String("run_id", report.PipelineExecutionID),
				zap.Float64("duration_seconds", report.TotalDurationSeconds))

			res, err := newSweeper().Run(ctx)
			if err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}
			logger.Info("Cleanup finished", zap.Int("scanned", res.Scanned), zap.Int("deleted", res.Deleted))
			return nil
		}

		logger.Info("Using run lock", zap.String("lock_backend", cfg.Pipeline.LockBackend))

		err = scheduler.New(at, lock, job, logger).Start(cmd.Context())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func newLock() (scheduler.Lock, func(), error) {
	switch cfg.Pipeline.LockBackend {
	case "redis":
		client, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
		return scheduler.NewRedisLock(client, lockName, cfg.Pipeline.LockTTL), func() { client.Close() }, nil
	case "file", "":
		return scheduler.NewFileLock(cfg.Pipeline.LockFile), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.Pipeline.LockBackend)
	}
}
