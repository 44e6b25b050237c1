package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ecommerce-etl/internal/api"
	"ecommerce-etl/internal/broker"
	"ecommerce-etl/internal/monitor"
	"ecommerce-etl/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health, readiness, metrics and report endpoints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		var alertWorker *worker.AlertWorker
		workerCtx, workerCancel := context.WithCancel(ctx)
		defer workerCancel()
		if cfg.Kafka.Enabled() {
			alertWorker = newAlertWorker()
			go func() {
				if err := alertWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Alert worker error", zap.Error(err))
				}
			}()
		}

		if cfg.Observ.Env == "production" {
			gin.SetMode(gin.ReleaseMode)
		}

		router := gin.Default()
		checker := monitor.New(s, cfg.Paths.ProcessedDir, cfg.Monitor.FreshnessThreshold, logger)
		api.NewHandler(checker, cfg.Paths.ProcessedDir, cfg.Paths.StagingDir).SetupRoutes(router)

		srv := &http.Server{
			Addr:    cfg.Monitor.ListenAddr,
			Handler: router,
		}

		serveErr := make(chan error, 1)
		go func() {
			logger.Info("Starting HTTP server", zap.String("addr", cfg.Monitor.ListenAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil {
				return err
			}
		}

		logger.Info("Shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		err = srv.Shutdown(shutdownCtx)
		workerCancel()
		if alertWorker != nil {
			err = multierr.Append(err, alertWorker.Stop())
		}

		logger.Info("Server exited")
		return err
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Consume pipeline events and raise alerts on failed steps and runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !cfg.Kafka.Enabled() {
			return errors.New("watch requires kafka.brokers to be configured")
		}
		w := newAlertWorker()
		err := w.Start(cmd.Context())
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		return multierr.Append(err, w.Stop())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, watchCmd)
}

func newAlertWorker() *worker.AlertWorker {
	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup)
	return worker.NewAlertWorker(consumer)
}
