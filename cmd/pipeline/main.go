package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecommerce-etl/config"
	"ecommerce-etl/internal/store"
	"ecommerce-etl/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string

	cfg            *config.Config
	logger         *zap.Logger
	shutdownTracer func(context.Context) error

	rootCmd = &cobra.Command{
		Use:               "pipeline",
		Short:             "Batch ETL pipeline for synthetic e-commerce data",
		Long:              "Generates e-commerce data, loads it through staging and production into a star-schema warehouse, and exports analytics.",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the YAML configuration")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	teardown()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if errors.Is(err, config.ErrMissingDatabaseConfig) {
		return fmt.Errorf("aborting before any pipeline step: %w", err)
	}
	if err != nil {
		return err
	}
	cfg = loaded

	if err := util.InitLogger(cfg.Observ.Env); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = util.GetLogger().With(zap.String("command", cmd.Name()))

	tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	if tp != nil {
		shutdownTracer = tp.Shutdown
	}
	return nil
}

func teardown() {
	if shutdownTracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}
	if logger != nil {
		util.SyncLogger()
	}
}

func openStore() (*store.Store, error) {
	s, err := store.NewStore(cfg.Database.URL(), cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name))
	return s, nil
}

// applyMigrations brings the four schemas up to date on a dedicated connection
func applyMigrations() error {
	db, err := sql.Open("postgres", cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	return store.RunMigrations(db, cfg.Pipeline.MigrationsPath, logger)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
