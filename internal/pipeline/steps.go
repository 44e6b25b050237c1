package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"ecommerce-etl/config"
	"ecommerce-etl/internal/analytics"
	"ecommerce-etl/internal/generator"
	"ecommerce-etl/internal/ingest"
	"ecommerce-etl/internal/quality"
	"ecommerce-etl/internal/store"
	"ecommerce-etl/internal/transform"
	"ecommerce-etl/internal/warehouse"

	"go.uber.org/zap"
)

// Step names, in the order DefaultSteps runs them
const (
	StepDataGeneration      = "data_generation"
	StepIngestion           = "ingestion"
	StepQualityChecks       = "quality_checks"
	StepStagingToProduction = "staging_to_production"
	StepWarehouseLoad       = "warehouse_load"
	StepAnalytics           = "analytics"
)

// StepNames lists the default step order
var StepNames = []string{
	StepDataGeneration,
	StepIngestion,
	StepQualityChecks,
	StepStagingToProduction,
	StepWarehouseLoad,
	StepAnalytics,
}

// Components holds one instance of every stage of the pipeline
type Components struct {
	Generator   *generator.Generator
	Ingest      *ingest.Loader
	Quality     *quality.Gate
	Transformer *transform.Transformer
	Warehouse   *warehouse.Loader
	Analytics   *analytics.Runner

	// prepare runs at the start of every database-backed attempt
	prepare func(ctx context.Context) error
}

// NewComponents wires every stage from configuration
func NewComponents(cfg *config.Config, s *store.Store, logger *zap.Logger) *Components {
	p := cfg.Paths
	batch := cfg.Pipeline.BatchSize
	return &Components{
		Generator:   generator.New(cfg.Generation, p.RawDir, logger),
		Ingest:      ingest.NewLoader(s, p.RawDir, p.StagingDir, batch, logger),
		Quality:     quality.NewGate(s, p.StagingDir, logger),
		Transformer: transform.NewTransformer(s, p.ProcessedDir, batch, logger),
		Warehouse:   warehouse.NewLoader(s, p.ProcessedDir, batch, logger),
		Analytics:   analytics.NewRunner(s, p.AnalyticsDir, logger),
		prepare: func(ctx context.Context) error {
			return s.EnsureSchema(ctx, cfg.Pipeline.MigrationsPath, logger)
		},
	}
}

func discard[T any](run func(context.Context) (T, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := run(ctx)
		return err
	}
}

// withDatabase makes the database ready before run, inside the same attempt,
// so connection and migration failures are retried like any step failure
func (c *Components) withDatabase(run func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		if c.prepare != nil {
			if err := c.prepare(ctx); err != nil {
				return fmt.Errorf("database unavailable: %w", err)
			}
		}
		return run(ctx)
	}
}

// Steps returns the stages as orchestrator steps in their fixed order
func (c *Components) Steps() []Step {
	return []Step{
		NewStep(StepDataGeneration, discard(c.Generator.Run)),
		NewStep(StepIngestion, c.withDatabase(discard(c.Ingest.Run))),
		NewStep(StepQualityChecks, c.withDatabase(discard(c.Quality.Run))),
		NewStep(StepStagingToProduction, c.withDatabase(discard(c.Transformer.Run))),
		NewStep(StepWarehouseLoad, c.withDatabase(discard(c.Warehouse.Run))),
		NewStep(StepAnalytics, c.withDatabase(discard(c.Analytics.Run))),
	}
}

// OptionsFromConfig maps the pipeline section onto orchestrator options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxRetries:  cfg.Pipeline.MaxRetries,
		Backoff:     cfg.Pipeline.Backoff(),
		StepTimeout: cfg.Pipeline.StepTimeout,
		ReportPath:  filepath.Join(cfg.Paths.ProcessedDir, ReportFile),
		LogDir:      cfg.Paths.LogDir,
	}
}
