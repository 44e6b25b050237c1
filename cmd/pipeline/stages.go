package main

import (
	"context"

	"ecommerce-etl/internal/cleanup"
	"ecommerce-etl/internal/generator"
	"ecommerce-etl/internal/monitor"
	"ecommerce-etl/internal/pipeline"

	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the synthetic raw CSV datasets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		meta, err := generator.New(cfg.Generation, cfg.Paths.RawDir, logger).Run(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), meta)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the staging, production and warehouse schemas",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return applyMigrations()
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete data and log files older than the retention period",
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := newSweeper().Run(cmd.Context())
		if res != nil {
			if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
				return perr
			}
		}
		return err
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Evaluate pipeline health and write the monitoring report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		report, err := monitor.New(s, cfg.Paths.ProcessedDir, cfg.Monitor.FreshnessThreshold, logger).Check(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

// stageCommand runs a single database-backed stage outside the orchestrator
func stageCommand(use, short string, stage func(*pipeline.Components) func(context.Context) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			out, err := stage(pipeline.NewComponents(cfg, s, logger))(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newSweeper() *cleanup.Sweeper {
	p := cfg.Paths
	dirs := []string{p.RawDir, p.StagingDir, p.LogDir}
	return cleanup.NewSweeper(dirs, cfg.Pipeline.RetentionDays, logger)
}

func init() {
	rootCmd.AddCommand(
		generateCmd,
		stageCommand("ingest", "Load the raw CSV files into the staging schema", func(c *pipeline.Components) func(context.Context) (any, error) {
			return func(ctx context.Context) (any, error) { return c.Ingest.Run(ctx) }
		}),
		stageCommand("quality", "Score staging data quality and write the quality report", func(c *pipeline.Components) func(context.Context) (any, error) {
			return func(ctx context.Context) (any, error) { return c.Quality.Run(ctx) }
		}),
		stageCommand("transform", "Cleanse staging data and promote it to production", func(c *pipeline.Components) func(context.Context) (any, error) {
			return func(ctx context.Context) (any, error) { return c.Transformer.Run(ctx) }
		}),
		stageCommand("warehouse", "Rebuild the star-schema warehouse from production", func(c *pipeline.Components) func(context.Context) (any, error) {
			return func(ctx context.Context) (any, error) { return c.Warehouse.Run(ctx) }
		}),
		stageCommand("analytics", "Run the analytical queries and export CSV results", func(c *pipeline.Components) func(context.Context) (any, error) {
			return func(ctx context.Context) (any, error) { return c.Analytics.Run(ctx) }
		}),
		migrateCmd,
		cleanupCmd,
		monitorCmd,
	)
}
