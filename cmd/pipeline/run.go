package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"ecommerce-etl/internal/broker"
	"ecommerce-etl/internal/models"
	"ecommerce-etl/internal/pipeline"
	"ecommerce-etl/internal/store"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every pipeline step once, in order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		report, err := executePipeline(cmd.Context())
		if report != nil {
			printReport(cmd.OutOrStdout(), report)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// executePipeline runs the orchestrator once. The store connects lazily and
// each database step migrates and connects inside its own retried attempt.
func executePipeline(ctx context.Context) (*models.ExecutionReport, error) {
	s, err := store.Open(cfg.Database.URL(), cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	o := pipeline.New(pipeline.NewComponents(cfg, s, logger).Steps(), pipeline.OptionsFromConfig(cfg), logger)
	if cfg.Kafka.Enabled() {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("Failed to close Kafka producer", zap.Error(err))
			}
		}()
		o.WithPublisher(broker.NewEventPublisher(producer))
		logger.Info("Publishing pipeline events", zap.String("topic", cfg.Kafka.Topic))
	}
	return o.Run(ctx)
}

func printReport(w io.Writer, report *models.ExecutionReport) {
	fmt.Fprintf(w, "Pipeline %s: %s in %.2fs\n\n", report.PipelineExecutionID, report.Status, report.TotalDurationSeconds)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Step", "Status", "Duration (s)", "Retries", "Error"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, step := range report.StepsExecuted {
		table.Append([]string{
			step.Name,
			step.Status,
			strconv.FormatFloat(step.DurationSeconds, 'f', 2, 64),
			strconv.Itoa(step.RetryAttempts),
			step.ErrorMessage,
		})
	}
	table.Render()

	for _, e := range report.Errors {
		fmt.Fprintf(w, "\nerror: %s\n", e)
	}
}
