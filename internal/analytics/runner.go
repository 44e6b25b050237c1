package analytics

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ecommerce-etl/internal/models"
	"ecommerce-etl/internal/store"
	"ecommerce-etl/internal/util"

	"go.uber.org/zap"
)

// SummaryFile is written next to the exported result sets
const SummaryFile = "analytics_summary.json"

// Runner executes the query battery against the warehouse
type Runner struct {
	store     *store.Store
	outputDir string
	queries   []Query
	logger    *zap.Logger
	now       func() time.Time
}

// NewRunner creates an analytics runner exporting to outputDir
func NewRunner(s *store.Store, outputDir string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = util.GetLogger()
	}
	return &Runner{
		store:     s,
		outputDir: outputDir,
		queries:   Queries,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes each query in order and exports its result set as CSV.
// The first failing query aborts the run.
func (r *Runner) Run(ctx context.Context) (*models.AnalyticsSummary, error) {
	ctx, span := util.StartSpan(ctx, "analytics.Run")
	defer span.End()

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create analytics directory: %w", err)
	}

	start := r.now()
	summary := &models.AnalyticsSummary{
		GenerationTimestamp: start,
		QueryResults:        make([]models.QueryResult, 0, len(r.queries)),
	}

	for _, q := range r.queries {
		qStart := r.now()
		rs, err := store.QueryTable(ctx, r.store.GetDB(), q.SQL)
		if err != nil {
			r.logger.Error("Analytical query failed", zap.String("query", q.Name), zap.Error(err))
			return nil, fmt.Errorf("query %s: %w", q.Name, err)
		}
		elapsed := r.now().Sub(qStart)
		util.AnalyticsQueryLatency.WithLabelValues(q.Name).Observe(elapsed.Seconds())

		output := q.Name + ".csv"
		if err := writeResultSet(filepath.Join(r.outputDir, output), rs); err != nil {
			return nil, err
		}

		summary.QueryResults = append(summary.QueryResults, models.QueryResult{
			Name:            q.Name,
			Output:          output,
			Rows:            len(rs.Rows),
			Columns:         len(rs.Columns),
			ExecutionTimeMs: util.Round2(float64(elapsed.Microseconds()) / 1000),
		})
		r.logger.Debug("Analytical query exported",
			zap.String("query", q.Name),
			zap.Int("rows", len(rs.Rows)),
			zap.Duration("elapsed", elapsed))
	}

	summary.QueriesExecuted = len(summary.QueryResults)
	summary.TotalExecutionTimeSeconds = util.Round2(r.now().Sub(start).Seconds())

	if err := models.WriteJSON(filepath.Join(r.outputDir, SummaryFile), summary); err != nil {
		return summary, err
	}
	r.logger.Info("Analytics generation completed", zap.Int("queries", summary.QueriesExecuted))
	return summary, nil
}

func writeResultSet(path string, rs *store.ResultSet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(rs.Columns); err != nil {
		return err
	}
	if err := w.WriteAll(rs.Rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
