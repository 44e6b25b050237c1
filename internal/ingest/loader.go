package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"ecommerce-etl/internal/models"
	"ecommerce-etl/internal/store"
	"ecommerce-etl/internal/util"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// SummaryFile is written to the staging directory after every load attempt
const SummaryFile = "ingestion_summary.json"

// ErrSourceMissing is returned when a raw dataset file does not exist
var ErrSourceMissing = errors.New("source file missing")

// Loader replaces the staging schema with the raw CSV datasets
type Loader struct {
	store      *store.Store
	rawDir     string
	stagingDir string
	batchSize  int
	logger     *zap.Logger
	now        func() time.Time
}

// NewLoader creates a stage loader
func NewLoader(s *store.Store, rawDir, stagingDir string, batchSize int, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = util.GetLogger()
	}
	return &Loader{
		store:      s,
		rawDir:     rawDir,
		stagingDir: stagingDir,
		batchSize:  batchSize,
		logger:     logger,
		now:        time.Now,
	}
}

// Run truncates and reloads every staging table in one transaction. On
// failure nothing is committed, the summary records the error and the error
// is returned.
func (l *Loader) Run(ctx context.Context) (*models.IngestionSummary, error) {
	ctx, span := util.StartSpan(ctx, "ingest.Run")
	defer span.End()

	start := l.now()
	summary := &models.IngestionSummary{
		IngestionTimestamp: start,
		TablesLoaded:       make(map[string]models.TableLoad, len(models.SourceTables)),
	}

	err := l.store.InTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range models.TruncateOrder {
			if err := store.TruncateStaging(ctx, tx, table); err != nil {
				return err
			}
		}
		for _, table := range models.SourceTables {
			n, err := l.loadTable(ctx, tx, table)
			if err != nil {
				return fmt.Errorf("staging.%s: %w", table.Name, err)
			}
			summary.TablesLoaded[models.Qualified(models.SchemaStaging, table.Name)] = models.TableLoad{
				RowsLoaded: n,
				Status:     models.StepSuccess,
			}
		}
		return nil
	})
	summary.TotalExecutionTimeSeconds = util.Round2(l.now().Sub(start).Seconds())

	if err != nil {
		summary.Status = models.StepFailed
		summary.Error = err.Error()
		for name, load := range summary.TablesLoaded {
			load.Status = "rolled_back"
			summary.TablesLoaded[name] = load
		}
		if werr := l.writeSummary(summary); werr != nil {
			l.logger.Warn("Failed to write ingestion summary", zap.Error(werr))
		}
		l.logger.Error("Staging load failed", zap.Error(err))
		return summary, err
	}

	summary.Status = models.StepSuccess
	for _, table := range models.SourceTables {
		load := summary.TablesLoaded[models.Qualified(models.SchemaStaging, table.Name)]
		util.RowsLoadedTotal.WithLabelValues(models.SchemaStaging, table.Name).Add(float64(load.RowsLoaded))
	}
	if err := l.writeSummary(summary); err != nil {
		return summary, err
	}

	l.logger.Info("Staging load completed",
		zap.Any("tables", summary.TablesLoaded),
		zap.Float64("seconds", summary.TotalExecutionTimeSeconds))
	return summary, nil
}

func (l *Loader) loadTable(ctx context.Context, tx *sqlx.Tx, table models.Table) (int64, error) {
	path := filepath.Join(l.rawDir, table.Name+".csv")
	switch table.Name {
	case models.TableCustomers:
		return loadCSV(ctx, tx, path, table, models.ParseCustomer, l.batchSize)
	case models.TableProducts:
		return loadCSV(ctx, tx, path, table, models.ParseProduct, l.batchSize)
	case models.TableTransactions:
		return loadCSV(ctx, tx, path, table, models.ParseTransaction, l.batchSize)
	case models.TableTransactionItems:
		return loadCSV(ctx, tx, path, table, models.ParseTransactionItem, l.batchSize)
	default:
		return 0, fmt.Errorf("unknown source table %q", table.Name)
	}
}

func loadCSV[T any](ctx context.Context, tx *sqlx.Tx, path string, table models.Table, parse func([]string) (T, error), batchSize int) (int64, error) {
	rows, err := models.ReadCSV(path, table.Columns, parse)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", ErrSourceMissing, path)
	}
	if err != nil {
		return 0, err
	}
	return store.InsertBatches(ctx, tx, models.SchemaStaging, table.Name, table.Columns, rows, batchSize)
}

func (l *Loader) writeSummary(summary *models.IngestionSummary) error {
	return models.WriteJSON(filepath.Join(l.stagingDir, SummaryFile), summary)
}
