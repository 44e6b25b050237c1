package warehouse

import (
	"context"
	"path/filepath"
	"time"

	"ecommerce-etl/internal/models"
	"ecommerce-etl/internal/store"
	"ecommerce-etl/internal/util"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// SummaryFile is written to the processed directory after a successful load
const SummaryFile = "warehouse_summary.json"

// Loader rebuilds the star schema from production
type Loader struct {
	store        *store.Store
	processedDir string
	batchSize    int
	logger       *zap.Logger
	now          func() time.Time
}

// NewLoader creates a warehouse loader
func NewLoader(s *store.Store, processedDir string, batchSize int, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = util.GetLogger()
	}
	return &Loader{
		store:        s,
		processedDir: processedDir,
		batchSize:    batchSize,
		logger:       logger,
		now:          time.Now,
	}
}

// Run truncates and rebuilds every warehouse table in one transaction.
// Items whose dimensions cannot be resolved are left out of fact_sales and
// counted in the summary as fact_rows_excluded.
func (l *Loader) Run(ctx context.Context) (*models.WarehouseSummary, error) {
	ctx, span := util.StartSpan(ctx, "warehouse.Run")
	defer span.End()

	start := l.now()
	summary := &models.WarehouseSummary{
		LoadTimestamp: start,
		TablesLoaded:  make(map[string]int64, len(models.WarehouseTables)),
	}

	err := l.store.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := store.TruncateWarehouse(ctx, tx); err != nil {
			return err
		}

		first, last, ok, err := store.TransactionDateRange(ctx, tx)
		if err != nil {
			return err
		}
		var dates int64
		if ok {
			dates, err = store.InsertDimDate(ctx, tx, BuildDateDimension(first, last), l.batchSize)
			if err != nil {
				return err
			}
		}
		summary.TablesLoaded["dim_date"] = dates

		for _, dim := range []struct {
			table string
			load  func(context.Context, sqlx.ExtContext) (int64, error)
		}{
			{"dim_payment_method", store.LoadDimPaymentMethod},
			{"dim_customers", store.LoadDimCustomers},
			{"dim_products", store.LoadDimProducts},
		} {
			n, err := dim.load(ctx, tx)
			if err != nil {
				return err
			}
			summary.TablesLoaded[dim.table] = n
		}

		items, err := store.CountRows(ctx, tx, models.SchemaProduction, models.TableTransactionItems)
		if err != nil {
			return err
		}
		facts, err := store.LoadFactSales(ctx, tx)
		if err != nil {
			return err
		}
		summary.SourceItems = items
		summary.TablesLoaded["fact_sales"] = facts
		summary.FactRowsExcluded = items - facts

		aggs, err := store.LoadAggregates(ctx, tx)
		if err != nil {
			return err
		}
		for table, n := range aggs {
			summary.TablesLoaded[table] = n
		}
		return nil
	})
	if err != nil {
		l.logger.Error("Warehouse load failed", zap.Error(err))
		return nil, err
	}
	summary.TotalExecutionTimeSeconds = util.Round2(l.now().Sub(start).Seconds())

	util.FactRowsExcluded.Set(float64(summary.FactRowsExcluded))
	for table, n := range summary.TablesLoaded {
		util.RowsLoadedTotal.WithLabelValues(models.SchemaWarehouse, table).Add(float64(n))
	}
	if summary.FactRowsExcluded > 0 {
		l.logger.Warn("Transaction items excluded from fact_sales: unresolved dimension",
			zap.Int64("excluded", summary.FactRowsExcluded),
			zap.Int64("source_items", summary.SourceItems))
	}

	if err := models.WriteJSON(filepath.Join(l.processedDir, SummaryFile), summary); err != nil {
		return summary, err
	}
	l.logger.Info("Warehouse load completed", zap.Any("tables", summary.TablesLoaded))
	return summary, nil
}
