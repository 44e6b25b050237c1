package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ecommerce-etl/config"
	"ecommerce-etl/internal/models"
	"ecommerce-etl/internal/pipeline"
	"ecommerce-etl/internal/store"
	"ecommerce-etl/internal/testhelpers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		Generation: config.GenerationConfig{
			Customers:    100,
			Products:     50,
			Transactions: 500,
			StartDate:    "2024-01-01",
			EndDate:      "2024-06-30",
			Seed:         42,
		},
		Pipeline: config.PipelineConfig{
			BatchSize:      200,
			MaxRetries:     1,
			BackoffSeconds: []int{0},
			StepTimeout:    5 * time.Minute,
		},
		Paths: config.PathsConfig{
			RawDir:       filepath.Join(root, "raw"),
			StagingDir:   filepath.Join(root, "staging"),
			ProcessedDir: filepath.Join(root, "processed"),
			AnalyticsDir: filepath.Join(root, "processed", "analytics"),
			LogDir:       filepath.Join(root, "logs"),
		},
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	cfg := testConfig(t)
	ctx := context.Background()
	c := pipeline.NewComponents(cfg, tdb.Store, zap.NewNop())

	meta, err := c.Generator.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500, meta.RecordCounts[models.TableTransactions])

	ingested, err := c.Ingest.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), ingested.TablesLoaded[models.TableCustomers].RowsLoaded)

	qr, err := c.Quality.Run(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, qr.QualityGrade)

	transformed, err := c.Transformer.Run(ctx)
	require.NoError(t, err)

	db := tdb.Store.GetDB()
	var duplicateEmails int
	require.NoError(t, db.GetContext(ctx, &duplicateEmails, `
		SELECT COUNT(*) FROM (
			SELECT email FROM production.customers GROUP BY email HAVING COUNT(*) > 1
		) d`))
	assert.Zero(t, duplicateEmails)

	var mismatched int
	require.NoError(t, db.GetContext(ctx, &mismatched, `
		SELECT COUNT(*) FROM production.transactions t
		JOIN (
			SELECT transaction_id, SUM(line_total) AS total
			FROM production.transaction_items GROUP BY transaction_id
		) i ON i.transaction_id = t.transaction_id
		WHERE t.total_amount <> i.total`))
	assert.Zero(t, mismatched)

	items := transformed.RecordsProcessed[models.TableTransactionItems]
	generatedItems := meta.RecordCounts[models.TableTransactionItems]
	assert.Equal(t, generatedItems, items.RowsRead)

	first, err := c.Warehouse.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, first.FactRowsExcluded)
	assert.Equal(t, int64(generatedItems-items.RowsDropped), first.TablesLoaded["fact_sales"])

	var factRows int64
	require.NoError(t, db.GetContext(ctx, &factRows, `SELECT COUNT(*) FROM warehouse.fact_sales`))
	assert.Equal(t, int64(generatedItems-items.RowsDropped), factRows)

	var itemTotal, factTotal decimal.Decimal
	require.NoError(t, db.GetContext(ctx, &itemTotal, `SELECT COALESCE(SUM(line_total), 0) FROM production.transaction_items`))
	require.NoError(t, db.GetContext(ctx, &factTotal, `SELECT COALESCE(SUM(line_total), 0) FROM warehouse.fact_sales`))
	assert.True(t, itemTotal.Equal(factTotal), "fact total %s != item total %s", factTotal, itemTotal)

	second, err := c.Warehouse.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.TablesLoaded, second.TablesLoaded)

	counts, err := store.WarehouseCounts(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, first.TablesLoaded["fact_sales"], counts["fact_sales"])

	summary, err := c.Analytics.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, summary.QueriesExecuted)
}

func TestOrchestratorRunsAllSteps(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	cfg := testConfig(t)
	logger := zap.NewNop()

	c := pipeline.NewComponents(cfg, tdb.Store, logger)
	o := pipeline.New(c.Steps(), pipeline.OptionsFromConfig(cfg), logger)

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RunSuccess, report.Status)
	require.Len(t, report.StepsExecuted, len(pipeline.StepNames))
	for i, name := range pipeline.StepNames {
		assert.Equal(t, name, report.StepsExecuted[i].Name)
		assert.Equal(t, models.StepSuccess, report.StepsExecuted[i].Status)
	}

	_, err = os.Stat(filepath.Join(cfg.Paths.ProcessedDir, pipeline.ReportFile))
	assert.NoError(t, err)
}
