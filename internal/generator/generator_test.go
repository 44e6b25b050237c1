package generator

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ecommerce-etl/config"
	"ecommerce-etl/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() config.GenerationConfig {
	return config.GenerationConfig{
		Customers:    100,
		Products:     50,
		Transactions: 500,
		StartDate:    "2024-01-01",
		EndDate:      "2024-12-31",
		Seed:         42,
	}
}

func newTestGenerator(t *testing.T, cfg config.GenerationConfig) *Generator {
	g := New(cfg, t.TempDir(), zap.NewNop())
	g.now = func() time.Time { return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC) }
	return g
}

func TestGenerateCounts(t *testing.T) {
	d, err := newTestGenerator(t, testConfig()).Generate()
	require.NoError(t, err)

	assert.Len(t, d.Customers, 100)
	assert.Len(t, d.Products, 50)
	assert.Len(t, d.Transactions, 500)
	assert.GreaterOrEqual(t, len(d.Items), 500)
	assert.LessOrEqual(t, len(d.Items), 500*maxItemsPerTxn)
}

func TestGeneratedEmailsAreUnique(t *testing.T) {
	d, err := newTestGenerator(t, testConfig()).Generate()
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, c := range d.Customers {
		key := strings.ToLower(c.Email)
		assert.False(t, seen[key], "duplicate email %s", c.Email)
		seen[key] = true
	}
}

func TestTransactionTotalsEqualSumOfLines(t *testing.T) {
	d, err := newTestGenerator(t, testConfig()).Generate()
	require.NoError(t, err)

	sums := map[string]decimal.Decimal{}
	for _, it := range d.Items {
		sums[it.TransactionID] = sums[it.TransactionID].Add(it.LineTotal)
		assert.True(t, it.LineTotalConsistent(), "item %s", it.ItemID)
		assert.False(t, it.LineTotal.IsNegative())
	}
	for _, txn := range d.Transactions {
		assert.True(t, sums[txn.TransactionID].Equal(txn.TotalAmount),
			"%s: total %s, lines %s", txn.TransactionID, txn.TotalAmount, sums[txn.TransactionID])
	}
}

func TestReferentialIntegrity(t *testing.T) {
	d, err := newTestGenerator(t, testConfig()).Generate()
	require.NoError(t, err)

	assert.True(t, CheckIntegrity(d).Passed())
}

func TestProductsRespectPricingRules(t *testing.T) {
	d, err := newTestGenerator(t, testConfig()).Generate()
	require.NoError(t, err)

	for _, p := range d.Products {
		assert.True(t, p.Price.GreaterThanOrEqual(decimal.NewFromInt(minPrice)), p.ProductID)
		assert.True(t, p.Price.LessThanOrEqual(decimal.NewFromInt(maxPrice)), p.ProductID)
		assert.True(t, p.Cost.LessThanOrEqual(p.Price), p.ProductID)
		assert.Contains(t, subCategories[p.Category], p.SubCategory)
	}
}

func TestTransactionDatesWithinWindow(t *testing.T) {
	cfg := testConfig()
	d, err := newTestGenerator(t, cfg).Generate()
	require.NoError(t, err)

	start, end, err := cfg.DateRange()
	require.NoError(t, err)
	for _, txn := range d.Transactions {
		assert.False(t, txn.TransactionDate.Before(start), txn.TransactionID)
		assert.False(t, txn.TransactionDate.After(end), txn.TransactionID)
		assert.Contains(t, models.PaymentMethods, txn.PaymentMethod)
	}
}

func TestSeedMakesGenerationDeterministic(t *testing.T) {
	a, err := newTestGenerator(t, testConfig()).Generate()
	require.NoError(t, err)
	b, err := newTestGenerator(t, testConfig()).Generate()
	require.NoError(t, err)

	assert.Equal(t, a.Customers[0].Email, b.Customers[0].Email)
	assert.Equal(t, len(a.Items), len(b.Items))
	assert.True(t, a.Transactions[10].TotalAmount.Equal(b.Transactions[10].TotalAmount))
}

func TestRepeatedRunsWithSeedWriteSameDataset(t *testing.T) {
	g := newTestGenerator(t, testConfig())

	first, err := g.Generate()
	require.NoError(t, err)
	second, err := g.Generate()
	require.NoError(t, err)

	assert.Equal(t, first.Customers, second.Customers)
	require.Equal(t, len(first.Items), len(second.Items))
	for i := range first.Items {
		assert.Equal(t, first.Items[i].ProductID, second.Items[i].ProductID)
		assert.True(t, first.Items[i].LineTotal.Equal(second.Items[i].LineTotal), first.Items[i].ItemID)
	}
}

func TestRunStopsWritingOnceCancelled(t *testing.T) {
	g := newTestGenerator(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	meta, err := g.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, meta)
	assert.NoFileExists(t, filepath.Join(g.rawDir, "customers.csv"))
	assert.NoFileExists(t, filepath.Join(g.rawDir, MetadataFile))
}

func TestCheckIntegrityFindsOrphans(t *testing.T) {
	d := &Dataset{
		Customers:    []models.Customer{{CustomerID: "CUST0001", Email: "a@x.io"}, {CustomerID: "CUST0002", Email: "A@x.io"}},
		Products:     []models.Product{{ProductID: "PROD0001"}},
		Transactions: []models.Transaction{{TransactionID: "TXN00001", CustomerID: "CUST9999", TotalAmount: decimal.NewFromInt(5)}},
		Items: []models.TransactionItem{
			{ItemID: "ITEM00001", TransactionID: "TXN00001", ProductID: "PROD9999", LineTotal: decimal.NewFromInt(4)},
			{ItemID: "ITEM00002", TransactionID: "TXN99999", ProductID: "PROD0001", LineTotal: decimal.NewFromInt(1)},
		},
	}

	got := CheckIntegrity(d)
	assert.Equal(t, models.GenerationIntegrity{
		OrphanTransactions:    1,
		OrphanItemTransaction: 1,
		OrphanItemProduct:     1,
		TotalMismatches:       1,
		LineTotalMismatches:   2,
		DuplicateEmails:       1,
	}, got)
}

func TestRunWritesCSVAndMetadata(t *testing.T) {
	g := newTestGenerator(t, testConfig())

	meta, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, meta.RecordCounts[models.TableCustomers])
	assert.True(t, meta.IntegrityChecks.Passed())

	customers, err := models.ReadCSV(filepath.Join(g.rawDir, "customers.csv"), models.CustomerColumns, models.ParseCustomer)
	require.NoError(t, err)
	assert.Len(t, customers, 100)

	items, err := models.ReadCSV(filepath.Join(g.rawDir, "transaction_items.csv"), models.TransactionItemColumns, models.ParseTransactionItem)
	require.NoError(t, err)
	assert.Equal(t, meta.RecordCounts[models.TableTransactionItems], len(items))

	var onDisk models.GenerationMetadata
	require.NoError(t, models.ReadJSON(filepath.Join(g.rawDir, MetadataFile), &onDisk))
	assert.Equal(t, int64(42), onDisk.Seed)
}

func TestGenerateRejectsInvertedDates(t *testing.T) {
	cfg := testConfig()
	cfg.StartDate, cfg.EndDate = cfg.EndDate, cfg.StartDate

	_, err := newTestGenerator(t, cfg).Generate()
	assert.Error(t, err)
}
