package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"ecommerce-etl/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewFromDB(sqlx.NewDb(db, "postgres")), mock
}

func TestInTxCommitsOnSuccess(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`TRUNCATE TABLE "staging"."customers"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := s.InTx(context.Background(), func(tx *sqlx.Tx) error {
		return TruncateStaging(context.Background(), tx, models.TableCustomers)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.InTx(context.Background(), func(tx *sqlx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaRetriesUntilReachable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	s := NewFromDB(sqlx.NewDb(db, "postgres"))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing()

	ctx := context.Background()
	err = s.EnsureSchema(ctx, "", zap.NewNop())
	assert.ErrorContains(t, err, "connection refused")

	require.NoError(t, s.EnsureSchema(ctx, "", zap.NewNop()))
	require.NoError(t, s.EnsureSchema(ctx, "", zap.NewNop()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaNeedsURLToMigrate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	err = NewFromDB(sqlx.NewDb(db, "postgres")).EnsureSchema(context.Background(), "migrations", zap.NewNop())
	assert.Error(t, err)
}

func TestInsertBatchesSplitsRows(t *testing.T) {
	s, mock := newMockStore(t)
	items := make([]models.TransactionItem, 5)
	for i := range items {
		items[i] = models.TransactionItem{
			ItemID:             fmt.Sprintf("ITEM%05d", i+1),
			TransactionID:      "TXN00001",
			ProductID:          "PROD0001",
			Quantity:           1,
			UnitPrice:          decimal.NewFromInt(10),
			DiscountPercentage: decimal.Zero,
			LineTotal:          decimal.NewFromInt(10),
		}
	}

	insert := regexp.QuoteMeta(`INSERT INTO "staging"."transaction_items" ("item_id", "transaction_id"`)
	mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := InsertBatches(context.Background(), s.GetDB(), models.SchemaStaging, models.TableTransactionItems,
		models.TransactionItemColumns, items, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRowsStaysUnderBindLimit(t *testing.T) {
	cases := []struct {
		name    string
		batch   int
		columns int
		want    int
	}{
		{"default batch", 1000, 11, 1000},
		{"zero batch", 0, 11, 1},
		{"dim_date at 10000", 10000, len(models.DimDateColumns), MaxBindParams / len(models.DimDateColumns)},
		{"exact fit", MaxBindParams / 5, 5, MaxBindParams / 5},
		{"wider than limit", 10, MaxBindParams + 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := BatchRows(tc.batch, tc.columns)
			assert.Equal(t, tc.want, got)
			if tc.columns <= MaxBindParams {
				assert.LessOrEqual(t, got*tc.columns, MaxBindParams)
			}
		})
	}
}

func TestInsertBatchesSkipsEmptyInput(t *testing.T) {
	s, mock := newMockStore(t)

	n, err := InsertBatches(context.Background(), s.GetDB(), models.SchemaStaging, models.TableCustomers,
		models.CustomerColumns, []models.Customer{}, 100)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTruncateProductionIsChildFirstWithCascade(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`TRUNCATE TABLE "production"."transaction_items", "production"."transactions", "production"."products", "production"."customers" CASCADE`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, TruncateProduction(context.Background(), s.GetDB()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTruncateWarehouseFactsBeforeDimensions(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`TRUNCATE TABLE "warehouse"."fact_sales", "warehouse"."agg_daily_sales", "warehouse"."agg_product_performance", "warehouse"."agg_customer_metrics", "warehouse"."dim_customers", "warehouse"."dim_products", "warehouse"."dim_payment_method", "warehouse"."dim_date" RESTART IDENTITY`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, TruncateWarehouse(context.Background(), s.GetDB()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionDateRangeEmptyProduction(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT MIN\\(transaction_date\\)").
		WillReturnRows(sqlmock.NewRows([]string{"min_date", "max_date"}).AddRow(nil, nil))

	_, _, ok, err := TransactionDateRange(context.Background(), s.GetDB())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueryTableRendersCells(t *testing.T) {
	s, mock := newMockStore(t)

	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"day", "revenue", "orders", "note"}).
			AddRow(day, []byte("1234.50"), int64(7), nil))

	rs, err := QueryTable(context.Background(), s.GetDB(), "SELECT day, revenue, orders, note FROM x")
	require.NoError(t, err)
	assert.Equal(t, []string{"day", "revenue", "orders", "note"}, rs.Columns)
	assert.Equal(t, [][]string{{"2024-03-05", "1234.50", "7", ""}}, rs.Rows)
}

func TestReadQualityCounts(t *testing.T) {
	s, mock := newMockStore(t)

	for _, n := range []int64{10, 5, 20, 40, 1, 0, 2, 3} {
		mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(n))
	}

	c, err := ReadQualityCounts(context.Background(), s.GetDB())
	require.NoError(t, err)
	assert.Equal(t, QualityCounts{
		Customers: 10, Products: 5, Transactions: 20, Items: 40,
		NullProducts: 1, DuplicateEmails: 0, OrphanItems: 2, LineTotalMismatch: 3,
	}, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}
