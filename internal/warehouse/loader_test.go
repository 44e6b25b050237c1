package warehouse

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"ecommerce-etl/internal/models"
	"ecommerce-etl/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildDateDimension(t *testing.T) {
	rows := BuildDateDimension(day(2024, 2, 27), day(2024, 3, 2))
	require.Len(t, rows, 5)

	assert.Equal(t, 20240227, rows[0].DateKey)
	assert.Equal(t, 20240229, rows[2].DateKey)
	assert.Equal(t, "February", rows[2].MonthName)
	assert.Equal(t, "Thursday", rows[2].DayName)
	assert.Equal(t, 1, rows[2].Quarter)
	assert.False(t, rows[2].IsWeekend)

	sat := rows[4]
	assert.Equal(t, 20240302, sat.DateKey)
	assert.Equal(t, "Saturday", sat.DayName)
	assert.True(t, sat.IsWeekend)
	for _, r := range rows {
		assert.False(t, r.IsHoliday)
	}
}

func TestBuildDateDimensionISOWeekAtYearEdge(t *testing.T) {
	rows := BuildDateDimension(day(2024, 12, 29), day(2025, 1, 1))
	require.Len(t, rows, 4)

	assert.Equal(t, 52, rows[0].WeekOfYear)
	assert.Equal(t, 1, rows[1].WeekOfYear)
	assert.Equal(t, 4, rows[1].Quarter)
	assert.Equal(t, 2025, rows[3].Year)
	assert.Equal(t, 1, rows[3].WeekOfYear)
}

func TestBuildDateDimensionSingleDayAndInverted(t *testing.T) {
	assert.Len(t, BuildDateDimension(day(2024, 7, 4), day(2024, 7, 4)), 1)
	assert.Empty(t, BuildDateDimension(day(2024, 7, 5), day(2024, 7, 4)))
}

func newTestLoader(t *testing.T) (*Loader, sqlmock.Sqlmock, string) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dir := t.TempDir()
	return NewLoader(store.NewFromDB(sqlx.NewDb(db, "postgres")), dir, 1000, zap.NewNop()), mock, dir
}

func expectRebuild(mock sqlmock.Sqlmock, items, facts int64) {
	mock.ExpectExec(regexp.QuoteMeta(`TRUNCATE TABLE "warehouse"."fact_sales"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(transaction_date)")).WillReturnRows(
		sqlmock.NewRows([]string{"min_date", "max_date"}).AddRow(day(2024, 1, 1), day(2024, 1, 3)))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "warehouse"."dim_date"`)).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT payment_method")).WillReturnRows(
		sqlmock.NewRows([]string{"payment_method"}).AddRow(models.PaymentCashOnDelivery).AddRow(models.PaymentUPI))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "warehouse"."dim_payment_method"`)).
		WithArgs(models.PaymentCashOnDelivery, models.PaymentTypeOffline, models.PaymentUPI, models.PaymentTypeOnline).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO warehouse.dim_customers")).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO warehouse.dim_products")).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "production"."transaction_items"`)).WillReturnRows(
		sqlmock.NewRows([]string{"count"}).AddRow(items))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO warehouse.fact_sales")).WillReturnResult(sqlmock.NewResult(0, facts))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO warehouse.agg_daily_sales")).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO warehouse.agg_product_performance")).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO warehouse.agg_customer_metrics")).WillReturnResult(sqlmock.NewResult(0, 4))
}

func TestRunRebuildsStarSchema(t *testing.T) {
	l, mock, dir := newTestLoader(t)

	mock.ExpectBegin()
	expectRebuild(mock, 10, 10)
	mock.ExpectCommit()

	summary, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, int64(3), summary.TablesLoaded["dim_date"])
	assert.Equal(t, int64(10), summary.TablesLoaded["fact_sales"])
	assert.Equal(t, int64(3), summary.TablesLoaded["agg_daily_sales"])
	assert.Zero(t, summary.FactRowsExcluded)

	var onDisk models.WarehouseSummary
	require.NoError(t, models.ReadJSON(filepath.Join(dir, SummaryFile), &onDisk))
	assert.Equal(t, int64(10), onDisk.SourceItems)
}

func TestRunReportsExcludedFactRows(t *testing.T) {
	l, mock, _ := newTestLoader(t)

	mock.ExpectBegin()
	expectRebuild(mock, 10, 7)
	mock.ExpectCommit()

	summary, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.FactRowsExcluded)
}

func TestRunTwiceYieldsSameCounts(t *testing.T) {
	l, mock, _ := newTestLoader(t)
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		expectRebuild(mock, 10, 10)
		mock.ExpectCommit()
	}

	first, err := l.Run(context.Background())
	require.NoError(t, err)
	second, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.TablesLoaded, second.TablesLoaded)
}

func TestRunRollsBackWhenFactLoadFails(t *testing.T) {
	l, mock, dir := newTestLoader(t)

	mock.ExpectBegin()
	mock.ExpectExec("TRUNCATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MIN(transaction_date)")).WillReturnRows(
		sqlmock.NewRows([]string{"min_date", "max_date"}).AddRow(nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT payment_method")).WillReturnRows(
		sqlmock.NewRows([]string{"payment_method"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO warehouse.dim_customers")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO warehouse.dim_products")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO warehouse.fact_sales")).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := l.Run(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoFileExists(t, filepath.Join(dir, SummaryFile))
}
