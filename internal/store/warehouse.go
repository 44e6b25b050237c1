package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ecommerce-etl/internal/models"

	"github.com/jmoiron/sqlx"
)

const (
	selectTransactionDateRange = `
		SELECT MIN(transaction_date) AS min_date, MAX(transaction_date) AS max_date
		FROM production.transactions`

	selectPaymentMethods = `
		SELECT DISTINCT payment_method
		FROM production.transactions
		ORDER BY payment_method`

	insertDimCustomers = `
		INSERT INTO warehouse.dim_customers
		    (customer_id, full_name, email, city, state, country, age_group,
		     registration_date, effective_date, end_date, is_current)
		SELECT customer_id, first_name || ' ' || last_name, email, city, state, country, age_group,
		       registration_date, CURRENT_DATE, NULL, TRUE
		FROM production.customers`

	insertDimProducts = `
		INSERT INTO warehouse.dim_products
		    (product_id, product_name, category, sub_category, brand,
		     price_range, effective_date, end_date, is_current)
		SELECT product_id, product_name, category, sub_category, brand,
		       price_category, CURRENT_DATE, NULL, TRUE
		FROM production.products`

	insertFactSales = `
		INSERT INTO warehouse.fact_sales
		    (date_key, customer_key, product_key, payment_method_key, transaction_id,
		     quantity, unit_price, discount_amount, line_total, profit, created_at)
		SELECT dd.date_key, dc.customer_key, dp.product_key, dpm.payment_method_key, ti.transaction_id,
		       ti.quantity, ti.unit_price,
		       ROUND(ti.unit_price * ti.quantity * (ti.discount_percentage / 100), 2),
		       ti.line_total,
		       ti.line_total - (p.cost * ti.quantity),
		       CURRENT_TIMESTAMP
		FROM production.transaction_items ti
		JOIN production.transactions t ON ti.transaction_id = t.transaction_id
		JOIN production.products p ON ti.product_id = p.product_id
		JOIN warehouse.dim_date dd ON dd.date_key = CAST(TO_CHAR(t.transaction_date, 'YYYYMMDD') AS INTEGER)
		JOIN warehouse.dim_customers dc ON dc.customer_id = t.customer_id AND dc.is_current = TRUE
		JOIN warehouse.dim_products dp ON dp.product_id = ti.product_id AND dp.is_current = TRUE
		JOIN warehouse.dim_payment_method dpm ON dpm.payment_method_name = t.payment_method`

	insertAggDailySales = `
		INSERT INTO warehouse.agg_daily_sales
		    (date_key, total_transactions, total_revenue, total_profit, unique_customers)
		SELECT date_key, COUNT(DISTINCT transaction_id), SUM(line_total), SUM(profit), COUNT(DISTINCT customer_key)
		FROM warehouse.fact_sales
		GROUP BY date_key`

	insertAggProductPerformance = `
		INSERT INTO warehouse.agg_product_performance
		    (product_key, units_sold, total_revenue, total_profit, transaction_count)
		SELECT product_key, SUM(quantity), SUM(line_total), SUM(profit), COUNT(DISTINCT transaction_id)
		FROM warehouse.fact_sales
		GROUP BY product_key`

	insertAggCustomerMetrics = `
		INSERT INTO warehouse.agg_customer_metrics
		    (customer_key, total_orders, total_spent, avg_order_value, first_purchase_date_key, last_purchase_date_key)
		SELECT customer_key, COUNT(DISTINCT transaction_id), SUM(line_total),
		       ROUND(SUM(line_total) / NULLIF(COUNT(DISTINCT transaction_id), 0), 2),
		       MIN(date_key), MAX(date_key)
		FROM warehouse.fact_sales
		GROUP BY customer_key`
)

// TruncateWarehouse empties every warehouse table in one statement, facts and aggregates first
func TruncateWarehouse(ctx context.Context, ext sqlx.ExtContext) error {
	return Truncate(ctx, ext, models.SchemaWarehouse, models.WarehouseTables, "RESTART IDENTITY")
}

// TransactionDateRange returns the first and last production transaction date.
// ok is false when production.transactions is empty.
func TransactionDateRange(ctx context.Context, q sqlx.QueryerContext) (first, last time.Time, ok bool, err error) {
	var row struct {
		MinDate sql.NullTime `db:"min_date"`
		MaxDate sql.NullTime `db:"max_date"`
	}
	if err := sqlx.GetContext(ctx, q, &row, selectTransactionDateRange); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("failed to read transaction date range: %w", err)
	}
	if !row.MinDate.Valid || !row.MaxDate.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	return row.MinDate.Time, row.MaxDate.Time, true, nil
}

// InsertDimDate writes the date dimension
func InsertDimDate(ctx context.Context, ext sqlx.ExtContext, rows []models.DimDate, batchSize int) (int64, error) {
	return InsertBatches(ctx, ext, models.SchemaWarehouse, "dim_date", models.DimDateColumns, rows, batchSize)
}

func execCount(ctx context.Context, ext sqlx.ExtContext, what, query string) (int64, error) {
	res, err := ext.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count %s rows: %w", what, err)
	}
	return n, nil
}

// LoadDimPaymentMethod inserts each distinct production payment method once
func LoadDimPaymentMethod(ctx context.Context, ext sqlx.ExtContext) (int64, error) {
	var methods []string
	if err := sqlx.SelectContext(ctx, ext, &methods, selectPaymentMethods); err != nil {
		return 0, fmt.Errorf("failed to read payment methods: %w", err)
	}
	rows := make([]models.DimPaymentMethod, len(methods))
	for i, m := range methods {
		rows[i] = models.NewDimPaymentMethod(m)
	}
	return InsertBatches(ctx, ext, models.SchemaWarehouse, "dim_payment_method", models.DimPaymentMethodColumns, rows, len(rows))
}

// LoadDimCustomers inserts one current row per production customer
func LoadDimCustomers(ctx context.Context, ext sqlx.ExtContext) (int64, error) {
	return execCount(ctx, ext, "dim_customers", insertDimCustomers)
}

// LoadDimProducts inserts one current row per production product
func LoadDimProducts(ctx context.Context, ext sqlx.ExtContext) (int64, error) {
	return execCount(ctx, ext, "dim_products", insertDimProducts)
}

// LoadFactSales joins items to every dimension; items with an unresolved dimension are not inserted
func LoadFactSales(ctx context.Context, ext sqlx.ExtContext) (int64, error) {
	return execCount(ctx, ext, "fact_sales", insertFactSales)
}

// LoadAggregates rebuilds the three aggregate tables from fact_sales
func LoadAggregates(ctx context.Context, ext sqlx.ExtContext) (map[string]int64, error) {
	out := make(map[string]int64, 3)
	for _, agg := range []struct {
		table string
		query string
	}{
		{"agg_daily_sales", insertAggDailySales},
		{"agg_product_performance", insertAggProductPerformance},
		{"agg_customer_metrics", insertAggCustomerMetrics},
	} {
		n, err := execCount(ctx, ext, agg.table, agg.query)
		if err != nil {
			return nil, err
		}
		out[agg.table] = n
	}
	return out, nil
}

// WarehouseCounts returns the row count of every warehouse table
func WarehouseCounts(ctx context.Context, q sqlx.QueryerContext) (map[string]int64, error) {
	counts := make(map[string]int64, len(models.WarehouseTables))
	for _, t := range models.WarehouseTables {
		n, err := CountRows(ctx, q, models.SchemaWarehouse, t)
		if err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, nil
}
