package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrColumnMismatch is returned when a tabular source does not carry exactly the expected columns
var ErrColumnMismatch = errors.New("column set mismatch")

// Schemas of the relational store
const (
	SchemaStaging    = "staging"
	SchemaProduction = "production"
	SchemaWarehouse  = "warehouse"
)

// Table names shared by the raw, staging and production layers
const (
	TableCustomers        = "customers"
	TableProducts         = "products"
	TableTransactions     = "transactions"
	TableTransactionItems = "transaction_items"
)

// Canonical column sets. The raw CSV files, the staging tables and the
// production tables all use these lists; production products additionally
// carry the derived columns.
var (
	CustomerColumns = []string{
		"customer_id", "first_name", "last_name", "email", "phone",
		"registration_date", "city", "state", "country", "age_group",
	}

	ProductColumns = []string{
		"product_id", "product_name", "category", "sub_category", "price",
		"cost", "brand", "stock_quantity", "supplier_id",
	}

	ProductionProductColumns = append(append([]string{}, ProductColumns...), "profit_margin", "price_category")

	TransactionColumns = []string{
		"transaction_id", "customer_id", "transaction_date", "transaction_time",
		"payment_method", "shipping_address", "total_amount",
	}

	TransactionItemColumns = []string{
		"item_id", "transaction_id", "product_id", "quantity", "unit_price",
		"discount_percentage", "line_total",
	}

	DimPaymentMethodColumns = []string{"payment_method_name", "payment_type"}

	DimDateColumns = []string{
		"date_key", "full_date", "year", "quarter", "month", "day",
		"month_name", "day_name", "week_of_year", "is_weekend", "is_holiday",
	}
)

// Table binds a table name to its column set
type Table struct {
	Name    string
	Columns []string
}

// SourceTables lists the four datasets in parent-first load order
var SourceTables = []Table{
	{Name: TableCustomers, Columns: CustomerColumns},
	{Name: TableProducts, Columns: ProductColumns},
	{Name: TableTransactions, Columns: TransactionColumns},
	{Name: TableTransactionItems, Columns: TransactionItemColumns},
}

// TruncateOrder lists the source tables child-first, safe for foreign keys
var TruncateOrder = []string{
	TableTransactionItems,
	TableTransactions,
	TableProducts,
	TableCustomers,
}

// Warehouse tables, facts and aggregates before dimensions
var WarehouseTables = []string{
	"fact_sales",
	"agg_daily_sales",
	"agg_product_performance",
	"agg_customer_metrics",
	"dim_customers",
	"dim_products",
	"dim_payment_method",
	"dim_date",
}

// Qualified returns schema.table
func Qualified(schema, table string) string {
	return schema + "." + table
}

// CheckColumns fails with ErrColumnMismatch unless got equals want in name and order
func CheckColumns(want, got []string) error {
	if len(want) != len(got) {
		return fmt.Errorf("%w: want [%s], got [%s]", ErrColumnMismatch, strings.Join(want, ","), strings.Join(got, ","))
	}
	for i := range want {
		if strings.TrimSpace(got[i]) != want[i] {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrColumnMismatch, i, got[i], want[i])
		}
	}
	return nil
}
