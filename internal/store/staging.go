package store

import (
	"context"
	"fmt"

	"ecommerce-etl/internal/models"

	"github.com/jmoiron/sqlx"
)

// Staging reads project NULL text to '' and NULL numbers to 0 so that the
// transformer's defaulting and filtering rules see a uniform value.
const (
	selectStagingCustomers = `
		SELECT customer_id, COALESCE(first_name, '') AS first_name, COALESCE(last_name, '') AS last_name,
		       COALESCE(email, '') AS email, COALESCE(phone, '') AS phone, registration_date,
		       COALESCE(city, '') AS city, COALESCE(state, '') AS state, COALESCE(country, '') AS country,
		       COALESCE(age_group, '') AS age_group
		FROM staging.customers
		ORDER BY customer_id`

	selectStagingProducts = `
		SELECT product_id, COALESCE(product_name, '') AS product_name, COALESCE(category, '') AS category,
		       COALESCE(sub_category, '') AS sub_category, COALESCE(price, 0) AS price, COALESCE(cost, 0) AS cost,
		       COALESCE(brand, '') AS brand, COALESCE(stock_quantity, 0) AS stock_quantity,
		       COALESCE(supplier_id, '') AS supplier_id
		FROM staging.products
		ORDER BY product_id`

	selectStagingTransactions = `
		SELECT transaction_id, customer_id, transaction_date, COALESCE(transaction_time::text, '00:00:00') AS transaction_time,
		       COALESCE(payment_method, '') AS payment_method, COALESCE(shipping_address, '') AS shipping_address,
		       COALESCE(total_amount, 0) AS total_amount
		FROM staging.transactions
		ORDER BY transaction_id`

	selectStagingItems = `
		SELECT item_id, transaction_id, product_id, COALESCE(quantity, 0) AS quantity,
		       COALESCE(unit_price, 0) AS unit_price, COALESCE(discount_percentage, 0) AS discount_percentage,
		       COALESCE(line_total, 0) AS line_total
		FROM staging.transaction_items
		ORDER BY item_id`
)

// TruncateStaging empties one staging table
func TruncateStaging(ctx context.Context, ext sqlx.ExtContext, table string) error {
	return Truncate(ctx, ext, models.SchemaStaging, []string{table}, "")
}

// StagingData holds the full contents of the staging schema
type StagingData struct {
	Customers    []models.Customer
	Products     []models.Product
	Transactions []models.Transaction
	Items        []models.TransactionItem
}

// ReadStaging loads all four staging tables
func ReadStaging(ctx context.Context, q sqlx.QueryerContext) (*StagingData, error) {
	data := &StagingData{}
	if err := sqlx.SelectContext(ctx, q, &data.Customers, selectStagingCustomers); err != nil {
		return nil, fmt.Errorf("failed to read staging.customers: %w", err)
	}
	if err := sqlx.SelectContext(ctx, q, &data.Products, selectStagingProducts); err != nil {
		return nil, fmt.Errorf("failed to read staging.products: %w", err)
	}
	if err := sqlx.SelectContext(ctx, q, &data.Transactions, selectStagingTransactions); err != nil {
		return nil, fmt.Errorf("failed to read staging.transactions: %w", err)
	}
	if err := sqlx.SelectContext(ctx, q, &data.Items, selectStagingItems); err != nil {
		return nil, fmt.Errorf("failed to read staging.transaction_items: %w", err)
	}
	return data, nil
}
