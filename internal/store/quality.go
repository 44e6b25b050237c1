package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	countNullProducts = `
		SELECT COUNT(*) FROM production.products
		WHERE product_name IS NULL OR category IS NULL OR price IS NULL`

	countDuplicateEmails = `
		SELECT COUNT(*) FROM (
		    SELECT email FROM production.customers
		    GROUP BY email HAVING COUNT(*) > 1
		) dup`

	countOrphanItems = `
		SELECT COUNT(*) FROM production.transaction_items ti
		LEFT JOIN production.transactions t ON ti.transaction_id = t.transaction_id
		WHERE t.transaction_id IS NULL`

	countLineTotalMismatches = `
		SELECT COUNT(*) FROM production.transaction_items
		WHERE ABS(line_total - (quantity * unit_price * (1 - discount_percentage / 100))) > 0.01`
)

// QualityCounts holds the raw violation counts the quality gate scores
type QualityCounts struct {
	Customers         int64
	Products          int64
	Transactions      int64
	Items             int64
	NullProducts      int64
	DuplicateEmails   int64
	OrphanItems       int64
	LineTotalMismatch int64
}

// ReadQualityCounts runs every quality query against production
func ReadQualityCounts(ctx context.Context, q sqlx.QueryerContext) (QualityCounts, error) {
	var c QualityCounts
	for _, item := range []struct {
		name  string
		query string
		dest  *int64
	}{
		{"customers", "SELECT COUNT(*) FROM production.customers", &c.Customers},
		{"products", "SELECT COUNT(*) FROM production.products", &c.Products},
		{"transactions", "SELECT COUNT(*) FROM production.transactions", &c.Transactions},
		{"items", "SELECT COUNT(*) FROM production.transaction_items", &c.Items},
		{"null products", countNullProducts, &c.NullProducts},
		{"duplicate emails", countDuplicateEmails, &c.DuplicateEmails},
		{"orphan items", countOrphanItems, &c.OrphanItems},
		{"line total mismatches", countLineTotalMismatches, &c.LineTotalMismatch},
	} {
		if err := sqlx.GetContext(ctx, q, item.dest, item.query); err != nil {
			return QualityCounts{}, fmt.Errorf("failed to count %s: %w", item.name, err)
		}
	}
	return c, nil
}
