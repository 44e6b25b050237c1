package store

import (
	"context"

	"ecommerce-etl/internal/models"

	"github.com/jmoiron/sqlx"
)

// TruncateProduction empties the production tables child-first with CASCADE
func TruncateProduction(ctx context.Context, ext sqlx.ExtContext) error {
	return Truncate(ctx, ext, models.SchemaProduction, models.TruncateOrder, "CASCADE")
}

// ProductionCounts returns the row count of every production table
func ProductionCounts(ctx context.Context, q sqlx.QueryerContext) (map[string]int64, error) {
	counts := make(map[string]int64, len(models.SourceTables))
	for _, t := range models.SourceTables {
		n, err := CountRows(ctx, q, models.SchemaProduction, t.Name)
		if err != nil {
			return nil, err
		}
		counts[t.Name] = n
	}
	return counts, nil
}
