package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// MaxBindParams is the most placeholders Postgres accepts in one statement
const MaxBindParams = 65535

// BatchRows returns how many rows of width columns fit in one insert, at
// most batchSize and never fewer than one
func BatchRows(batchSize, columns int) int {
	if batchSize < 1 {
		batchSize = 1
	}
	if columns > 0 && batchSize*columns > MaxBindParams {
		batchSize = max(MaxBindParams/columns, 1)
	}
	return batchSize
}

func quoteTable(schema, table string) string {
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
}

func insertStatement(schema, table string, columns []string) string {
	quoted := make([]string, len(columns))
	named := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pq.QuoteIdentifier(c)
		named[i] = ":" + c
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteTable(schema, table), strings.Join(quoted, ", "), strings.Join(named, ", "))
}

// InsertBatches writes rows into schema.table using exactly the given columns,
// up to batchSize rows per statement. It returns the number of rows written.
func InsertBatches[T any](ctx context.Context, ext sqlx.ExtContext, schema, table string, columns []string, rows []T, batchSize int) (int64, error) {
	batchSize = BatchRows(batchSize, len(columns))
	query := insertStatement(schema, table, columns)

	var written int64
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		res, err := sqlx.NamedExecContext(ctx, ext, query, rows[start:end])
		if err != nil {
			return written, fmt.Errorf("failed to insert rows %d-%d into %s.%s: %w", start, end-1, schema, table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = int64(end - start)
		}
		written += n
	}
	return written, nil
}

// Truncate empties the given tables of one schema in a single statement
func Truncate(ctx context.Context, ext sqlx.ExtContext, schema string, tables []string, suffix string) error {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = quoteTable(schema, t)
	}
	query := "TRUNCATE TABLE " + strings.Join(names, ", ")
	if suffix != "" {
		query += " " + suffix
	}
	if _, err := ext.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate %s tables: %w", schema, err)
	}
	return nil
}

// CountRows returns SELECT COUNT(*) of schema.table
func CountRows(ctx context.Context, q sqlx.QueryerContext, schema, table string) (int64, error) {
	var n int64
	if err := sqlx.GetContext(ctx, q, &n, "SELECT COUNT(*) FROM "+quoteTable(schema, table)); err != nil {
		return 0, fmt.Errorf("failed to count %s.%s: %w", schema, table, err)
	}
	return n, nil
}
