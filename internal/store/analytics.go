package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

// ResultSet is a query result rendered as text cells
type ResultSet struct {
	Columns []string
	Rows    [][]string
}

// QueryTable runs a read-only query and renders every cell as text
func QueryTable(ctx context.Context, q sqlx.QueryerContext, query string) (*ResultSet, error) {
	rows, err := q.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = cellText(v)
		}
		rs.Rows = append(rs.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// FactSalesCount returns the number of rows in warehouse.fact_sales
func FactSalesCount(ctx context.Context, q sqlx.QueryerContext) (int64, error) {
	return CountRows(ctx, q, "warehouse", "fact_sales")
}

// LatestFactCreatedAt returns the newest fact_sales.created_at; ok is false when the table is empty
func LatestFactCreatedAt(ctx context.Context, q sqlx.QueryerContext) (time.Time, bool, error) {
	var latest sql.NullTime
	if err := sqlx.GetContext(ctx, q, &latest, "SELECT MAX(created_at) FROM warehouse.fact_sales"); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read fact_sales freshness: %w", err)
	}
	return latest.Time, latest.Valid, nil
}
