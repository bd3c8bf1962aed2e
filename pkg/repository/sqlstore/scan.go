package sqlstore

import (
	"database/sql"
	"fmt"

	"github.com/conduit-lang/scaffold/pkg/repository"
)

// scanRow scans the current row with known column order. Byte slices are
// returned as strings.
func scanRow(rows *sql.Rows, columns []string) (repository.Record, error) {
	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, err
	}

	record := make(repository.Record, len(columns))
	for i, col := range columns {
		if b, ok := values[i].([]byte); ok {
			record[col] = string(b)
			continue
		}
		record[col] = values[i]
	}
	return record, nil
}

// scanRows scans multiple rows into records
func scanRows(rows *sql.Rows) ([]repository.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []repository.Record
	for rows.Next() {
		record, err := scanRow(rows, columns)
		if err != nil {
			return nil, err
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// idToString normalizes key values so ints, int64s and byte slices compare
// equal across drivers
func idToString(id interface{}) string {
	switch v := id.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
