package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

// firstValue returns the first column of the first row. Remaining rows are
// not read.
func firstValue(rows pgx.Rows) (value any, found bool, err error) {
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, fmt.Errorf("iterating rows: %w", err)
		}
		return nil, false, nil
	}

	vals, err := rows.Values()
	if err != nil {
		return nil, false, fmt.Errorf("reading row values: %w", err)
	}
	if len(vals) == 0 {
		return nil, false, fmt.Errorf("lookup returned no columns")
	}
	return vals[0], true, nil
}
