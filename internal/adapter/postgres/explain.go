package postgres

import (
	"context"
	"fmt"

	"github.com/guillermoBallester/tollgate/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

// Explain returns PostgreSQL's plan for the lookup, one line per element.
// The lookup itself is not executed.
func (f *Fetcher) Explain(ctx context.Context, spec domain.LookupSpec) ([]string, error) {
	var plan []string
	err := f.inLookupTx(ctx, spec, func(ctx context.Context, tx pgx.Tx, sql string) error {
		rows, err := tx.Query(ctx, "EXPLAIN "+sql, keyArg(spec.KeyValue))
		if err != nil {
			return fmt.Errorf("explaining lookup: %w", err)
		}
		plan, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("reading plan: %w", err)
		}
		return nil
	})
	return plan, err
}
