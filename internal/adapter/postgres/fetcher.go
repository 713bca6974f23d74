package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/guillermoBallester/tollgate/internal/core/domain"
	"github.com/guillermoBallester/tollgate/internal/core/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	_ domain.RecordFetcher = (*Fetcher)(nil)
	_ port.LookupExplainer = (*Fetcher)(nil)
)

// Fetcher runs threshold lookups against PostgreSQL.
type Fetcher struct {
	pool         *pgxpool.Pool
	guard        port.StatementValidator
	queryTimeout time.Duration
}

// NewFetcher returns a Fetcher. guard may be nil to skip statement checks.
func NewFetcher(pool *pgxpool.Pool, guard port.StatementValidator, queryTimeout time.Duration) *Fetcher {
	return &Fetcher{
		pool:         pool,
		guard:        guard,
		queryTimeout: queryTimeout,
	}
}

// Fetch executes the lookup and returns the looked-up field of the first
// matching row.
func (f *Fetcher) Fetch(ctx context.Context, spec domain.LookupSpec) (domain.LookupResult, error) {
	var result domain.LookupResult
	err := f.inLookupTx(ctx, spec, func(ctx context.Context, tx pgx.Tx, sql string) error {
		rows, err := tx.Query(ctx, sql, keyArg(spec.KeyValue))
		if err != nil {
			return fmt.Errorf("executing lookup: %w", err)
		}
		value, found, err := firstValue(rows)
		if err != nil {
			return err
		}
		if found {
			result = domain.Found(value)
		}
		return nil
	})
	return result, err
}

// inLookupTx renders and checks the lookup SQL, then runs fn inside a
// read-only transaction bounded by the query timeout.
func (f *Fetcher) inLookupTx(ctx context.Context, spec domain.LookupSpec, fn func(context.Context, pgx.Tx, string) error) error {
	if f == nil || f.pool == nil {
		return domain.ErrNoAdapter
	}

	sql := LookupSQL(spec)
	if f.guard != nil {
		if err := f.guard.Validate(sql); err != nil {
			return fmt.Errorf("rejected lookup: %w", err)
		}
	}

	if f.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.queryTimeout)
		defer cancel()
	}

	tx, err := f.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Enforce the timeout server-side too, so PostgreSQL cancels the lookup
	// even if the client goes away. SET LOCAL scopes it to this transaction.
	if f.queryTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%d'", f.queryTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("setting statement timeout: %w", err)
		}
	}

	if err := fn(ctx, tx, sql); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
