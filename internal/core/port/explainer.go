package port

import (
	"context"

	"github.com/guillermoBallester/tollgate/internal/core/domain"
)

// LookupExplainer returns the database's plan for a lookup without running it.
type LookupExplainer interface {
	Explain(ctx context.Context, spec domain.LookupSpec) ([]string, error)
}
