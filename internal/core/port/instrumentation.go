package port

import (
	"context"

	"github.com/guillermoBallester/tollgate/internal/core/domain"
)

// Instrumentation records application-level metrics.
type Instrumentation interface {
	RecordLookupDuration(ctx context.Context, ms float64)
	IncrementCheckCount(ctx context.Context, rule string, reason domain.Reason)
	IncrementCheckErrors(ctx context.Context, rule string)
	RecordToolDuration(ctx context.Context, tool string, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) RecordLookupDuration(context.Context, float64)              {}
func (NoopInstrumentation) IncrementCheckCount(context.Context, string, domain.Reason) {}
func (NoopInstrumentation) IncrementCheckErrors(context.Context, string)               {}
func (NoopInstrumentation) RecordToolDuration(context.Context, string, float64)        {}
