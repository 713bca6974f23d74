package port

import (
	"context"

	"github.com/guillermoBallester/tollgate/internal/core/domain"
)

// AuditEntry represents a single threshold check.
type AuditEntry struct {
	Source     string // MCP tool name or "cli"
	Rule       string
	KeyValue   any // already masked
	Value      any
	Outcome    domain.Outcome
	DurationMS int64
	Err        error
}

// CheckAuditor records check audit events.
type CheckAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}
