package port

import "github.com/guillermoBallester/tollgate/internal/core/domain"

// RuleSource resolves threshold rules by name.
type RuleSource interface {
	Rule(name string) (domain.Rule, bool)
	Rules() []domain.Rule
}
