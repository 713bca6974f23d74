package rules

import (
	"fmt"
	"os"

	"github.com/guillermoBallester/tollgate/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a YAML rules file and returns a validated Set.
func LoadFromFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a rules document.
func Parse(data []byte) (*Set, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules YAML: %w", err)
	}

	if err := validate(&f); err != nil {
		return nil, fmt.Errorf("validating rules: %w", err)
	}

	return NewSet(f), nil
}

func validate(f *File) error {
	if len(f.Rules) == 0 {
		return fmt.Errorf("no rules defined")
	}
	for name, rc := range f.Rules {
		if name == "" {
			return fmt.Errorf("rules contains an empty key")
		}
		required := []struct{ field, value string }{
			{"table", rc.Table}, {"field", rc.Field}, {"key", rc.Key},
		}
		for _, r := range required {
			if r.value == "" {
				return fmt.Errorf("rules[%q].%s is required", name, r.field)
			}
		}
		if rc.Max == nil {
			return fmt.Errorf("rules[%q].max is required", name)
		}
		if _, err := domain.TruncateToInt64(rc.Max); err != nil {
			return fmt.Errorf("rules[%q].max: %w", name, err)
		}
		if !rc.MaskKey.Valid() {
			return fmt.Errorf("rules[%q].mask_key: invalid value %q (allowed: redact, hash, partial, null)", name, rc.MaskKey)
		}
		for reason := range rc.Messages {
			if !domain.Reason(reason).Valid() {
				return fmt.Errorf("rules[%q].messages: unknown reason %q (allowed: %s, %s)",
					name, reason, domain.ReasonNoRecordFound, domain.ReasonExceedsMax)
			}
		}
	}
	return nil
}
