package rules

import (
	"fmt"
	"strings"

	"github.com/guillermoBallester/tollgate/internal/core/domain"
	"github.com/guillermoBallester/tollgate/internal/core/port"
	"gopkg.in/yaml.v3"
)

// File is the YAML rules document.
//
//	rules:
//	  credit_limit:
//	    table: accounts
//	    schema: public
//	    field: balance
//	    key: id
//	    max: 1000
type File struct {
	Rules map[string]RuleConfig `yaml:"rules"`
}

// RuleConfig is one rule as written in the file.
type RuleConfig struct {
	Description string            `yaml:"description"`
	Table       string            `yaml:"table"`
	Schema      string            `yaml:"schema"`
	Field       string            `yaml:"field"`
	Key         string            `yaml:"key"`
	Max         any               `yaml:"max"`
	KeyValue    any               `yaml:"key_value"`
	MaskKey     domain.MaskType   `yaml:"mask_key,omitempty"`
	Messages    map[string]string `yaml:"messages,omitempty"`
}

// UnmarshalYAML accepts "schema.table" in the table field as shorthand for
// setting both.
//
//	table: billing.accounts   # → schema: billing, table: accounts
func (rc *RuleConfig) UnmarshalYAML(value *yaml.Node) error {
	type alias RuleConfig
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding rule: %w", err)
	}
	*rc = RuleConfig(a)

	if rc.Schema == "" {
		if schema, table, ok := splitQualified(rc.Table); ok {
			rc.Schema, rc.Table = schema, table
		}
	}
	return nil
}

func splitQualified(name string) (schema, table string, ok bool) {
	schema, table, ok = strings.Cut(name, ".")
	if !ok || schema == "" || table == "" {
		return "", "", false
	}
	return schema, table, true
}

var _ port.RuleSource = (*Set)(nil)

// Set is a loaded, validated collection of rules.
type Set struct {
	rules map[string]domain.Rule
}

// NewSet builds a Set from a decoded File.
func NewSet(f File) *Set {
	s := &Set{rules: make(map[string]domain.Rule, len(f.Rules))}
	for name, rc := range f.Rules {
		s.rules[name] = domain.Rule{
			Name:        name,
			Description: rc.Description,
			Table:       rc.Table,
			Schema:      rc.Schema,
			Field:       rc.Field,
			Key:         rc.Key,
			Max:         rc.Max,
			KeyValue:    rc.KeyValue,
			MaskKey:     rc.MaskKey,
			Messages:    rc.Messages,
		}
	}
	return s
}

func (s *Set) Rule(name string) (domain.Rule, bool) {
	r, ok := s.rules[name]
	return r, ok
}

// Rules returns every rule ordered by name.
func (s *Set) Rules() []domain.Rule {
	out := make([]domain.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	domain.SortRules(out)
	return out
}
