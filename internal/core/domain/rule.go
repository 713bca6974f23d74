package domain

import "sort"

// Rule is a named threshold check. KeyValue is an optional default that a
// caller may override per check.
type Rule struct {
	Name        string
	Description string
	Table       string
	Schema      string
	Field       string
	Key         string
	Max         any
	KeyValue    any
	MaskKey     MaskType
	Messages    map[string]string
}

// Options turns the rule into validator options. A non-nil keyValue takes
// precedence over the rule's default; required options the rule lacks are
// left out so construction reports them.
func (r Rule) Options(keyValue any) Options {
	opts := Options{
		OptTable:  r.Table,
		OptSchema: r.Schema,
		OptField:  r.Field,
		OptKey:    r.Key,
	}
	if r.Max != nil {
		opts[OptMax] = r.Max
	}
	if keyValue == nil {
		keyValue = r.KeyValue
	}
	if keyValue != nil {
		opts[OptKeyValue] = keyValue
	}
	if len(r.Messages) > 0 {
		opts[OptMessages] = r.Messages
	}
	return opts
}

// SortRules orders rules by name.
func SortRules(rules []Rule) {
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
}
