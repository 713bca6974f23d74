package domain

import (
	"fmt"
	"reflect"
)

// Option names understood by NewThresholdValidator.
const (
	OptTable    = "table"
	OptSchema   = "schema"
	OptField    = "field"
	OptMax      = "max"
	OptKey      = "key"
	OptKeyValue = "key_value"
	OptMessages = "messages"
)

// Options are the named construction options of a threshold validator.
type Options map[string]any

// LookupSpec describes a single-column point lookup keyed by equality.
// It is immutable once built; the zero Schema means the default search path.
type LookupSpec struct {
	Table     string
	Schema    string
	Field     string
	KeyColumn string
	KeyValue  any
	Max       int64
}

// QualifiedTable returns schema.table, or just table when no schema is set.
func (s LookupSpec) QualifiedTable() string {
	if s.Schema == "" {
		return s.Table
	}
	return s.Schema + "." + s.Table
}

// checkTarget reports whether the table and field are set. These come from
// the rule source rather than the required options, so they are only
// enforced when a lookup is about to run.
func (s LookupSpec) checkTarget() error {
	if s.Table == "" {
		return fmt.Errorf("%w: table is not configured", ErrConfiguration)
	}
	if s.Field == "" {
		return fmt.Errorf("%w: field is not configured", ErrConfiguration)
	}
	return nil
}

// LookupResult is the outcome of one fetch: either no row, or the stored
// value of the looked-up field in the first matching row.
type LookupResult struct {
	Found bool
	Value any
}

func NotFound() LookupResult { return LookupResult{} }

func Found(value any) LookupResult { return LookupResult{Found: true, Value: value} }

// buildLookupSpec reads the required and base options into a LookupSpec.
func buildLookupSpec(opts Options) (LookupSpec, error) {
	var spec LookupSpec

	rawMax, ok := opts[OptMax]
	if !ok {
		return spec, fmt.Errorf("%w: max option missing", ErrConfiguration)
	}
	limit, err := TruncateToInt64(rawMax)
	if err != nil {
		return spec, fmt.Errorf("%w: max: %w", ErrConfiguration, err)
	}
	spec.Max = limit

	rawKey, ok := opts[OptKey]
	if !ok {
		return spec, fmt.Errorf("%w: key field option missing", ErrConfiguration)
	}
	key, ok := rawKey.(string)
	if !ok || key == "" {
		return spec, fmt.Errorf("%w: key must be a non-empty column name", ErrConfiguration)
	}
	spec.KeyColumn = key

	rawKeyValue, ok := opts[OptKeyValue]
	if !ok {
		return spec, fmt.Errorf("%w: value for key field is missing", ErrConfiguration)
	}
	if !isScalar(rawKeyValue) {
		return spec, fmt.Errorf("%w: key_value must be a scalar, got %T", ErrConfiguration, rawKeyValue)
	}
	spec.KeyValue = rawKeyValue

	if spec.Table, err = optionalString(opts, OptTable); err != nil {
		return spec, err
	}
	if spec.Schema, err = optionalString(opts, OptSchema); err != nil {
		return spec, err
	}
	if spec.Field, err = optionalString(opts, OptField); err != nil {
		return spec, err
	}

	return spec, nil
}

func optionalString(opts Options, name string) (string, error) {
	v, ok := opts[name]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrConfiguration, name, v)
	}
	return s, nil
}

func isScalar(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Func,
		reflect.Chan, reflect.Pointer, reflect.Interface, reflect.UnsafePointer:
		return false
	}
	return true
}
