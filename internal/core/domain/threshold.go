package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrConfiguration = errors.New("invalid validator configuration")
	ErrNoAdapter     = errors.New("no database adapter present")
	ErrNotNumeric    = errors.New("value is not numeric")
	ErrUnknownRule   = errors.New("unknown rule")
)

// Reason identifies why a value failed validation.
type Reason string

const (
	ReasonNoRecordFound Reason = "no_record_found"
	ReasonExceedsMax    Reason = "exceedsmax"
)

// Valid returns true for the known failure reasons.
func (r Reason) Valid() bool {
	return r == ReasonNoRecordFound || r == ReasonExceedsMax
}

// DefaultMessages are the message templates used when a rule does not
// override them. %value% and %max% are substituted on render.
var DefaultMessages = map[Reason]string{
	ReasonNoRecordFound: "No record matching the input was found",
	ReasonExceedsMax:    "Record exceeds Maximum Value",
}

// Outcome is the result of one validation. Reason and Message are empty
// when Valid is true.
type Outcome struct {
	Valid   bool   `json:"valid"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	Sum     string `json:"sum,omitempty"`
	Max     int64  `json:"max"`
}

// RecordFetcher executes a lookup and returns at most one row's field value.
type RecordFetcher interface {
	Fetch(ctx context.Context, spec LookupSpec) (LookupResult, error)
}

// ThresholdValidator checks that a candidate value added to a stored field
// does not exceed a configured maximum.
type ThresholdValidator struct {
	fetcher  RecordFetcher
	spec     LookupSpec
	messages map[Reason]string
}

// NewThresholdValidator builds a validator from named options. max, key and
// key_value are required. fetcher may be nil, in which case every call to
// Validate fails with ErrNoAdapter.
func NewThresholdValidator(fetcher RecordFetcher, opts Options) (*ThresholdValidator, error) {
	spec, err := buildLookupSpec(opts)
	if err != nil {
		return nil, err
	}

	messages := make(map[Reason]string, len(DefaultMessages))
	for r, tmpl := range DefaultMessages {
		messages[r] = tmpl
	}
	if raw, ok := opts[OptMessages]; ok && raw != nil {
		overrides, err := messageOverrides(raw)
		if err != nil {
			return nil, err
		}
		for r, tmpl := range overrides {
			if !r.Valid() {
				return nil, fmt.Errorf("%w: no message template exists for key %q", ErrConfiguration, r)
			}
			messages[r] = tmpl
		}
	}

	return &ThresholdValidator{
		fetcher:  fetcher,
		spec:     spec,
		messages: messages,
	}, nil
}

func messageOverrides(raw any) (map[Reason]string, error) {
	switch m := raw.(type) {
	case map[Reason]string:
		return m, nil
	case map[string]string:
		out := make(map[Reason]string, len(m))
		for k, tmpl := range m {
			out[Reason(k)] = tmpl
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: messages must be a reason to template map, got %T", ErrConfiguration, raw)
	}
}

// Spec returns the lookup this validator runs.
func (v *ThresholdValidator) Spec() LookupSpec {
	return v.spec
}

// Validate fetches the keyed row and compares candidate + stored value
// against the maximum. Business failures are reported in the Outcome, not
// as errors.
func (v *ThresholdValidator) Validate(ctx context.Context, candidate any) (Outcome, error) {
	if v.fetcher == nil {
		return Outcome{}, ErrNoAdapter
	}
	if err := v.spec.checkTarget(); err != nil {
		return Outcome{}, err
	}

	value, err := ToNumber(candidate)
	if err != nil {
		return Outcome{}, err
	}

	result, err := v.fetcher.Fetch(ctx, v.spec)
	if err != nil {
		return Outcome{}, fmt.Errorf("fetching %s.%s: %w", v.spec.QualifiedTable(), v.spec.Field, err)
	}

	if !result.Found {
		return v.invalid(ReasonNoRecordFound, value, ""), nil
	}

	stored := IntNumber(0)
	if result.Value != nil {
		stored, err = ToNumber(result.Value)
		if err != nil {
			return Outcome{}, fmt.Errorf("stored %s: %w", v.spec.Field, err)
		}
	}

	sum := value.Add(stored)
	if sum.GreaterThan(v.spec.Max) {
		return v.invalid(ReasonExceedsMax, value, sum.String()), nil
	}

	return Outcome{Valid: true, Sum: sum.String(), Max: v.spec.Max}, nil
}

// IsValid is Validate reduced to a boolean.
func (v *ThresholdValidator) IsValid(ctx context.Context, candidate any) (bool, error) {
	out, err := v.Validate(ctx, candidate)
	if err != nil {
		return false, err
	}
	return out.Valid, nil
}

func (v *ThresholdValidator) invalid(reason Reason, value Number, sum string) Outcome {
	return Outcome{
		Reason:  reason,
		Message: v.render(reason, value),
		Sum:     sum,
		Max:     v.spec.Max,
	}
}

func (v *ThresholdValidator) render(reason Reason, value Number) string {
	return strings.NewReplacer(
		"%value%", value.String(),
		"%max%", strconv.FormatInt(v.spec.Max, 10),
	).Replace(v.messages[reason])
}
