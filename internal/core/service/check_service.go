package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guillermoBallester/tollgate/internal/core/domain"
	"github.com/guillermoBallester/tollgate/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type sourceKey struct{}

// WithSource returns a context carrying the caller name (MCP tool or "cli")
// for audit logging.
func WithSource(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, sourceKey{}, name)
}

func sourceFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(sourceKey{}).(string); ok {
		return v
	}
	return ""
}

// CheckRequest asks whether Value may be added to the rule's stored field.
// KeyValue overrides the rule's default key value when non-nil.
type CheckRequest struct {
	Rule     string
	Value    any
	KeyValue any
}

// CheckResult is an Outcome annotated with what was checked. KeyValue is
// masked according to the rule.
type CheckResult struct {
	Rule     string `json:"rule"`
	KeyValue any    `json:"key_value"`
	Value    any    `json:"value"`
	domain.Outcome
}

// RuleView is the displayable form of a rule.
type RuleView struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Table       string            `json:"table"`
	Field       string            `json:"field"`
	Key         string            `json:"key"`
	Max         int64             `json:"max"`
	KeyValue    any               `json:"key_value,omitempty"`
	MaskKey     domain.MaskType   `json:"mask_key,omitempty"`
	Messages    map[string]string `json:"messages"`
}

// CheckService resolves rules, runs threshold validators and records what
// happened.
type CheckService struct {
	rules     port.RuleSource
	fetcher   domain.RecordFetcher
	explainer port.LookupExplainer
	auditor   port.CheckAuditor
	logger    *slog.Logger
	tracer    trace.Tracer
	inst      port.Instrumentation
}

// NewCheckService wires a CheckService. fetcher may be nil, in which case
// every check fails with domain.ErrNoAdapter. explainer, auditor, tracer
// and inst are optional.
func NewCheckService(rules port.RuleSource, fetcher domain.RecordFetcher, explainer port.LookupExplainer, auditor port.CheckAuditor, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *CheckService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &CheckService{
		rules:     rules,
		fetcher:   fetcher,
		explainer: explainer,
		auditor:   auditor,
		logger:    logger,
		tracer:    tracer,
		inst:      inst,
	}
}

// Check runs the named rule against req.Value.
func (s *CheckService) Check(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	ctx, span := s.tracer.Start(ctx, "CheckService.Check",
		trace.WithAttributes(
			attribute.String("tollgate.rule", req.Rule),
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation.name", "select"),
		),
	)
	defer span.End()

	rule, ok := s.rules.Rule(req.Rule)
	if !ok {
		err := fmt.Errorf("%w: %q", domain.ErrUnknownRule, req.Rule)
		s.fail(ctx, span, req.Rule, "unknown_rule", err)
		return nil, err
	}

	v, err := domain.NewThresholdValidator(s.fetcher, rule.Options(req.KeyValue))
	if err != nil {
		s.fail(ctx, span, rule.Name, "configuration_error", err)
		return nil, err
	}
	spec := v.Spec()
	maskedKey := rule.MaskKey.Apply(spec.KeyValue)
	span.SetAttributes(attribute.String("db.collection.name", spec.QualifiedTable()))

	start := time.Now()
	out, err := v.Validate(ctx, req.Value)
	durationMS := time.Since(start).Milliseconds()
	s.inst.RecordLookupDuration(ctx, float64(durationMS))

	if s.auditor != nil {
		s.auditor.Record(ctx, port.AuditEntry{
			Source:     sourceFromCtx(ctx),
			Rule:       rule.Name,
			KeyValue:   maskedKey,
			Value:      req.Value,
			Outcome:    out,
			DurationMS: durationMS,
			Err:        err,
		})
	}

	if err != nil {
		s.fail(ctx, span, rule.Name, "lookup_error", err)
		return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
	}

	s.inst.IncrementCheckCount(ctx, rule.Name, out.Reason)
	span.SetAttributes(
		attribute.Bool("tollgate.valid", out.Valid),
		attribute.String("tollgate.reason", string(out.Reason)),
	)

	level := slog.LevelInfo
	if !out.Valid {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "threshold check",
		slog.String("tollgate.rule", rule.Name),
		slog.Any("tollgate.key_value", maskedKey),
		slog.Any("tollgate.value", req.Value),
		slog.Bool("tollgate.valid", out.Valid),
		slog.String("tollgate.reason", string(out.Reason)),
		slog.Int64("duration_ms", durationMS),
	)

	return &CheckResult{
		Rule:     rule.Name,
		KeyValue: maskedKey,
		Value:    req.Value,
		Outcome:  out,
	}, nil
}

func (s *CheckService) fail(ctx context.Context, span trace.Span, rule, errType string, err error) {
	s.logger.WarnContext(ctx, "threshold check failed",
		slog.String("tollgate.rule", rule),
		slog.String("error.type", errType),
		slog.String("error.message", err.Error()),
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.inst.IncrementCheckErrors(ctx, rule)
}

// ListRules returns every rule, key values masked.
func (s *CheckService) ListRules() []RuleView {
	rules := s.rules.Rules()
	views := make([]RuleView, 0, len(rules))
	for _, r := range rules {
		views = append(views, viewOf(r))
	}
	return views
}

// DescribeRule returns one rule, key value masked.
func (s *CheckService) DescribeRule(name string) (*RuleView, error) {
	r, ok := s.rules.Rule(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRule, name)
	}
	view := viewOf(r)
	return &view, nil
}

// Explain returns the database plan for the rule's lookup.
func (s *CheckService) Explain(ctx context.Context, name string, keyValue any) ([]string, error) {
	if s.explainer == nil {
		return nil, domain.ErrNoAdapter
	}
	r, ok := s.rules.Rule(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRule, name)
	}
	v, err := domain.NewThresholdValidator(s.fetcher, r.Options(keyValue))
	if err != nil {
		return nil, err
	}
	return s.explainer.Explain(ctx, v.Spec())
}

func viewOf(r domain.Rule) RuleView {
	messages := make(map[string]string, len(domain.DefaultMessages))
	for reason, tmpl := range domain.DefaultMessages {
		messages[string(reason)] = tmpl
	}
	for reason, tmpl := range r.Messages {
		messages[reason] = tmpl
	}

	table := r.Table
	if r.Schema != "" {
		table = r.Schema + "." + r.Table
	}

	limit, _ := domain.TruncateToInt64(r.Max)

	return RuleView{
		Name:        r.Name,
		Description: r.Description,
		Table:       table,
		Field:       r.Field,
		Key:         r.Key,
		Max:         limit,
		KeyValue:    r.MaskKey.Apply(r.KeyValue),
		MaskKey:     r.MaskKey,
		Messages:    messages,
	}
}
