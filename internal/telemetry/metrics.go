package telemetry

import (
	"context"

	"github.com/guillermoBallester/tollgate/internal/core/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/guillermoBallester/tollgate"

// Instruments holds pre-created OTel metric instruments.
type Instruments struct {
	CheckCount     metric.Int64Counter
	CheckErrors    metric.Int64Counter
	LookupDuration metric.Float64Histogram
	ToolDuration   metric.Float64Histogram
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return newInstrumentsFromMeter(noop.NewMeterProvider().Meter(instrumentationName))
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	checkCount, _ := meter.Int64Counter("tollgate.check.count",
		metric.WithDescription("Threshold checks completed, by rule and outcome"),
	)
	checkErrors, _ := meter.Int64Counter("tollgate.check.errors",
		metric.WithDescription("Threshold checks that failed with an error"),
	)
	lookupDuration, _ := meter.Float64Histogram("tollgate.lookup.duration",
		metric.WithDescription("Record lookup duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	toolDuration, _ := meter.Float64Histogram("tollgate.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		CheckCount:     checkCount,
		CheckErrors:    checkErrors,
		LookupDuration: lookupDuration,
		ToolDuration:   toolDuration,
	}
}

func (i *Instruments) RecordLookupDuration(ctx context.Context, ms float64) {
	i.LookupDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementCheckCount(ctx context.Context, rule string, reason domain.Reason) {
	outcome := "valid"
	if reason != "" {
		outcome = string(reason)
	}
	i.CheckCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tollgate.rule", rule),
		attribute.String("tollgate.outcome", outcome),
	))
}

func (i *Instruments) IncrementCheckErrors(ctx context.Context, rule string) {
	i.CheckErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("tollgate.rule", rule)))
}

func (i *Instruments) RecordToolDuration(ctx context.Context, tool string, ms float64) {
	i.ToolDuration.Record(ctx, ms, metric.WithAttributes(attribute.String("mcp.tool", tool)))
}
