package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guillermoBallester/tollgate/internal/core/port"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ToolTelemetry wraps every tool handler in a span, logs the call and
// records its duration. The span is the parent of whatever the handler
// starts, so a check_limit trace nests CheckService.Check under it.
func ToolTelemetry(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) server.ToolHandlerMiddleware {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}

	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			tool := req.Params.Name
			attrs := []attribute.KeyValue{attribute.String("mcp.tool", tool)}
			rule, _ := req.GetArguments()["rule"].(string)
			if rule != "" {
				attrs = append(attrs, attribute.String("tollgate.rule", rule))
			}

			ctx, span := tracer.Start(ctx, "mcp.tool.call", trace.WithAttributes(attrs...))
			defer span.End()

			start := time.Now()
			result, err := next(ctx, req)
			duration := time.Since(start)

			isErr := err != nil || (result != nil && result.IsError)
			level := slog.LevelInfo
			if isErr {
				level = slog.LevelError
			}

			logAttrs := []slog.Attr{
				slog.String("rpc.method", "tools/call"),
				slog.String("mcp.tool", tool),
				slog.Duration("duration", duration),
				slog.Bool("error", isErr),
			}
			if rule != "" {
				logAttrs = append(logAttrs, slog.String("tollgate.rule", rule))
			}
			logger.LogAttrs(ctx, level, "tool call", logAttrs...)

			inst.RecordToolDuration(ctx, tool, float64(duration.Milliseconds()))

			switch {
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			case isErr:
				span.RecordError(fmt.Errorf("tool %s returned error", tool))
				span.SetStatus(codes.Error, "tool returned error")
			}
			return result, err
		}
	}
}

// ErrorHooks logs protocol-level failures that never reach a tool handler,
// such as calls to unknown tools.
func ErrorHooks(logger *slog.Logger) *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		attrs := []slog.Attr{
			slog.String("rpc.method", string(method)),
			slog.String("error.message", err.Error()),
		}
		if req, ok := message.(*mcp.CallToolRequest); ok {
			attrs = append(attrs, slog.String("mcp.tool", req.Params.Name))
		}
		logger.LogAttrs(ctx, slog.LevelError, "mcp request failed", attrs...)
	})
	return hooks
}
