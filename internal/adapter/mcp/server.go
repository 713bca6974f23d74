package mcp

import (
	"log/slog"

	"github.com/guillermoBallester/tollgate/internal/core/port"
	"github.com/guillermoBallester/tollgate/internal/core/service"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

// NewServer creates an MCPServer exposing the threshold tools. tracer and
// inst may be nil.
func NewServer(version string, checks *service.CheckService, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(ToolTelemetry(logger, tracer, inst)),
		server.WithHooks(ErrorHooks(logger)),
	)

	RegisterTools(s, checks)

	return s
}
