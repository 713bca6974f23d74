package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/guillermoBallester/tollgate/internal/adapter/mcp"
	"github.com/guillermoBallester/tollgate/internal/config"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the threshold tools over MCP (stdio or streamable HTTP)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cfg, logger, err := setup(cmd, open)
			if err != nil {
				return err
			}
			defer a.Close()

			logger.Info("starting tollgate",
				slog.String("version", version),
				slog.String("log_level", cfg.LogLevel.String()),
				slog.String("transport", cfg.Transport),
				slog.String("query_timeout", cfg.QueryTimeout.String()),
			)

			s := mcp.NewServer(version, a.checks, logger, a.tracer, a.inst)

			if cfg.Transport == "http" {
				return serveHTTP(cmd.Context(), s, cfg, logger)
			}

			logger.Info("serving MCP over stdio")
			if err := mcpserver.NewStdioServer(s).Listen(cmd.Context(), os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("stdio server: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
}

func serveHTTP(ctx context.Context, s *mcpserver.MCPServer, cfg *config.Config, logger *slog.Logger) error {
	streamable := mcpserver.NewStreamableHTTPServer(s,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(r.Header))
		}),
	)

	mux := http.NewServeMux()
	mux.Handle("/mcp", bearerAuthMiddleware(streamable, cfg.HTTPBearerToken))
	mux.HandleFunc("/health", healthHandler)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           recoveryMiddleware(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving MCP over HTTP", slog.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
