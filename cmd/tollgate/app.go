package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/guillermoBallester/tollgate/internal/adapter/postgres"
	"github.com/guillermoBallester/tollgate/internal/adapter/rules"
	"github.com/guillermoBallester/tollgate/internal/audit"
	"github.com/guillermoBallester/tollgate/internal/config"
	"github.com/guillermoBallester/tollgate/internal/core/domain"
	"github.com/guillermoBallester/tollgate/internal/core/port"
	"github.com/guillermoBallester/tollgate/internal/core/service"
	"github.com/guillermoBallester/tollgate/internal/telemetry"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
)

// app is everything a command needs once configuration is resolved.
type app struct {
	checks  *service.CheckService
	tracer  trace.Tracer
	inst    port.Instrumentation
	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type opener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error)

// setup loads configuration from env and flags and opens the app.
func setup(cmd *cobra.Command, open opener) (*app, *config.Config, *slog.Logger, error) {
	cfg, err := config.Load(overridesFromFlags(cmd.Flags()))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr; stdout is reserved for the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	a, err := open(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return a, cfg, logger, nil
}

// openApp wires the PostgreSQL-backed app.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{
		tracer: telemetry.NoopTracer(),
		inst:   telemetry.NoopInstruments(),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "tollgate", version)
		if err != nil {
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := provider.Shutdown(context.Background()); err != nil {
				logger.Error("telemetry shutdown", slog.String("error.message", err.Error()))
			}
		})
		a.tracer = provider.Tracer()
		a.inst = provider.Instruments()
		logger.Info("opentelemetry enabled")
	}

	ruleSet, err := rules.LoadFromFile(cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	logger.Info("rules loaded",
		slog.String("file", cfg.RulesFile),
		slog.Int("tollgate.rule_count", len(ruleSet.Rules())),
	)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{
		MaxConns:        cfg.PoolMaxConns,
		MinConns:        cfg.PoolMinConns,
		MaxConnLifetime: cfg.PoolMaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	logger.Info("database pool connected",
		slog.String("db.system", "postgresql"),
		slog.String("db.url", redactDSN(cfg.DatabaseURL)),
	)

	fetcher := postgres.NewFetcher(pool, domain.NewLookupStatementValidator(), cfg.QueryTimeout)

	var auditor port.CheckAuditor = audit.NoopAuditor{}
	if cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = fa.Close() })
		auditor = fa
		logger.Info("audit log enabled", slog.String("file", cfg.AuditLog))
	}

	a.checks = service.NewCheckService(ruleSet, fetcher, fetcher, auditor, logger, a.tracer, a.inst)
	return a, nil
}

// redactDSN masks the password of a connection URL for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
