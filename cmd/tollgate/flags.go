package main

import (
	"github.com/guillermoBallester/tollgate/internal/config"
	"github.com/spf13/pflag"
)

// addConfigFlags registers the flags that override environment variables.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.String("database-url", "", "PostgreSQL connection string (env DATABASE_URL)")
	fs.String("rules", "", "path to the rules YAML (env RULES_FILE)")
	fs.String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	fs.Duration("query-timeout", 0, "per-lookup timeout (env QUERY_TIMEOUT)")
	fs.String("transport", "", "stdio or http (env TRANSPORT)")
	fs.String("http-addr", "", "listen address for the http transport (env HTTP_ADDR)")
	fs.String("http-bearer-token", "", "bearer token required by the http transport (env HTTP_BEARER_TOKEN)")
	fs.String("audit-log", "", "append an NDJSON record of every check to this file (env AUDIT_LOG)")
	fs.Bool("otel", false, "enable OpenTelemetry tracing and metrics (env OTEL_ENABLED)")
	fs.Int32("pool-max-conns", 0, "maximum pool connections (env POOL_MAX_CONNS)")
	fs.Int32("pool-min-conns", 0, "minimum idle pool connections (env POOL_MIN_CONNS)")
	fs.Duration("pool-max-conn-lifetime", 0, "maximum connection lifetime (env POOL_MAX_CONN_LIFETIME)")
}

// overridesFromFlags returns only the flags the user actually set.
func overridesFromFlags(fs *pflag.FlagSet) config.Overrides {
	otel, _ := fs.GetBool("otel")
	return config.Overrides{
		DatabaseURL:         changed(fs, "database-url", fs.GetString),
		RulesFile:           changed(fs, "rules", fs.GetString),
		LogLevel:            changed(fs, "log-level", fs.GetString),
		QueryTimeout:        changed(fs, "query-timeout", fs.GetDuration),
		Transport:           changed(fs, "transport", fs.GetString),
		HTTPAddr:            changed(fs, "http-addr", fs.GetString),
		HTTPBearerToken:     changed(fs, "http-bearer-token", fs.GetString),
		AuditLog:            changed(fs, "audit-log", fs.GetString),
		OTelEnabled:         otel,
		PoolMaxConns:        changed(fs, "pool-max-conns", fs.GetInt32),
		PoolMinConns:        changed(fs, "pool-min-conns", fs.GetInt32),
		PoolMaxConnLifetime: changed(fs, "pool-max-conn-lifetime", fs.GetDuration),
	}
}

func changed[T any](fs *pflag.FlagSet, name string, get func(string) (T, error)) *T {
	if !fs.Changed(name) {
		return nil
	}
	v, _ := get(name)
	return &v
}
