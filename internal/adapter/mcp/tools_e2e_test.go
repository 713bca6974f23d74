package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/guillermoBallester/tollgate/internal/adapter/postgres"
	"github.com/guillermoBallester/tollgate/internal/adapter/rules"
	"github.com/guillermoBallester/tollgate/internal/audit"
	"github.com/guillermoBallester/tollgate/internal/core/domain"
	"github.com/guillermoBallester/tollgate/internal/core/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const e2eSchema = `
	CREATE TABLE accounts (
		id      INTEGER PRIMARY KEY,
		balance NUMERIC(12,2)
	);

	CREATE SCHEMA billing;
	CREATE TABLE billing.subscriptions (
		account_id TEXT PRIMARY KEY,
		seats_used INTEGER NOT NULL
	);

	INSERT INTO accounts (id, balance) VALUES (1, 10), (2, 9.75), (3, NULL);
	INSERT INTO billing.subscriptions (account_id, seats_used) VALUES ('acme', 8);
`

const e2eRules = `
rules:
  credit_limit:
    table: accounts
    field: balance
    key: id
    max: 15
    mask_key: hash
  seats:
    table: billing.subscriptions
    field: seats_used
    key: account_id
    max: 10
    key_value: acme
`

// setupE2E starts a Postgres testcontainer, applies the schema and returns an
// MCP server wired to real adapters plus the audit log path.
func setupE2E(t *testing.T) (*server.MCPServer, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	_, err = pool.Exec(ctx, e2eSchema)
	require.NoError(t, err)

	set, err := rules.Parse([]byte(e2eRules))
	require.NoError(t, err)

	auditPath := filepath.Join(t.TempDir(), "audit.ndjson")
	auditor, err := audit.NewFileAuditor(auditPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditor.Close() })

	// Real adapters.
	fetcher := postgres.NewFetcher(pool, domain.NewLookupStatementValidator(), 5*time.Second)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	checks := service.NewCheckService(set, fetcher, fetcher, auditor, logger, nil, nil)

	return NewServer("0.0.1", checks, logger, nil, nil), auditPath
}

func TestE2E_MCPTools(t *testing.T) {
	s, auditPath := setupE2E(t)

	t.Run("check_limit valid", func(t *testing.T) {
		out := decodeCheck(t, callTool(t, s, "check_limit", map[string]any{
			"rule": "credit_limit", "value": 4, "key_value": 1,
		}))
		assert.True(t, out.Valid)
		assert.Equal(t, "14", out.Sum)
	})

	t.Run("check_limit at max", func(t *testing.T) {
		out := decodeCheck(t, callTool(t, s, "check_limit", map[string]any{
			"rule": "credit_limit", "value": 5, "key_value": 1,
		}))
		assert.True(t, out.Valid)
	})

	t.Run("check_limit exceeds", func(t *testing.T) {
		out := decodeCheck(t, callTool(t, s, "check_limit", map[string]any{
			"rule": "credit_limit", "value": 6, "key_value": 1,
		}))
		assert.False(t, out.Valid)
		assert.Equal(t, domain.ReasonExceedsMax, out.Reason)
		assert.Equal(t, "Record exceeds Maximum Value", out.Message)
	})

	t.Run("fractional stored value", func(t *testing.T) {
		out := decodeCheck(t, callTool(t, s, "check_limit", map[string]any{
			"rule": "credit_limit", "value": 5.25, "key_value": 2,
		}))
		assert.True(t, out.Valid)
		assert.Equal(t, "15", out.Sum)
	})

	t.Run("NULL stored value counts as zero", func(t *testing.T) {
		out := decodeCheck(t, callTool(t, s, "check_limit", map[string]any{
			"rule": "credit_limit", "value": 15, "key_value": 3,
		}))
		assert.True(t, out.Valid)
	})

	t.Run("no record", func(t *testing.T) {
		out := decodeCheck(t, callTool(t, s, "check_limit", map[string]any{
			"rule": "credit_limit", "value": 1, "key_value": 404,
		}))
		assert.False(t, out.Valid)
		assert.Equal(t, domain.ReasonNoRecordFound, out.Reason)
	})

	t.Run("default key value in another schema", func(t *testing.T) {
		out := decodeCheck(t, callTool(t, s, "check_limit", map[string]any{
			"rule": "seats", "value": 3,
		}))
		assert.False(t, out.Valid)
		assert.Equal(t, "11", out.Sum)
		assert.Equal(t, "acme", out.KeyValue)
	})

	t.Run("explain_rule", func(t *testing.T) {
		result := callTool(t, s, "explain_rule", map[string]any{"rule": "credit_limit", "key_value": 1})
		require.False(t, result.IsError, toolText(result))

		var plan []string
		require.NoError(t, json.Unmarshal([]byte(toolText(result)), &plan))
		require.NotEmpty(t, plan)
		assert.Contains(t, strings.Join(plan, "\n"), "accounts")
	})

	t.Run("audit log", func(t *testing.T) {
		f, err := os.Open(auditPath)
		require.NoError(t, err)
		defer f.Close()

		var lines []map[string]any
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var entry map[string]any
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
			lines = append(lines, entry)
		}
		require.NoError(t, scanner.Err())
		require.Len(t, lines, 7)

		first := lines[0]
		assert.Equal(t, "check_limit", first["source"])
		assert.Equal(t, "credit_limit", first["rule"])
		assert.Equal(t, true, first["valid"])
		// mask_key: hash never writes the raw key.
		assert.NotEqual(t, float64(1), first["key_value"])
		assert.Len(t, first["key_value"], 64)
	})
}
