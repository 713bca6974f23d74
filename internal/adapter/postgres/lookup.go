package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/guillermoBallester/tollgate/internal/core/domain"
)

// LookupSQL renders spec as a parameterised point lookup. The key value is
// always bound as $1, never interpolated.
func LookupSQL(spec domain.LookupSpec) string {
	table := quoteIdent(spec.Table)
	if spec.Schema != "" {
		table = quoteIdent(spec.Schema) + "." + table
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 LIMIT 1",
		quoteIdent(spec.Field), table, quoteIdent(spec.KeyColumn))
}

// quoteIdent quotes a SQL identifier to prevent injection.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// keyArg renders a scalar key value as text for binding to $1. PostgreSQL
// casts text to the key column's type, so the same rule works for integer
// and text keys; pgx cannot encode a Go integer into a text parameter.
func keyArg(v any) any {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		return fmt.Sprint(x)
	default:
		return v
	}
}
