package domain

import (
	"errors"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var (
	ErrEmptyQuery     = errors.New("empty query")
	ErrInvalidLookup  = errors.New("not a single-column keyed lookup")
	ErrMultiStatement = errors.New("multiple statements are not allowed")
	ErrParseFailed    = errors.New("failed to parse SQL")
)

// LookupStatementValidator checks rendered lookup SQL with PostgreSQL's own
// parser. Only `SELECT col FROM rel WHERE key = $1 [LIMIT n]` is accepted.
type LookupStatementValidator struct{}

func NewLookupStatementValidator() *LookupStatementValidator {
	return &LookupStatementValidator{}
}

// Validate parses sql and rejects anything but a single point lookup.
func (v *LookupStatementValidator) Validate(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return ErrEmptyQuery
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	if len(tree.Stmts) == 0 {
		return ErrEmptyQuery
	}
	if len(tree.Stmts) > 1 {
		return ErrMultiStatement
	}

	sel := tree.Stmts[0].GetStmt().GetSelectStmt()
	if sel == nil {
		return fmt.Errorf("%w: statement is not a SELECT", ErrInvalidLookup)
	}
	if sel.GetOp() != pg_query.SetOperation_SETOP_NONE || sel.GetWithClause() != nil {
		return fmt.Errorf("%w: set operations and CTEs are not allowed", ErrInvalidLookup)
	}
	if len(sel.GetGroupClause()) > 0 || sel.GetHavingClause() != nil || len(sel.GetDistinctClause()) > 0 {
		return fmt.Errorf("%w: aggregation is not allowed", ErrInvalidLookup)
	}

	if len(sel.GetTargetList()) != 1 || columnRef(sel.GetTargetList()[0].GetResTarget().GetVal()) == "" {
		return fmt.Errorf("%w: exactly one column must be selected", ErrInvalidLookup)
	}

	if len(sel.GetFromClause()) != 1 || sel.GetFromClause()[0].GetRangeVar() == nil {
		return fmt.Errorf("%w: exactly one table must be named", ErrInvalidLookup)
	}

	return checkKeyPredicate(sel.GetWhereClause())
}

// checkKeyPredicate accepts only `column = $1`.
func checkKeyPredicate(where *pg_query.Node) error {
	expr := where.GetAExpr()
	if expr == nil || expr.GetKind() != pg_query.A_Expr_Kind_AEXPR_OP {
		return fmt.Errorf("%w: WHERE must be a single equality", ErrInvalidLookup)
	}
	if len(expr.GetName()) != 1 || expr.GetName()[0].GetString_().GetSval() != "=" {
		return fmt.Errorf("%w: WHERE must use =", ErrInvalidLookup)
	}
	if columnRef(expr.GetLexpr()) == "" {
		return fmt.Errorf("%w: left side of = must be the key column", ErrInvalidLookup)
	}
	if p := expr.GetRexpr().GetParamRef(); p == nil || p.GetNumber() != 1 {
		return fmt.Errorf("%w: right side of = must be $1", ErrInvalidLookup)
	}
	return nil
}

// columnRef returns the dotted name of a column reference, or "".
func columnRef(n *pg_query.Node) string {
	ref := n.GetColumnRef()
	if ref == nil {
		return ""
	}
	parts := make([]string, 0, len(ref.GetFields()))
	for _, f := range ref.GetFields() {
		s := f.GetString_()
		if s == nil {
			return ""
		}
		parts = append(parts, s.GetSval())
	}
	return strings.Join(parts, ".")
}
