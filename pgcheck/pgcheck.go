// Package pgcheck validates emitted SQL against the real PostgreSQL
// grammar, via pg_query_go. Tests use it to prove the emitter's output is
// syntactically acceptable to the target, not merely plausible text.
package pgcheck

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v2"
)

// CheckStatements parses a string of SQL statements (CREATE FUNCTION,
// REVOKE, ...) with the PostgreSQL parser.
func CheckStatements(sql string) error {
	if strings.TrimSpace(sql) == "" {
		return fmt.Errorf("empty SQL")
	}
	if _, err := pg_query.Parse(sql); err != nil {
		return fmt.Errorf("postgres parse: %w", err)
	}
	return nil
}

// CheckFunction parses a CREATE FUNCTION statement and then runs the
// PL/pgSQL parser over its body.
func CheckFunction(sql string) error {
	if err := CheckStatements(sql); err != nil {
		return err
	}
	if _, err := pg_query.ParsePlPgSqlToJSON(sql); err != nil {
		return fmt.Errorf("plpgsql parse: %w", err)
	}
	return nil
}
