// Package plsql holds the in-memory representation of a PL/SQL package
// and the lightweight front-end that builds it from spec and body source.
package plsql

import "strings"

// Package is one translation unit: the declaration part (spec) and the
// implementation part (body). Read-only after construction.
type Package struct {
	Name string
	Spec []RoutineSignature
	Body []Routine
}

// RoutineSignature is a routine declaration from the package spec.
// Parameter names are kept for reporting; visibility matching is by name only.
type RoutineSignature struct {
	Name       string
	Params     []Param
	IsFunction bool
	ReturnType string
}

// Routine is a routine definition from the package body.
type Routine struct {
	Name       string
	Params     []Param
	IsFunction bool
	ReturnType string
	Decls      []Declaration
	Statements []Statement
}

// Param is a routine parameter. Mode is IN, OUT or IN OUT (IN when omitted).
type Param struct {
	Name     string
	Mode     string
	DataType string
	Default  string
}

// Declaration is an entry in a routine's declaration block.
type Declaration interface {
	declNode()
}

// VarDecl is a non-cursor declaration, kept as raw text plus the declared
// identifier so shadow-name collision checks can see it.
type VarDecl struct {
	Name string
	Text string
}

// CursorDecl is an explicit cursor declaration.
type CursorDecl struct {
	Name   string
	Params string // raw parameter list including parens, "" when absent
	Query  string
}

func (VarDecl) declNode()    {}
func (CursorDecl) declNode() {}

// Statement is one element of a routine's flat statement sequence.
// Statements that manipulate cursors or modify rows carry their own tag so
// the analyzer and rewriter can handle each case exhaustively; everything
// else passes through as OtherStmt.
type Statement interface {
	Raw() string
	stmtNode()
}

// OpenStmt is OPEN cursor [(args)].
type OpenStmt struct {
	Cursor string
	Text   string
}

// CloseStmt is CLOSE cursor.
type CloseStmt struct {
	Cursor string
	Text   string
}

// FetchStmt is FETCH cursor INTO targets.
type FetchStmt struct {
	Cursor string
	Into   []string
	Text   string
}

// ModifyingStmt is a data-modifying statement (INSERT, UPDATE, DELETE, MERGE).
type ModifyingStmt struct {
	Verb string
	Text string
}

// OtherStmt is any statement the pipeline does not interpret.
type OtherStmt struct {
	Text string
}

func (s OpenStmt) Raw() string      { return s.Text }
func (s CloseStmt) Raw() string     { return s.Text }
func (s FetchStmt) Raw() string     { return s.Text }
func (s ModifyingStmt) Raw() string { return s.Text }
func (s OtherStmt) Raw() string     { return s.Text }

func (OpenStmt) stmtNode()      {}
func (CloseStmt) stmtNode()     {}
func (FetchStmt) stmtNode()     {}
func (ModifyingStmt) stmtNode() {}
func (OtherStmt) stmtNode()     {}

// Fold normalizes an identifier for comparison. PL/SQL identifiers are
// case-insensitive, so every name match in the pipeline goes through here
// rather than relying on ambient string comparison.
func Fold(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DeclaredCursors returns the routine's cursor declarations in order.
func (r *Routine) DeclaredCursors() []CursorDecl {
	var cursors []CursorDecl
	for _, d := range r.Decls {
		if c, ok := d.(CursorDecl); ok {
			cursors = append(cursors, c)
		}
	}
	return cursors
}
