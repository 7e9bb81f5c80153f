package transpiler

import (
	"strings"

	"github.com/ha1tch/orapiler/plsql"
)

// typeMap maps Oracle data type names to their PostgreSQL equivalents.
// Unknown types (records, %TYPE anchors, user-defined types) pass through
// unchanged rather than guessing.
var typeMap = map[string]string{
	"number":         "numeric",
	"dec":            "numeric",
	"decimal":        "numeric",
	"numeric":        "numeric",
	"integer":        "integer",
	"int":            "integer",
	"smallint":       "smallint",
	"pls_integer":    "integer",
	"binary_integer": "integer",
	"natural":        "integer",
	"positive":       "integer",
	"float":          "double precision",
	"real":           "real",
	"binary_float":   "real",
	"binary_double":  "double precision",
	"varchar2":       "varchar",
	"nvarchar2":      "varchar",
	"varchar":        "varchar",
	"char":           "char",
	"nchar":          "char",
	"string":         "varchar",
	"long":           "text",
	"clob":           "text",
	"nclob":          "text",
	"blob":           "bytea",
	"raw":            "bytea",
	"long raw":       "bytea",
	"bfile":          "bytea",
	"date":           "timestamp",
	"timestamp":      "timestamp",
	"boolean":        "boolean",
	"rowid":          "oid",
	"urowid":         "oid",
	"xmltype":        "xml",
}

// sizedTypes keep their (length) or (precision, scale) suffix in the target.
var sizedTypes = map[string]bool{
	"varchar": true,
	"char":    true,
	"numeric": true,
}

// mapDataType translates one Oracle type reference. A trailing parenthesized
// size is preserved only where the target type accepts one.
func mapDataType(oracle string) string {
	base := strings.TrimSpace(oracle)
	suffix := ""
	if i := strings.IndexByte(base, '('); i >= 0 {
		suffix = strings.TrimSpace(base[i:])
		base = strings.TrimSpace(base[:i])
	}

	folded := strings.Join(strings.Fields(plsql.Fold(base)), " ")
	mapped, ok := typeMap[folded]
	if !ok {
		return strings.TrimSpace(oracle)
	}
	if suffix != "" && sizedTypes[mapped] {
		return mapped + suffix
	}
	return mapped
}

// emitRoutine renders the final target-dialect text for one transformed
// routine. Private routines get an access-revocation statement after the
// function definition; public ones rely on default access rules. The
// emitter never decides visibility, it only consumes the Pass-1 result.
func emitRoutine(pkgName string, r *plsql.Routine, public bool) string {
	var b strings.Builder
	qualified := plsql.Fold(pkgName) + "." + plsql.Fold(r.Name)

	b.WriteString("CREATE OR REPLACE FUNCTION ")
	b.WriteString(qualified)
	b.WriteString("(")
	b.WriteString(renderParams(r.Params))
	b.WriteString(")")

	hasOut := false
	for _, p := range r.Params {
		if strings.Contains(p.Mode, "OUT") {
			hasOut = true
		}
	}
	if r.IsFunction {
		b.WriteString(" RETURNS ")
		b.WriteString(mapDataType(r.ReturnType))
	} else if !hasOut {
		b.WriteString(" RETURNS void")
	}
	b.WriteString(" AS $body$\n")

	if len(r.Decls) > 0 {
		b.WriteString("DECLARE\n")
		for _, d := range r.Decls {
			b.WriteString("  ")
			b.WriteString(renderDecl(d))
			b.WriteString(";\n")
		}
	}
	b.WriteString("BEGIN\n")
	renderStatements(&b, r.Statements)
	b.WriteString("END;\n$body$ LANGUAGE plpgsql;\n")

	if !public {
		b.WriteString("REVOKE ALL ON FUNCTION ")
		b.WriteString(qualified)
		b.WriteString("(")
		b.WriteString(renderArgTypes(r.Params))
		b.WriteString(") FROM PUBLIC;\n")
	}
	return b.String()
}

// renderParams renders the parameter list in target syntax:
// [mode] name type [DEFAULT expr].
func renderParams(params []plsql.Param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		var sb strings.Builder
		switch p.Mode {
		case "OUT":
			sb.WriteString("OUT ")
		case "IN OUT":
			sb.WriteString("INOUT ")
		}
		sb.WriteString(plsql.Fold(p.Name))
		sb.WriteString(" ")
		sb.WriteString(mapDataType(p.DataType))
		if p.Default != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(p.Default)
		}
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, ", ")
}

// renderArgTypes renders the input argument types identifying the function
// in the revocation statement.
func renderArgTypes(params []plsql.Param) string {
	var parts []string
	for _, p := range params {
		if p.Mode == "OUT" {
			continue
		}
		parts = append(parts, mapDataType(p.DataType))
	}
	return strings.Join(parts, ", ")
}

func renderDecl(d plsql.Declaration) string {
	switch d := d.(type) {
	case plsql.CursorDecl:
		var sb strings.Builder
		sb.WriteString(plsql.Fold(d.Name))
		sb.WriteString(" CURSOR")
		if d.Params != "" {
			sb.WriteString(" (")
			sb.WriteString(renderParams(plsql.ParseParamList(d.Params)))
			sb.WriteString(")")
		}
		sb.WriteString(" FOR ")
		sb.WriteString(d.Query)
		return sb.String()
	case plsql.VarDecl:
		return renderVarDecl(d.Text)
	}
	return ""
}

// renderVarDecl maps the data type inside a plain variable declaration,
// preserving CONSTANT markers and initializers.
func renderVarDecl(text string) string {
	rest := text
	var name, constant string

	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return text
	}
	name = fields[0]
	rest = strings.TrimSpace(rest[strings.Index(rest, name)+len(name):])
	if plsql.FirstWord(rest) == "constant" {
		constant = " CONSTANT"
		rest = strings.TrimSpace(rest[len("constant"):])
	}

	init := ""
	if i := strings.Index(rest, ":="); i >= 0 {
		init = " := " + strings.TrimSpace(rest[i+2:])
		rest = strings.TrimSpace(rest[:i])
	} else if i := indexWord(rest, "default"); i >= 0 {
		init = " := " + strings.TrimSpace(rest[i+len("default"):])
		rest = strings.TrimSpace(rest[:i])
	}

	return plsql.Fold(name) + constant + " " + mapDataType(rest) + init
}

// indexWord finds a case-insensitive whole-word match outside of any
// position inside another identifier.
func indexWord(s, word string) int {
	lower := strings.ToLower(s)
	from := 0
	for {
		i := strings.Index(lower[from:], word)
		if i < 0 {
			return -1
		}
		i += from
		beforeOK := i == 0 || !isWordByte(lower[i-1])
		afterOK := i+len(word) >= len(lower) || !isWordByte(lower[i+len(word)])
		if beforeOK && afterOK {
			return i
		}
		from = i + len(word)
	}
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' || c == '$' || c == '#'
}

// renderStatements writes the flat statement list back out with block-aware
// indentation. Chunks ending in a block opener take no semicolon; chunks
// that resume an enclosing block (ELSE, ELSIF, WHEN, EXCEPTION, END*)
// render one level out.
func renderStatements(b *strings.Builder, stmts []plsql.Statement) {
	indent := 1
	for _, s := range stmts {
		text := s.Raw()
		first := plsql.FirstWord(text)
		level := indent
		switch first {
		case "end", "else", "elsif", "when", "exception":
			if level > 1 {
				level--
			}
			if first == "end" {
				indent = level
			}
		}

		b.WriteString(strings.Repeat("  ", level))
		b.WriteString(text)
		last := plsql.LastWord(text)
		switch last {
		case "then", "else", "loop", "begin", "declare":
			b.WriteString("\n")
			indent = level + 1
		default:
			if first == "exception" && last == "exception" {
				b.WriteString("\n")
				indent = level + 1
			} else {
				b.WriteString(";\n")
			}
		}
	}
}
