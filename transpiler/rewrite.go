package transpiler

import (
	"strings"

	"github.com/ha1tch/orapiler/plsql"
)

// rewriteStats counts attribute references handled by one routine's rewrite.
type rewriteStats struct {
	Rewritten  int
	Unresolved int
}

// rewriteRoutine produces the transformed routine: shadow declarations
// prepended to the declaration block, state-transition assignments spliced
// in after OPEN/CLOSE and diagnostics retrieval after FETCH and modifying
// statements, and attribute references substituted in place.
//
// The traversal walks the immutable original statement list once and
// appends into a fresh list, so injected nodes can never invalidate the
// positions of statements still to be visited.
func rewriteRoutine(r *plsql.Routine, an *cursorAnalysis) (*plsql.Routine, rewriteStats) {
	out := &plsql.Routine{
		Name:       r.Name,
		Params:     r.Params,
		IsFunction: r.IsFunction,
		ReturnType: r.ReturnType,
	}
	var stats rewriteStats

	// Shadow declarations go first: original initializers may carry rewritten
	// references, and the target evaluates declarations in order.
	for _, folded := range an.order {
		u := an.cursors[folded]
		if u.FlagVar == "" {
			continue
		}
		// Initialized false: querying the flag before the first OPEN must
		// behave like an unopened cursor.
		out.Decls = append(out.Decls, plsql.VarDecl{
			Name: u.FlagVar,
			Text: u.FlagVar + " boolean := false",
		})
	}
	if an.rowCountVar != "" {
		out.Decls = append(out.Decls, plsql.VarDecl{
			Name: an.rowCountVar,
			Text: an.rowCountVar + " integer := 0",
		})
	}
	for _, d := range r.Decls {
		switch d := d.(type) {
		case plsql.VarDecl:
			text, n := substituteAttrs(d.Text, an)
			stats.Rewritten += n
			out.Decls = append(out.Decls, plsql.VarDecl{Name: d.Name, Text: text})
		case plsql.CursorDecl:
			query, n := substituteAttrs(d.Query, an)
			stats.Rewritten += n
			out.Decls = append(out.Decls, plsql.CursorDecl{Name: d.Name, Params: d.Params, Query: query})
		default:
			out.Decls = append(out.Decls, d)
		}
	}

	for _, stmt := range r.Statements {
		text, n := substituteAttrs(stmt.Raw(), an)
		stats.Rewritten += n

		switch s := stmt.(type) {
		case plsql.OpenStmt:
			out.Statements = append(out.Statements, plsql.OpenStmt{Cursor: s.Cursor, Text: text})
			if flag := flagFor(an, s.Cursor); flag != "" {
				out.Statements = append(out.Statements, assign(flag, "true"))
			}
		case plsql.CloseStmt:
			out.Statements = append(out.Statements, plsql.CloseStmt{Cursor: s.Cursor, Text: text})
			if flag := flagFor(an, s.Cursor); flag != "" {
				out.Statements = append(out.Statements, assign(flag, "false"))
			}
		case plsql.FetchStmt:
			out.Statements = append(out.Statements, plsql.FetchStmt{Cursor: s.Cursor, Into: s.Into, Text: text})
			if an.rowCountVar != "" {
				out.Statements = append(out.Statements, getDiagnostics(an.rowCountVar))
			}
		case plsql.ModifyingStmt:
			out.Statements = append(out.Statements, plsql.ModifyingStmt{Verb: s.Verb, Text: text})
			if an.rowCountVar != "" {
				out.Statements = append(out.Statements, getDiagnostics(an.rowCountVar))
			}
		default:
			out.Statements = append(out.Statements, plsql.OtherStmt{Text: text})
		}
	}

	stats.Unresolved = len(an.unresolved)
	return out, stats
}

// substituteAttrs replaces resolvable cursor attribute references in one
// chunk of text and returns the new text plus the number of substitutions.
// References the analyzer could not resolve pass through untouched. Matching
// runs over literal-masked text so string contents are never rewritten; the
// offsets map back into the original.
func substituteAttrs(text string, an *cursorAnalysis) (string, int) {
	count := 0
	var b strings.Builder
	last := 0
	for _, loc := range attrPattern.FindAllStringSubmatchIndex(plsql.MaskLiterals(text), -1) {
		ident := text[loc[2]:loc[3]]
		attr := plsql.Fold(text[loc[4]:loc[5]])

		replacement, ok := resolveAttr(an, ident, attr)
		if !ok {
			continue
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(replacement)
		last = loc[1]
		count++
	}
	if count == 0 {
		return text, 0
	}
	b.WriteString(text[last:])
	return b.String(), count
}

func resolveAttr(an *cursorAnalysis, ident, attr string) (string, bool) {
	folded := plsql.Fold(ident)
	if folded == "sql" {
		switch attr {
		case "rowcount":
			return an.rowCountVar, an.rowCountVar != ""
		case "isopen":
			return "false", true
		}
		return "", false
	}
	u, ok := an.cursors[folded]
	if !ok {
		return "", false
	}
	switch attr {
	case "isopen":
		return u.FlagVar, u.FlagVar != ""
	case "rowcount":
		return an.rowCountVar, an.rowCountVar != ""
	}
	return "", false
}

func flagFor(an *cursorAnalysis, cursor string) string {
	if u, ok := an.cursors[plsql.Fold(cursor)]; ok {
		return u.FlagVar
	}
	return ""
}

func assign(name, value string) plsql.Statement {
	return plsql.OtherStmt{Text: name + " := " + value}
}

func getDiagnostics(rowCountVar string) plsql.Statement {
	return plsql.OtherStmt{Text: "GET DIAGNOSTICS " + rowCountVar + " = ROW_COUNT"}
}
