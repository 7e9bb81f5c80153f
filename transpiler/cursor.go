package transpiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ha1tch/orapiler/plsql"
)

// attrPattern matches cursor attribute references: ident%ISOPEN or
// ident%ROWCOUNT, case-insensitive, whitespace allowed around the percent.
var attrPattern = regexp.MustCompile(`(?i)\b([a-zA-Z_][\w$#]*)\s*%\s*(ISOPEN|ROWCOUNT)\b`)

// wordPattern collects identifiers for collision checks.
var wordPattern = regexp.MustCompile(`[a-zA-Z_][\w$#]*`)

// rowCountVarBase is the per-routine shared row-count shadow variable.
// One per routine, not per cursor: the target reports row count for the
// most recent fetch or modifying statement.
const rowCountVarBase = "stmt_rowcount"

// cursorUsage is the shadow-state plan for one declared cursor.
type cursorUsage struct {
	Name    string // declared name, original case
	FlagVar string // is-open shadow identifier, "" when %ISOPEN never referenced
}

// attrRef is an attribute reference the analyzer could not resolve to a
// declared cursor. It stays untranslated and is surfaced as a diagnostic.
type attrRef struct {
	Ident string
	Attr  string
}

// cursorAnalysis is the analyzer's findings for one routine.
type cursorAnalysis struct {
	cursors     map[string]*cursorUsage // folded cursor name -> usage
	order       []string                // folded names in declaration order
	rowCountVar string                  // "" when %ROWCOUNT never referenced
	unresolved  []attrRef
}

// analyzeCursors scans a routine's declarations and statement sequence and
// plans the shadow state the rewriter must inject. Cursors never queried
// through attribute syntax get no shadow state. Attribute references on
// identifiers that are not declared cursors (and not the implicit SQL
// cursor) are recorded, not rejected.
func analyzeCursors(r *plsql.Routine) *cursorAnalysis {
	an := &cursorAnalysis{cursors: make(map[string]*cursorUsage)}

	for _, c := range r.DeclaredCursors() {
		folded := plsql.Fold(c.Name)
		if _, dup := an.cursors[folded]; dup {
			continue
		}
		an.cursors[folded] = &cursorUsage{Name: c.Name}
		an.order = append(an.order, folded)
	}

	needRowCount := false
	isOpenRefs := make(map[string]bool)
	// References inside string literals are text, not attributes: scanning
	// runs over literal-masked text.
	scan := func(text string) {
		for _, m := range attrPattern.FindAllStringSubmatch(plsql.MaskLiterals(text), -1) {
			ident, attr := plsql.Fold(m[1]), plsql.Fold(m[2])
			if ident == "sql" {
				// Implicit cursor: SQL%ROWCOUNT maps onto the shared
				// shadow; SQL%ISOPEN is constant false in the source
				// dialect and substitutes literally.
				if attr == "rowcount" {
					needRowCount = true
				}
				continue
			}
			if _, ok := an.cursors[ident]; !ok {
				an.unresolved = append(an.unresolved, attrRef{Ident: m[1], Attr: strings.ToUpper(m[2])})
				continue
			}
			switch attr {
			case "isopen":
				isOpenRefs[ident] = true
			case "rowcount":
				needRowCount = true
			}
		}
	}
	// Declaration initializers and cursor queries can reference attributes
	// too, not just the executable sequence.
	for _, d := range r.Decls {
		switch d := d.(type) {
		case plsql.VarDecl:
			scan(d.Text)
		case plsql.CursorDecl:
			scan(d.Query)
		}
	}
	for _, stmt := range r.Statements {
		scan(stmt.Raw())
	}

	taken := identifiers(r)
	for _, folded := range an.order {
		if !isOpenRefs[folded] {
			continue
		}
		u := an.cursors[folded]
		u.FlagVar = shadowName(folded+"_isopen", taken)
		taken[u.FlagVar] = struct{}{}
	}
	if needRowCount {
		an.rowCountVar = shadowName(rowCountVarBase, taken)
	}
	return an
}

// identifiers collects every identifier appearing anywhere in the routine,
// folded. Conservative by construction: any word counts, so a generated
// shadow name can never capture an existing one.
func identifiers(r *plsql.Routine) map[string]struct{} {
	idents := make(map[string]struct{})
	add := func(text string) {
		for _, w := range wordPattern.FindAllString(text, -1) {
			idents[plsql.Fold(w)] = struct{}{}
		}
	}
	add(r.Name)
	for _, p := range r.Params {
		add(p.Name)
	}
	for _, d := range r.Decls {
		switch d := d.(type) {
		case plsql.VarDecl:
			add(d.Text)
		case plsql.CursorDecl:
			add(d.Name)
			add(d.Params)
			add(d.Query)
		}
	}
	for _, s := range r.Statements {
		add(s.Raw())
	}
	return idents
}

// shadowName returns base if free, otherwise base with the first free
// numeric suffix. Deterministic, so re-running the pipeline on the same
// input yields identical output.
func shadowName(base string, taken map[string]struct{}) string {
	if _, exists := taken[base]; !exists {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if _, exists := taken[candidate]; !exists {
			return candidate
		}
	}
}
