package plsql

import (
	"fmt"
	"strings"
)

// ParsePackage builds a Package from package spec and package body source.
// specSrc may be empty; the package then has no public surface and every
// body routine translates as private.
//
// This front-end is a block-structure splitter, not a grammar: it finds
// routine boundaries, declaration blocks and statement boundaries, and tags
// cursor and data-modifying statements. Everything else is carried as raw
// text for the rewriter to transform in place.
func ParsePackage(specSrc, bodySrc string) (*Package, error) {
	name, routines, err := parseBody(bodySrc)
	if err != nil {
		return nil, err
	}

	pkg := &Package{Name: name, Body: routines}

	if strings.TrimSpace(specSrc) != "" {
		specName, sigs, err := parseSpec(specSrc)
		if err != nil {
			return nil, err
		}
		if Fold(specName) != Fold(name) {
			return nil, fmt.Errorf("spec declares package %s but body implements %s", specName, name)
		}
		pkg.Spec = sigs
	}

	return pkg, nil
}

// parseSpec extracts the package name and the declared routine signatures.
func parseSpec(src string) (string, []RoutineSignature, error) {
	src = stripComments(src)
	toks := tokenize(src)

	i, name, isBody := findPackageHeader(toks)
	if i < 0 {
		return "", nil, fmt.Errorf("no package header found in spec source")
	}
	if isBody {
		return "", nil, fmt.Errorf("expected package spec, found package body %s", name)
	}

	var sigs []RoutineSignature
	for i < len(toks) {
		t := toks[i]
		if t.kind != tokWord {
			i++
			continue
		}
		switch Fold(t.text) {
		case "procedure", "function":
			sig, next, err := parseSignature(src, toks, i)
			if err != nil {
				return "", nil, err
			}
			sigs = append(sigs, sig)
			i = next
		case "end":
			return name, sigs, nil
		default:
			// Shared variable, type or pragma declaration: skip to its
			// terminating semicolon.
			i = skipToSemicolon(toks, i)
		}
	}
	return name, sigs, nil
}

// parseSignature reads PROCEDURE name [(params)] or
// FUNCTION name [(params)] RETURN type up to the terminating semicolon.
// toks[i] is the PROCEDURE/FUNCTION keyword.
func parseSignature(src string, toks []token, i int) (RoutineSignature, int, error) {
	sig := RoutineSignature{IsFunction: Fold(toks[i].text) == "function"}
	i++
	if i >= len(toks) || toks[i].kind != tokWord {
		return sig, i, fmt.Errorf("routine declaration without a name")
	}
	sig.Name = toks[i].text
	i++

	if i < len(toks) && toks[i].isSymbol("(") {
		close, err := matchParen(toks, i)
		if err != nil {
			return sig, i, err
		}
		sig.Params = parseParams(src[toks[i].end:toks[close].start])
		i = close + 1
	}

	if sig.IsFunction {
		if i < len(toks) && toks[i].kind == tokWord && Fold(toks[i].text) == "return" {
			start := toks[i].end
			i++
			for i < len(toks) && !toks[i].isSymbol(";") {
				i++
			}
			if i < len(toks) {
				sig.ReturnType = strings.TrimSpace(src[start:toks[i].start])
			}
		}
	}

	return sig, skipToSemicolon(toks, i), nil
}

// parseBody extracts the package name and routine definitions from body source.
func parseBody(src string) (string, []Routine, error) {
	src = stripComments(src)
	toks := tokenize(src)

	i, name, isBody := findPackageHeader(toks)
	if i < 0 {
		return "", nil, fmt.Errorf("no package header found in body source")
	}
	if !isBody {
		return "", nil, fmt.Errorf("expected package body, found package spec %s", name)
	}

	var routines []Routine
	for i < len(toks) {
		t := toks[i]
		if t.kind != tokWord {
			i++
			continue
		}
		switch Fold(t.text) {
		case "procedure", "function":
			r, next, err := parseRoutine(src, toks, i)
			if err != nil {
				return "", nil, fmt.Errorf("routine %s: %w", r.Name, err)
			}
			routines = append(routines, r)
			i = next
		case "end":
			return name, routines, nil
		default:
			// Package-level variable or initialization section: skip.
			i = skipToSemicolon(toks, i)
		}
	}
	return name, routines, nil
}

// parseRoutine reads one routine definition. toks[i] is PROCEDURE/FUNCTION.
// Returns the routine and the index of the first token after its
// terminating semicolon.
func parseRoutine(src string, toks []token, i int) (Routine, int, error) {
	r := Routine{IsFunction: Fold(toks[i].text) == "function"}
	i++
	if i >= len(toks) || toks[i].kind != tokWord {
		return r, i, fmt.Errorf("definition without a name")
	}
	r.Name = toks[i].text
	i++

	if i < len(toks) && toks[i].isSymbol("(") {
		close, err := matchParen(toks, i)
		if err != nil {
			return r, i, err
		}
		r.Params = parseParams(src[toks[i].end:toks[close].start])
		i = close + 1
	}

	if r.IsFunction && i < len(toks) && toks[i].kind == tokWord && Fold(toks[i].text) == "return" {
		start := toks[i].end
		i++
		for i < len(toks) && !(toks[i].kind == tokWord && (Fold(toks[i].text) == "is" || Fold(toks[i].text) == "as")) {
			i++
		}
		if i < len(toks) {
			r.ReturnType = strings.TrimSpace(src[start:toks[i].start])
		}
	}

	if i >= len(toks) || toks[i].kind != tokWord || (Fold(toks[i].text) != "is" && Fold(toks[i].text) != "as") {
		return r, i, fmt.Errorf("missing IS/AS")
	}
	i++

	// Declaration block runs until the routine's own BEGIN.
	declStart := -1
	if i < len(toks) {
		declStart = toks[i].start
	}
	for i < len(toks) && !(toks[i].kind == tokWord && Fold(toks[i].text) == "begin") {
		i++
	}
	if i >= len(toks) {
		return r, i, fmt.Errorf("missing BEGIN")
	}
	if declStart >= 0 {
		r.Decls = parseDecls(src[declStart:toks[i].start])
	}
	i++ // past BEGIN

	// Executable section: balanced against IF/LOOP/CASE/BEGIN openers until
	// the END that closes the routine.
	bodyStart := -1
	if i < len(toks) {
		bodyStart = toks[i].start
	}
	depth := 1
	bodyEnd := -1
	for i < len(toks) {
		t := toks[i]
		if t.kind == tokWord {
			switch Fold(t.text) {
			case "begin", "if", "loop", "case":
				// END IF / END LOOP / END CASE: the opener keyword right
				// after END belongs to that END, it opens nothing.
				if i == 0 || toks[i-1].kind != tokWord || Fold(toks[i-1].text) != "end" {
					depth++
				}
			case "end":
				depth--
				if depth == 0 {
					bodyEnd = t.start
				}
			}
		}
		if depth == 0 {
			break
		}
		i++
	}
	if bodyEnd < 0 {
		return r, i, fmt.Errorf("unbalanced blocks, no closing END")
	}
	if bodyStart >= 0 {
		r.Statements = splitStatements(src[bodyStart:bodyEnd])
	}
	return r, skipToSemicolon(toks, i), nil
}

// splitStatements cuts an executable section into the flat statement list.
// Cuts happen at semicolons and after block-opening keywords (THEN, ELSE,
// LOOP, BEGIN, DECLARE) so that a statement following an opener is its own
// node and shadow-state writes can be spliced right after it. THEN and ELSE
// inside a CASE expression belong to the expression, not the block
// structure, and never cut.
func splitStatements(body string) []Statement {
	toks := tokenize(body)
	var stmts []Statement
	var blocks []bool // opener stack; true marks a CASE expression
	start := 0
	flush := func(end int) {
		chunk := strings.TrimSpace(body[start:end])
		if chunk != "" {
			stmts = append(stmts, classifyStatement(chunk))
		}
	}
	inExprCase := func() bool {
		for _, e := range blocks {
			if e {
				return true
			}
		}
		return false
	}
	for i, t := range toks {
		if t.isSymbol(";") {
			flush(t.start)
			start = t.end
			continue
		}
		if t.kind != tokWord {
			continue
		}
		word := Fold(t.text)
		// END IF / END LOOP / END CASE: the keyword right after END closes
		// a block, it opens nothing.
		prevEnd := i > 0 && toks[i-1].kind == tokWord && Fold(toks[i-1].text) == "end"
		switch word {
		case "if", "loop", "begin", "case":
			if !prevEnd {
				// A CASE opening mid-chunk is an expression; cutting at its
				// THEN/ELSE would tear the expression apart.
				expr := word == "case" && strings.TrimSpace(body[start:t.start]) != ""
				blocks = append(blocks, expr)
			}
		case "end":
			if len(blocks) > 0 {
				blocks = blocks[:len(blocks)-1]
			}
		}
		switch word {
		case "then", "else":
			if !inExprCase() {
				flush(t.end)
				start = t.end
			}
		case "begin", "declare":
			flush(t.end)
			start = t.end
		case "loop":
			if !prevEnd {
				flush(t.end)
				start = t.end
			}
		}
	}
	flush(len(body))
	return stmts
}

// classifyStatement tags one raw statement chunk.
func classifyStatement(chunk string) Statement {
	toks := tokenize(chunk)
	if len(toks) == 0 || toks[0].kind != tokWord {
		return OtherStmt{Text: chunk}
	}
	switch Fold(toks[0].text) {
	case "open":
		if len(toks) > 1 && toks[1].kind == tokWord {
			return OpenStmt{Cursor: toks[1].text, Text: chunk}
		}
	case "close":
		if len(toks) > 1 && toks[1].kind == tokWord {
			return CloseStmt{Cursor: toks[1].text, Text: chunk}
		}
	case "fetch":
		if len(toks) > 1 && toks[1].kind == tokWord {
			return FetchStmt{Cursor: toks[1].text, Into: fetchTargets(chunk, toks), Text: chunk}
		}
	case "insert", "update", "delete", "merge":
		return ModifyingStmt{Verb: strings.ToUpper(toks[0].text), Text: chunk}
	}
	return OtherStmt{Text: chunk}
}

// fetchTargets extracts the INTO target list of a FETCH statement.
func fetchTargets(chunk string, toks []token) []string {
	for i, t := range toks {
		if t.kind == tokWord && Fold(t.text) == "into" && i+1 < len(toks) {
			rest := chunk[toks[i+1].start:]
			parts := strings.Split(rest, ",")
			targets := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					targets = append(targets, p)
				}
			}
			return targets
		}
	}
	return nil
}

// parseDecls splits a declaration block into variable and cursor entries.
func parseDecls(raw string) []Declaration {
	toks := tokenize(raw)
	var decls []Declaration
	start := 0
	i := 0
	for i < len(toks) {
		t := toks[i]
		if t.isSymbol("(") {
			close, err := matchParen(toks, i)
			if err != nil {
				return decls
			}
			i = close + 1
			continue
		}
		if t.isSymbol(";") {
			if d, ok := parseDecl(strings.TrimSpace(raw[start:t.start])); ok {
				decls = append(decls, d)
			}
			start = t.end
		}
		i++
	}
	return decls
}

// parseDecl parses a single declaration entry.
func parseDecl(text string) (Declaration, bool) {
	toks := tokenize(text)
	if len(toks) == 0 || toks[0].kind != tokWord {
		return nil, false
	}
	first := Fold(toks[0].text)
	if first == "cursor" && len(toks) > 1 && toks[1].kind == tokWord {
		c := CursorDecl{Name: toks[1].text}
		i := 2
		if i < len(toks) && toks[i].isSymbol("(") {
			close, err := matchParen(toks, i)
			if err != nil {
				return nil, false
			}
			c.Params = strings.TrimSpace(text[toks[i].start:toks[close].end])
			i = close + 1
		}
		if i < len(toks) && toks[i].kind == tokWord {
			kw := Fold(toks[i].text)
			if kw == "is" || kw == "for" {
				c.Query = strings.TrimSpace(text[toks[i].end:])
			}
		}
		return c, true
	}
	name := toks[0].text
	if (first == "type" || first == "subtype") && len(toks) > 1 && toks[1].kind == tokWord {
		name = toks[1].text
	}
	return VarDecl{Name: name, Text: text}, true
}

// parseParams splits a parameter list (text between the outer parens).
func parseParams(raw string) []Param {
	var params []Param
	for _, part := range splitTopLevel(raw, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		params = append(params, parseParam(part))
	}
	return params
}

func parseParam(text string) Param {
	var p Param
	toks := tokenize(text)
	if len(toks) == 0 {
		return p
	}
	p.Name = toks[0].text
	i := 1
	// Mode: IN, OUT, or IN OUT. NOCOPY hints are dropped.
	for i < len(toks) && toks[i].kind == tokWord {
		kw := Fold(toks[i].text)
		if kw != "in" && kw != "out" && kw != "nocopy" {
			break
		}
		if kw != "nocopy" {
			if p.Mode == "" {
				p.Mode = strings.ToUpper(kw)
			} else {
				p.Mode += " " + strings.ToUpper(kw)
			}
		}
		i++
	}
	if p.Mode == "" {
		p.Mode = "IN"
	}
	if i >= len(toks) {
		return p
	}
	typeStart := toks[i].start
	typeEnd := len(text)
	for ; i < len(toks); i++ {
		t := toks[i]
		if t.isSymbol(":") && i+1 < len(toks) && toks[i+1].isSymbol("=") {
			typeEnd = t.start
			p.Default = strings.TrimSpace(text[toks[i+1].end:])
			break
		}
		if t.kind == tokWord && Fold(t.text) == "default" {
			typeEnd = t.start
			p.Default = strings.TrimSpace(text[t.end:])
			break
		}
	}
	p.DataType = strings.TrimSpace(text[typeStart:typeEnd])
	return p
}

// findPackageHeader locates CREATE [OR REPLACE] PACKAGE [BODY] name IS|AS.
// Returns the token index just after the IS/AS, the package name, and
// whether the header is a body header.
func findPackageHeader(toks []token) (int, string, bool) {
	for i := 0; i < len(toks); i++ {
		if toks[i].kind != tokWord || Fold(toks[i].text) != "package" {
			continue
		}
		j := i + 1
		isBody := false
		if j < len(toks) && toks[j].kind == tokWord && Fold(toks[j].text) == "body" {
			isBody = true
			j++
		}
		if j >= len(toks) || toks[j].kind != tokWord {
			continue
		}
		name := toks[j].text
		j++
		// Optional schema qualification: take the last identifier.
		for j+1 < len(toks) && toks[j].isSymbol(".") && toks[j+1].kind == tokWord {
			name = toks[j+1].text
			j += 2
		}
		if j < len(toks) && toks[j].kind == tokWord {
			kw := Fold(toks[j].text)
			if kw == "is" || kw == "as" {
				return j + 1, name, isBody
			}
		}
	}
	return -1, "", false
}

// skipToSemicolon advances past the next top-level semicolon.
func skipToSemicolon(toks []token, i int) int {
	for i < len(toks) {
		if toks[i].isSymbol("(") {
			if close, err := matchParen(toks, i); err == nil {
				i = close + 1
				continue
			}
		}
		if toks[i].isSymbol(";") {
			return i + 1
		}
		i++
	}
	return i
}

// matchParen returns the index of the ')' matching the '(' at i.
func matchParen(toks []token, i int) (int, error) {
	depth := 0
	for ; i < len(toks); i++ {
		if toks[i].isSymbol("(") {
			depth++
		} else if toks[i].isSymbol(")") {
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return -1, fmt.Errorf("unbalanced parentheses")
}

// ParseParamList parses a raw parameter list (text between the outer
// parens, or including them). Used by the emitter for cursor parameters.
func ParseParamList(raw string) []Param {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "(")
	raw = strings.TrimSuffix(raw, ")")
	return parseParams(raw)
}

// FirstWord returns the first identifier token of a chunk, folded.
func FirstWord(chunk string) string {
	toks := tokenize(chunk)
	if len(toks) == 0 || toks[0].kind != tokWord {
		return ""
	}
	return Fold(toks[0].text)
}

// LastWord returns the last identifier token of a chunk, folded, or "" when
// the chunk ends with something other than a word.
func LastWord(chunk string) string {
	toks := tokenize(chunk)
	if len(toks) == 0 {
		return ""
	}
	t := toks[len(toks)-1]
	if t.kind != tokWord {
		return ""
	}
	return Fold(t.text)
}

// splitTopLevel splits on sep outside parentheses and string literals.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	inString := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if c == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					i++
				} else {
					inString = false
				}
			}
			continue
		}
		switch c {
		case '\'':
			inString = true
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
