package pgruntime

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ha1tch/orapiler/plsql"
	"github.com/shopspring/decimal"
)

// Session executes one routine activation: its variables, the cursors it
// may open, and the row count reported by diagnostics retrieval. Modifying
// statements are not executed against real tables; the session reports the
// scripted ModifyRowCount for them.
type Session struct {
	Cursors        *CursorSet
	ModifyRowCount int64

	vars         map[string]Value
	lastRowCount int64
	returned     bool
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		Cursors: NewCursorSet(),
		vars:    make(map[string]Value),
	}
}

// SetVar sets a variable, creating it if needed.
func (s *Session) SetVar(name string, v Value) {
	s.vars[normalize(name)] = v
}

// Var returns a variable's current value.
func (s *Session) Var(name string) (Value, bool) {
	v, ok := s.vars[normalize(name)]
	return v, ok
}

// LastRowCount returns the value the next GET DIAGNOSTICS would copy.
func (s *Session) LastRowCount() int64 {
	return s.lastRowCount
}

// Run declares the routine's variables and cursors, then executes its
// statement sequence. Cursors already scripted on the session keep their
// rows; undeclared ones default to empty row sets.
func (s *Session) Run(r *plsql.Routine) error {
	for _, d := range r.Decls {
		switch d := d.(type) {
		case plsql.VarDecl:
			v, err := s.declValue(d.Text)
			if err != nil {
				return fmt.Errorf("declaration %q: %w", d.Text, err)
			}
			s.SetVar(d.Name, v)
		case plsql.CursorDecl:
			if _, ok := s.Cursors.Get(d.Name); !ok {
				s.Cursors.Declare(d.Name, nil)
			}
		}
	}
	return s.exec(r.Statements)
}

// frame is one entry of the block stack. Conditional frames come from IF;
// BEGIN blocks push unconditional frames so END bookkeeping stays balanced.
type frame struct {
	active      bool
	taken       bool
	conditional bool
}

var (
	assignPattern = regexp.MustCompile(`(?s)^([\w$#]+)\s*:=\s*(.+)$`)
	diagPattern   = regexp.MustCompile(`(?is)^GET\s+DIAGNOSTICS\s+([\w$#]+)\s*=\s*ROW_COUNT$`)
)

func (s *Session) exec(stmts []plsql.Statement) error {
	var blocks []frame
	liveAt := func() bool {
		for _, f := range blocks {
			if !f.active {
				return false
			}
		}
		return true
	}

	for _, stmt := range stmts {
		if s.returned {
			return nil
		}
		live := liveAt()
		raw := strings.TrimSpace(stmt.Raw())
		first := plsql.FirstWord(raw)

		// Block structure is tracked even in dead branches.
		switch first {
		case "if":
			cond := false
			if live {
				var err error
				cond, err = s.evalCondition(trimBetween(raw, "if", "then"))
				if err != nil {
					return err
				}
			}
			blocks = append(blocks, frame{active: cond, taken: cond, conditional: true})
			continue
		case "elsif":
			if len(blocks) == 0 {
				return fmt.Errorf("ELSIF without IF")
			}
			top := &blocks[len(blocks)-1]
			if top.taken {
				top.active = false
				continue
			}
			parentLive := true
			for _, f := range blocks[:len(blocks)-1] {
				if !f.active {
					parentLive = false
					break
				}
			}
			top.active = false
			if parentLive {
				cond, err := s.evalCondition(trimBetween(raw, "elsif", "then"))
				if err != nil {
					return err
				}
				top.active, top.taken = cond, cond
			}
			continue
		case "else":
			if len(blocks) == 0 {
				return fmt.Errorf("ELSE without IF")
			}
			top := &blocks[len(blocks)-1]
			top.active = !top.taken
			top.taken = true
			continue
		case "begin":
			blocks = append(blocks, frame{active: live, taken: true})
			continue
		case "end":
			if len(blocks) == 0 {
				return fmt.Errorf("unbalanced END")
			}
			blocks = blocks[:len(blocks)-1]
			continue
		case "loop", "while", "for", "exit", "case":
			return fmt.Errorf("statement not supported by test runtime: %s", raw)
		}

		if !live {
			continue
		}

		switch st := stmt.(type) {
		case plsql.OpenStmt:
			c, ok := s.Cursors.Get(st.Cursor)
			if !ok {
				return fmt.Errorf("cursor %s is not declared", st.Cursor)
			}
			if err := c.Open(); err != nil {
				return err
			}
		case plsql.CloseStmt:
			c, ok := s.Cursors.Get(st.Cursor)
			if !ok {
				return fmt.Errorf("cursor %s is not declared", st.Cursor)
			}
			if err := c.Close(); err != nil {
				return err
			}
		case plsql.FetchStmt:
			if err := s.fetch(st); err != nil {
				return err
			}
		case plsql.ModifyingStmt:
			s.lastRowCount = s.ModifyRowCount
		default:
			if err := s.simple(raw, first); err != nil {
				return err
			}
		}
	}
	return nil
}

// simple executes a statement with no block structure.
func (s *Session) simple(raw, first string) error {
	switch first {
	case "null":
		return nil
	case "return":
		s.returned = true
		return nil
	case "get":
		m := diagPattern.FindStringSubmatch(raw)
		if m == nil {
			return fmt.Errorf("unsupported diagnostics statement: %s", raw)
		}
		s.SetVar(m[1], NumberVal(s.lastRowCount))
		return nil
	}
	if m := assignPattern.FindStringSubmatch(raw); m != nil {
		v, err := s.evalExpr(m[2])
		if err != nil {
			return err
		}
		s.SetVar(m[1], v)
		return nil
	}
	return fmt.Errorf("statement not supported by test runtime: %s", raw)
}

func (s *Session) fetch(st plsql.FetchStmt) error {
	c, ok := s.Cursors.Get(st.Cursor)
	if !ok {
		return fmt.Errorf("cursor %s is not declared", st.Cursor)
	}
	row, found, err := c.Fetch()
	if err != nil {
		return err
	}
	if found {
		s.lastRowCount = 1
	} else {
		s.lastRowCount = 0
	}
	for i, target := range st.Into {
		if i < len(row) {
			s.SetVar(target, row[i])
		} else {
			s.SetVar(target, Null())
		}
	}
	return nil
}

// declValue evaluates a declaration's initializer, or null when absent.
func (s *Session) declValue(text string) (Value, error) {
	if i := strings.Index(text, ":="); i >= 0 {
		return s.evalExpr(text[i+2:])
	}
	if i := indexWord(strings.ToLower(text), "default"); i >= 0 {
		return s.evalExpr(text[i+len("default"):])
	}
	return Null(), nil
}

func (s *Session) evalCondition(expr string) (bool, error) {
	v, err := s.evalExpr(expr)
	if err != nil {
		return false, err
	}
	if v.Kind == KindNull {
		return false, nil
	}
	return v.AsBool()
}

// evalExpr evaluates the expression subset the rewriter's output and test
// fixtures need: literals, identifiers, NOT, one comparison or one
// arithmetic operator.
func (s *Session) evalExpr(expr string) (Value, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Value{}, fmt.Errorf("empty expression")
	}

	if low := strings.ToLower(expr); strings.HasPrefix(low, "not") &&
		(len(expr) == 3 || expr[3] == ' ' || expr[3] == '(') {
		v, err := s.evalExpr(expr[3:])
		if err != nil {
			return Value{}, err
		}
		b, err := v.AsBool()
		if err != nil {
			return Value{}, err
		}
		return BoolVal(!b), nil
	}

	if l, op, r, ok := splitBinary(expr, []string{"<>", "!=", ">=", "<=", "=", ">", "<"}); ok {
		return s.compare(l, op, r)
	}
	if l, op, r, ok := splitBinary(expr, []string{"+", "-", "*", "/"}); ok {
		return s.arith(l, op, r)
	}
	return s.atom(expr)
}

func (s *Session) compare(l, op, r string) (Value, error) {
	lv, err := s.evalExpr(l)
	if err != nil {
		return Value{}, err
	}
	rv, err := s.evalExpr(r)
	if err != nil {
		return Value{}, err
	}
	if lv.Kind == KindNull || rv.Kind == KindNull {
		return Null(), nil
	}
	switch op {
	case "=":
		return BoolVal(lv.Equal(rv)), nil
	case "<>", "!=":
		return BoolVal(!lv.Equal(rv)), nil
	}
	if lv.Kind != KindNumber || rv.Kind != KindNumber {
		return Value{}, fmt.Errorf("ordering comparison needs numbers: %s %s %s", l, op, r)
	}
	cmp := lv.Num.Cmp(rv.Num)
	switch op {
	case ">":
		return BoolVal(cmp > 0), nil
	case ">=":
		return BoolVal(cmp >= 0), nil
	case "<":
		return BoolVal(cmp < 0), nil
	case "<=":
		return BoolVal(cmp <= 0), nil
	}
	return Value{}, fmt.Errorf("unknown operator %s", op)
}

func (s *Session) arith(l, op, r string) (Value, error) {
	lv, err := s.evalExpr(l)
	if err != nil {
		return Value{}, err
	}
	rv, err := s.evalExpr(r)
	if err != nil {
		return Value{}, err
	}
	if lv.Kind != KindNumber || rv.Kind != KindNumber {
		return Value{}, fmt.Errorf("arithmetic needs numbers: %s %s %s", l, op, r)
	}
	switch op {
	case "+":
		return DecimalVal(lv.Num.Add(rv.Num)), nil
	case "-":
		return DecimalVal(lv.Num.Sub(rv.Num)), nil
	case "*":
		return DecimalVal(lv.Num.Mul(rv.Num)), nil
	case "/":
		if rv.Num.IsZero() {
			return Value{}, fmt.Errorf("division by zero")
		}
		return DecimalVal(lv.Num.Div(rv.Num)), nil
	}
	return Value{}, fmt.Errorf("unknown operator %s", op)
}

func (s *Session) atom(expr string) (Value, error) {
	switch strings.ToLower(expr) {
	case "true":
		return BoolVal(true), nil
	case "false":
		return BoolVal(false), nil
	case "null":
		return Null(), nil
	}
	if expr[0] == '\'' && expr[len(expr)-1] == '\'' && len(expr) >= 2 {
		return StringVal(strings.ReplaceAll(expr[1:len(expr)-1], "''", "'")), nil
	}
	if d, err := decimal.NewFromString(expr); err == nil {
		return DecimalVal(d), nil
	}
	if v, ok := s.Var(expr); ok {
		return v, nil
	}
	return Value{}, fmt.Errorf("identifier %s is not declared", expr)
}

// splitBinary splits expr at the first top-level occurrence of any operator
// in ops, outside string literals.
func splitBinary(expr string, ops []string) (string, string, string, bool) {
	inString := false
	for i := 0; i < len(expr); i++ {
		if expr[i] == '\'' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		for _, op := range ops {
			if strings.HasPrefix(expr[i:], op) {
				left := strings.TrimSpace(expr[:i])
				right := strings.TrimSpace(expr[i+len(op):])
				if left == "" || right == "" {
					continue
				}
				return left, op, right, true
			}
		}
	}
	return "", "", "", false
}

// indexWord finds a whole-word match in an already-lowercased string.
func indexWord(s, word string) int {
	from := 0
	for {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return -1
		}
		i += from
		beforeOK := i == 0 || !isWordChar(s[i-1])
		afterOK := i+len(word) >= len(s) || !isWordChar(s[i+len(word)])
		if beforeOK && afterOK {
			return i
		}
		from = i + len(word)
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' || c == '$' || c == '#'
}

// trimBetween returns the text of raw between leading keyword kw and the
// trailing keyword tail (both case-insensitive).
func trimBetween(raw, kw, tail string) string {
	low := strings.ToLower(raw)
	start := len(kw)
	end := len(raw)
	if i := strings.LastIndex(low, tail); i >= 0 {
		end = i
	}
	if start > end {
		return ""
	}
	return strings.TrimSpace(raw[start:end])
}
