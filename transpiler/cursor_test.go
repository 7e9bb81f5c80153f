package transpiler

import (
	"testing"

	"github.com/ha1tch/orapiler/plsql"
)

// routineFromSource parses a single-routine package body and returns the
// routine, so analyzer tests exercise the same front end production code
// sees.
func routineFromSource(t *testing.T, routineSrc string) *plsql.Routine {
	t.Helper()
	body := "CREATE OR REPLACE PACKAGE BODY tb AS\n" + routineSrc + "\nEND tb;"
	pkg, err := plsql.ParsePackage("", body)
	if err != nil {
		t.Fatalf("ParsePackage failed: %v", err)
	}
	if len(pkg.Body) != 1 {
		t.Fatalf("Expected 1 routine, got %d", len(pkg.Body))
	}
	return &pkg.Body[0]
}

func TestAnalyzePlansShadowFlag(t *testing.T) {
	r := routineFromSource(t, `
PROCEDURE check_it IS
  CURSOR emp_cur IS SELECT id FROM employees;
BEGIN
  OPEN emp_cur;
  IF emp_cur%ISOPEN THEN
    CLOSE emp_cur;
  END IF;
END check_it;
`)
	an := analyzeCursors(r)

	u, ok := an.cursors["emp_cur"]
	if !ok {
		t.Fatal("Cursor emp_cur not found")
	}
	if u.FlagVar != "emp_cur_isopen" {
		t.Errorf("Expected flag emp_cur_isopen, got %q", u.FlagVar)
	}
	if an.rowCountVar != "" {
		t.Errorf("No %%ROWCOUNT reference, expected no row-count shadow, got %q", an.rowCountVar)
	}
	if len(an.unresolved) != 0 {
		t.Errorf("Expected no unresolved references, got %+v", an.unresolved)
	}
}

func TestAnalyzeSkipsUnreferencedCursor(t *testing.T) {
	r := routineFromSource(t, `
PROCEDURE plain IS
  CURSOR quiet_cur IS SELECT 1 FROM dual;
BEGIN
  OPEN quiet_cur;
  CLOSE quiet_cur;
END plain;
`)
	an := analyzeCursors(r)

	// No attribute references: no dead shadow state.
	if an.cursors["quiet_cur"].FlagVar != "" {
		t.Errorf("Unreferenced cursor must get no shadow flag, got %q", an.cursors["quiet_cur"].FlagVar)
	}
	if an.rowCountVar != "" {
		t.Errorf("Unexpected row-count shadow %q", an.rowCountVar)
	}
}

func TestAnalyzeRowCount(t *testing.T) {
	r := routineFromSource(t, `
PROCEDURE tally IS
  CURSOR c IS SELECT n FROM t;
  v NUMBER;
  seen NUMBER := 0;
BEGIN
  OPEN c;
  FETCH c INTO v;
  seen := c%ROWCOUNT;
  CLOSE c;
END tally;
`)
	an := analyzeCursors(r)

	if an.rowCountVar != "stmt_rowcount" {
		t.Errorf("Expected stmt_rowcount, got %q", an.rowCountVar)
	}
	if an.cursors["c"].FlagVar != "" {
		t.Errorf("No %%ISOPEN reference, expected no flag, got %q", an.cursors["c"].FlagVar)
	}
}

func TestAnalyzeImplicitCursorRowCount(t *testing.T) {
	r := routineFromSource(t, `
PROCEDURE bump IS
  touched NUMBER := 0;
BEGIN
  UPDATE t SET n = n + 1;
  touched := SQL%ROWCOUNT;
END bump;
`)
	an := analyzeCursors(r)

	if an.rowCountVar != "stmt_rowcount" {
		t.Errorf("SQL%%ROWCOUNT must plan the shared row-count shadow, got %q", an.rowCountVar)
	}
	if len(an.unresolved) != 0 {
		t.Errorf("SQL is the implicit cursor, not unresolved: %+v", an.unresolved)
	}
}

func TestAnalyzeUnresolvedReference(t *testing.T) {
	r := routineFromSource(t, `
PROCEDURE lost IS
  v NUMBER;
BEGIN
  v := ghost%ROWCOUNT;
END lost;
`)
	an := analyzeCursors(r)

	if len(an.unresolved) != 1 {
		t.Fatalf("Expected exactly 1 unresolved reference, got %d", len(an.unresolved))
	}
	if an.unresolved[0].Ident != "ghost" || an.unresolved[0].Attr != "ROWCOUNT" {
		t.Errorf("Unexpected unresolved ref: %+v", an.unresolved[0])
	}
	if an.rowCountVar != "" {
		t.Errorf("Unresolved reference must not plan shadow state, got %q", an.rowCountVar)
	}
}

func TestAnalyzeIgnoresStringLiterals(t *testing.T) {
	r := routineFromSource(t, `
PROCEDURE log_it IS
  CURSOR emp_cur IS SELECT id FROM employees;
  msg VARCHAR2(100);
BEGIN
  OPEN emp_cur;
  msg := 'checking emp_cur%ISOPEN now';
  msg := 'ghost%ROWCOUNT is just text';
  CLOSE emp_cur;
END log_it;
`)
	an := analyzeCursors(r)

	if got := an.cursors["emp_cur"].FlagVar; got != "" {
		t.Errorf("Literal mention must not plan a shadow flag, got %q", got)
	}
	if an.rowCountVar != "" {
		t.Errorf("Literal mention must not plan a row-count shadow, got %q", an.rowCountVar)
	}
	if len(an.unresolved) != 0 {
		t.Errorf("Literal mention counted as unresolved: %+v", an.unresolved)
	}
}

func TestAnalyzeDeclarationInitializers(t *testing.T) {
	r := routineFromSource(t, `
PROCEDURE early IS
  CURSOR c IS SELECT 1 FROM dual;
  started BOOLEAN := c%ISOPEN;
  missed NUMBER := ghost%ROWCOUNT;
BEGIN
  OPEN c;
  CLOSE c;
END early;
`)
	an := analyzeCursors(r)

	if got := an.cursors["c"].FlagVar; got != "c_isopen" {
		t.Errorf("Initializer reference must plan a shadow flag, got %q", got)
	}
	if len(an.unresolved) != 1 || an.unresolved[0].Ident != "ghost" {
		t.Errorf("Initializer reference on an undeclared cursor must be unresolved: %+v", an.unresolved)
	}
}

func TestShadowNameCollision(t *testing.T) {
	r := routineFromSource(t, `
PROCEDURE clash IS
  CURSOR c IS SELECT 1 FROM dual;
  c_isopen NUMBER := 5;
BEGIN
  OPEN c;
  IF c%ISOPEN THEN
    CLOSE c;
  END IF;
END clash;
`)
	an := analyzeCursors(r)

	if got := an.cursors["c"].FlagVar; got != "c_isopen_1" {
		t.Errorf("Expected deterministic collision suffix c_isopen_1, got %q", got)
	}
}

func TestShadowNameDeterministic(t *testing.T) {
	src := `
PROCEDURE again IS
  CURSOR c IS SELECT 1 FROM dual;
BEGIN
  IF c%ISOPEN THEN
    NULL;
  END IF;
END again;
`
	first := analyzeCursors(routineFromSource(t, src))
	second := analyzeCursors(routineFromSource(t, src))
	if first.cursors["c"].FlagVar != second.cursors["c"].FlagVar {
		t.Errorf("Shadow naming must be deterministic: %q vs %q",
			first.cursors["c"].FlagVar, second.cursors["c"].FlagVar)
	}
}
