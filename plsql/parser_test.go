package plsql

import (
	"strings"
	"testing"
)

const testSpec = `
CREATE OR REPLACE PACKAGE emp_mgmt AS
  -- public surface
  PROCEDURE hire_employee(p_name IN VARCHAR2, p_salary IN NUMBER DEFAULT 0);
  FUNCTION head_count(p_dept IN NUMBER) RETURN NUMBER;
END emp_mgmt;
`

const testBody = `
CREATE OR REPLACE PACKAGE BODY emp_mgmt AS

  PROCEDURE hire_employee(p_name IN VARCHAR2, p_salary IN NUMBER DEFAULT 0) IS
    v_count NUMBER := 0;
    CURSOR emp_cur IS SELECT id FROM employees;
  BEGIN
    OPEN emp_cur;
    FETCH emp_cur INTO v_count;
    IF emp_cur%ISOPEN THEN
      CLOSE emp_cur;
    END IF;
    INSERT INTO employees(name, salary) VALUES (p_name, p_salary);
  END hire_employee;

  FUNCTION head_count(p_dept IN NUMBER) RETURN NUMBER IS
    v_total NUMBER;
  BEGIN
    SELECT COUNT(*) INTO v_total FROM employees WHERE dept_id = p_dept;
    RETURN v_total;
  END head_count;

  PROCEDURE purge_all IS
  BEGIN
    DELETE FROM employees;
  END purge_all;

END emp_mgmt;
`

func TestParsePackage(t *testing.T) {
	pkg, err := ParsePackage(testSpec, testBody)
	if err != nil {
		t.Fatalf("ParsePackage failed: %v", err)
	}

	if pkg.Name != "emp_mgmt" {
		t.Errorf("Expected package emp_mgmt, got %q", pkg.Name)
	}
	if len(pkg.Spec) != 2 {
		t.Fatalf("Expected 2 spec declarations, got %d", len(pkg.Spec))
	}
	if pkg.Spec[0].Name != "hire_employee" || pkg.Spec[0].IsFunction {
		t.Errorf("Unexpected first declaration: %+v", pkg.Spec[0])
	}
	if pkg.Spec[1].Name != "head_count" || !pkg.Spec[1].IsFunction {
		t.Errorf("Unexpected second declaration: %+v", pkg.Spec[1])
	}
	if pkg.Spec[1].ReturnType != "NUMBER" {
		t.Errorf("Expected return type NUMBER, got %q", pkg.Spec[1].ReturnType)
	}
	if len(pkg.Body) != 3 {
		t.Fatalf("Expected 3 body routines, got %d", len(pkg.Body))
	}
}

func TestParseRoutineParams(t *testing.T) {
	pkg, err := ParsePackage(testSpec, testBody)
	if err != nil {
		t.Fatalf("ParsePackage failed: %v", err)
	}

	hire := pkg.Body[0]
	if len(hire.Params) != 2 {
		t.Fatalf("Expected 2 params, got %d", len(hire.Params))
	}
	if hire.Params[0].Name != "p_name" || hire.Params[0].Mode != "IN" || hire.Params[0].DataType != "VARCHAR2" {
		t.Errorf("Unexpected first param: %+v", hire.Params[0])
	}
	if hire.Params[1].Default != "0" {
		t.Errorf("Expected default 0, got %q", hire.Params[1].Default)
	}
}

func TestParseDeclarations(t *testing.T) {
	pkg, err := ParsePackage(testSpec, testBody)
	if err != nil {
		t.Fatalf("ParsePackage failed: %v", err)
	}

	hire := pkg.Body[0]
	if len(hire.Decls) != 2 {
		t.Fatalf("Expected 2 declarations, got %d: %+v", len(hire.Decls), hire.Decls)
	}
	v, ok := hire.Decls[0].(VarDecl)
	if !ok || v.Name != "v_count" {
		t.Errorf("Expected VarDecl v_count, got %+v", hire.Decls[0])
	}
	c, ok := hire.Decls[1].(CursorDecl)
	if !ok || c.Name != "emp_cur" {
		t.Fatalf("Expected CursorDecl emp_cur, got %+v", hire.Decls[1])
	}
	if c.Query != "SELECT id FROM employees" {
		t.Errorf("Unexpected cursor query: %q", c.Query)
	}

	if got := len(pkg.Body[2].Decls); got != 0 {
		t.Errorf("purge_all should have no declarations, got %d", got)
	}
}

func TestStatementTagging(t *testing.T) {
	pkg, err := ParsePackage(testSpec, testBody)
	if err != nil {
		t.Fatalf("ParsePackage failed: %v", err)
	}

	stmts := pkg.Body[0].Statements
	want := []string{"open", "fetch", "other", "close", "other", "modifying"}
	if len(stmts) != len(want) {
		t.Fatalf("Expected %d statements, got %d: %+v", len(want), len(stmts), stmts)
	}
	for i, s := range stmts {
		got := ""
		switch s.(type) {
		case OpenStmt:
			got = "open"
		case CloseStmt:
			got = "close"
		case FetchStmt:
			got = "fetch"
		case ModifyingStmt:
			got = "modifying"
		case OtherStmt:
			got = "other"
		}
		if got != want[i] {
			t.Errorf("Statement %d: expected %s, got %s (%q)", i, want[i], got, s.Raw())
		}
	}

	fetch := stmts[1].(FetchStmt)
	if fetch.Cursor != "emp_cur" {
		t.Errorf("Expected fetch cursor emp_cur, got %q", fetch.Cursor)
	}
	if len(fetch.Into) != 1 || fetch.Into[0] != "v_count" {
		t.Errorf("Unexpected fetch targets: %v", fetch.Into)
	}

	del := pkg.Body[2].Statements[0].(ModifyingStmt)
	if del.Verb != "DELETE" {
		t.Errorf("Expected DELETE, got %q", del.Verb)
	}
}

func TestParsePackageWithoutSpec(t *testing.T) {
	pkg, err := ParsePackage("", testBody)
	if err != nil {
		t.Fatalf("ParsePackage failed: %v", err)
	}
	if len(pkg.Spec) != 0 {
		t.Errorf("Expected empty spec, got %d declarations", len(pkg.Spec))
	}
	if len(pkg.Body) != 3 {
		t.Errorf("Expected 3 body routines, got %d", len(pkg.Body))
	}
}

func TestParsePackageNameMismatch(t *testing.T) {
	otherSpec := strings.ReplaceAll(testSpec, "emp_mgmt", "payroll")
	if _, err := ParsePackage(otherSpec, testBody); err == nil {
		t.Fatal("Expected error for mismatched package names")
	}
}

func TestCommentsAndStringsIgnored(t *testing.T) {
	body := `
CREATE OR REPLACE PACKAGE BODY tricky AS
  PROCEDURE note IS
    v VARCHAR2(100) := 'it''s; not a -- comment; here';
  BEGIN
    -- OPEN ghost;
    /* CLOSE ghost; */
    v := 'BEGIN END';
  END note;
END tricky;
`
	pkg, err := ParsePackage("", body)
	if err != nil {
		t.Fatalf("ParsePackage failed: %v", err)
	}
	stmts := pkg.Body[0].Statements
	if len(stmts) != 1 {
		t.Fatalf("Expected 1 statement, got %d: %+v", len(stmts), stmts)
	}
	if _, ok := stmts[0].(OtherStmt); !ok {
		t.Errorf("Expected OtherStmt, got %T", stmts[0])
	}
	if !strings.Contains(stmts[0].Raw(), "'BEGIN END'") {
		t.Errorf("String literal mangled: %q", stmts[0].Raw())
	}
}

func TestCaseExpressionIsOneStatement(t *testing.T) {
	body := `
CREATE OR REPLACE PACKAGE BODY pick AS
  PROCEDURE label_it(p_n IN NUMBER) IS
    v VARCHAR2(10);
  BEGIN
    v := CASE WHEN p_n > 1 THEN 'many' ELSE 'few' END;
    v := 'done';
  END label_it;
END pick;
`
	pkg, err := ParsePackage("", body)
	if err != nil {
		t.Fatalf("ParsePackage failed: %v", err)
	}
	stmts := pkg.Body[0].Statements
	if len(stmts) != 2 {
		t.Fatalf("Expected 2 statements, got %d: %+v", len(stmts), stmts)
	}
	if got := stmts[0].Raw(); got != "v := CASE WHEN p_n > 1 THEN 'many' ELSE 'few' END" {
		t.Errorf("CASE expression torn apart: %q", got)
	}
}

func TestCaseStatementBranchesSplit(t *testing.T) {
	body := `
CREATE OR REPLACE PACKAGE BODY route AS
  PROCEDURE pick_one(p_n IN NUMBER) IS
    CURSOR c IS SELECT 1 FROM dual;
  BEGIN
    CASE
      WHEN p_n = 1 THEN
        OPEN c;
      ELSE
        NULL;
    END CASE;
  END pick_one;
END route;
`
	pkg, err := ParsePackage("", body)
	if err != nil {
		t.Fatalf("ParsePackage failed: %v", err)
	}
	found := false
	for _, s := range pkg.Body[0].Statements {
		if o, ok := s.(OpenStmt); ok && o.Cursor == "c" {
			found = true
		}
	}
	if !found {
		t.Errorf("OPEN inside a CASE statement branch lost its tag: %+v", pkg.Body[0].Statements)
	}
}

func TestMaskLiterals(t *testing.T) {
	in := "msg := 'a%ISOPEN; it''s text' || x"
	got := MaskLiterals(in)
	if len(got) != len(in) {
		t.Fatalf("Masking must preserve length: %d vs %d", len(got), len(in))
	}
	if strings.Contains(got, "ISOPEN") || strings.Contains(got, ";") {
		t.Errorf("Literal content leaked through the mask: %q", got)
	}
	if !strings.HasSuffix(got, "|| x") {
		t.Errorf("Text outside the literal was masked: %q", got)
	}
}

func TestFold(t *testing.T) {
	if Fold("Emp_Cur") != "emp_cur" {
		t.Errorf("Fold failed: %q", Fold("Emp_Cur"))
	}
	if Fold("  HEAD_COUNT ") != "head_count" {
		t.Errorf("Fold failed: %q", Fold("  HEAD_COUNT "))
	}
}
