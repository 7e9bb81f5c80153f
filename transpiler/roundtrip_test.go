package transpiler

import (
	"testing"

	"github.com/ha1tch/orapiler/pgruntime"
)

// The round-trip tests run rewritten routines under the test runtime and
// assert that the injected shadow state tracks real cursor behavior.

func TestRoundTripFlagTracksOpenState(t *testing.T) {
	out, _ := rewriteFromSource(t, `
PROCEDURE check_cursor IS
  CURSOR emp_cur IS SELECT id FROM employees;
  was_open BOOLEAN := false;
BEGIN
  OPEN emp_cur;
  IF emp_cur%ISOPEN THEN
    was_open := true;
    CLOSE emp_cur;
  END IF;
END check_cursor;
`)

	sess := pgruntime.NewSession()
	sess.Cursors.Declare("emp_cur", [][]pgruntime.Value{{pgruntime.NumberVal(7)}})
	if err := sess.Run(out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wasOpen, _ := sess.Var("was_open")
	if !wasOpen.Equal(pgruntime.BoolVal(true)) {
		t.Errorf("Flag must be true between OPEN and CLOSE, was_open = %s", wasOpen)
	}
	flag, _ := sess.Var("emp_cur_isopen")
	if !flag.Equal(pgruntime.BoolVal(false)) {
		t.Errorf("Flag must be false after CLOSE, got %s", flag)
	}
	c, _ := sess.Cursors.Get("emp_cur")
	if c.IsOpen() {
		t.Error("Cursor left open: flag transition did not match a real CLOSE")
	}
}

func TestRoundTripUnopenedCursorFlagIsFalse(t *testing.T) {
	out, _ := rewriteFromSource(t, `
PROCEDURE skip_it IS
  CURSOR c IS SELECT 1 FROM dual;
  touched BOOLEAN := false;
BEGIN
  IF c%ISOPEN THEN
    touched := true;
  END IF;
END skip_it;
`)

	sess := pgruntime.NewSession()
	if err := sess.Run(out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	touched, _ := sess.Var("touched")
	if !touched.Equal(pgruntime.BoolVal(false)) {
		t.Errorf("Never-opened cursor must read as closed, touched = %s", touched)
	}
}

func TestRoundTripRowCountAfterFetch(t *testing.T) {
	out, _ := rewriteFromSource(t, `
PROCEDURE tally IS
  CURSOR c IS SELECT n FROM t;
  v NUMBER;
  a NUMBER := -1;
  b NUMBER := -1;
BEGIN
  OPEN c;
  FETCH c INTO v;
  a := c%ROWCOUNT;
  UPDATE t SET n = 0;
  b := SQL%ROWCOUNT;
  CLOSE c;
END tally;
`)

	sess := pgruntime.NewSession()
	sess.Cursors.Declare("c", [][]pgruntime.Value{{pgruntime.NumberVal(42)}})
	sess.ModifyRowCount = 3
	if err := sess.Run(out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	v, _ := sess.Var("v")
	if !v.Equal(pgruntime.NumberVal(42)) {
		t.Errorf("Fetch target expected 42, got %s", v)
	}
	a, _ := sess.Var("a")
	if !a.Equal(pgruntime.NumberVal(1)) {
		t.Errorf("Row count after a successful fetch must be 1, got %s", a)
	}
	b, _ := sess.Var("b")
	if !b.Equal(pgruntime.NumberVal(3)) {
		t.Errorf("Row count after UPDATE must report the modified rows, got %s", b)
	}
}

func TestRoundTripFetchPastEnd(t *testing.T) {
	out, _ := rewriteFromSource(t, `
PROCEDURE drain IS
  CURSOR c IS SELECT n FROM t;
  v NUMBER;
  got NUMBER := -1;
BEGIN
  OPEN c;
  FETCH c INTO v;
  got := c%ROWCOUNT;
  CLOSE c;
END drain;
`)

	sess := pgruntime.NewSession()
	sess.Cursors.Declare("c", nil) // empty row set
	if err := sess.Run(out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got, _ := sess.Var("got")
	if !got.Equal(pgruntime.NumberVal(0)) {
		t.Errorf("Fetch past the end must report 0 rows, got %s", got)
	}
}
