// Package pgruntime executes the PL/pgSQL subset that rewritten routine
// bodies use, against scripted cursors and row counts. It exists so tests
// can run a transformed routine and observe the shadow state the rewriter
// injected, instead of asserting on emitted text alone.
package pgruntime

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValueKind discriminates runtime values.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
)

// Value is a runtime value. Numbers are exact decimals, matching the
// numeric type the emitter maps Oracle NUMBER onto.
type Value struct {
	Kind ValueKind
	Bool bool
	Num  decimal.Decimal
	Str  string
}

// Null returns the SQL null value.
func Null() Value {
	return Value{Kind: KindNull}
}

// BoolVal wraps a boolean.
func BoolVal(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// NumberVal wraps an integer as a decimal number.
func NumberVal(n int64) Value {
	return Value{Kind: KindNumber, Num: decimal.NewFromInt(n)}
}

// DecimalVal wraps a decimal number.
func DecimalVal(d decimal.Decimal) Value {
	return Value{Kind: KindNumber, Num: d}
}

// StringVal wraps a string.
func StringVal(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// AsBool returns the boolean content or an error for non-booleans.
func (v Value) AsBool() (bool, error) {
	if v.Kind != KindBool {
		return false, fmt.Errorf("value is not boolean")
	}
	return v.Bool, nil
}

// Equal compares two values. Null equals nothing, including null.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind || v.Kind == KindNull {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindNumber:
		return v.Num.Equal(o.Num)
	case KindString:
		return v.Str == o.Str
	}
	return false
}

// String renders the value for test failure messages.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return v.Num.String()
	default:
		return "'" + v.Str + "'"
	}
}
