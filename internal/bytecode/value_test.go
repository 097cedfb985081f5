package bytecode

import (
	"bytes"
	"testing"

	"github.com/kr/pretty"
)

// TestCoercionTable exercises spec §8's coercion table: BOOL<->INT
// (0/1), INT->FLOAT exact for small magnitudes, FLOAT->INT truncates.
func TestCoercionTable(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		to   ValueKind
		want Value
	}{
		{"bool-true-to-int", Bool(true), KindInt, Int(1)},
		{"bool-false-to-int", Bool(false), KindInt, Int(0)},
		{"int-1-to-bool", Int(1), KindBool, Bool(true)},
		{"int-0-to-bool", Int(0), KindBool, Bool(false)},
		{"int-to-float-exact", Int(16777215), KindFloat, Float(16777215)},
		{"float-truncates-to-int", Float(3.9), KindInt, Int(3)},
		{"float-truncates-negative", Float(-3.9), KindInt, Int(-3)},
		{"bool-to-float", Bool(true), KindFloat, Float(1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.in.CoerceTo(tc.to)
			if err != nil {
				t.Fatalf("CoerceTo(%v) failed: %v", tc.to, err)
			}
			if got != tc.want {
				for _, d := range pretty.Diff(tc.want, got) {
					t.Error(d)
				}
			}
		})
	}
}

func TestValueRoundTrip(t *testing.T) {
	values := []Value{Bool(true), Bool(false), Int(-42), Int(0), Float(3.5), Str("hello")}
	for _, v := range values {
		var buf bytes.Buffer
		if err := WriteValue(&buf, v); err != nil {
			t.Fatalf("WriteValue(%v): %v", v, err)
		}
		got, err := ReadValue(&buf)
		if err != nil {
			t.Fatalf("ReadValue after %v: %v", v, err)
		}
		if got != v {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, v)
		}
	}
}

func TestParseLiteralAcceptsCommaFloat(t *testing.T) {
	v, err := ParseLiteral("3,5", KindFloat)
	if err != nil {
		t.Fatalf("ParseLiteral: %v", err)
	}
	if v.F != 3.5 {
		t.Errorf("got %v, want 3.5", v.F)
	}
}

func TestStringCoercionUsesRender(t *testing.T) {
	v, err := Int(14).CoerceTo(KindString)
	if err != nil {
		t.Fatalf("CoerceTo(String): %v", err)
	}
	if v.S != "14" {
		t.Errorf("got %q, want %q", v.S, "14")
	}
}
