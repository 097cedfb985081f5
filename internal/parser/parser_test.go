package parser

import (
	"testing"

	"tvm/internal/bytecode"
)

func evalInt(t *testing.T, src string) int32 {
	t.Helper()
	e, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	v, err := bytecode.Eval(e, bytecode.KindInt, func(uint32) (bytecode.Value, error) {
		return bytecode.Value{}, nil
	})
	if err != nil {
		t.Fatalf("Eval(%q): %v", src, err)
	}
	return v.I
}

func TestParsePrecedenceMultiplicationBindsTighter(t *testing.T) {
	if got := evalInt(t, "2+3*4"); got != 14 {
		t.Errorf("2+3*4 = %d, want 14", got)
	}
}

func TestParseDoubleNegationCollapses(t *testing.T) {
	if got := evalInt(t, "-(-2)"); got != 2 {
		t.Errorf("-(-2) = %d, want 2", got)
	}
}

func TestParseExponentRightAssociative(t *testing.T) {
	// 2^3^2 == 2^(3^2) == 2^9 == 512, not (2^3)^2 == 64.
	if got := evalInt(t, "2^3^2"); got != 512 {
		t.Errorf("2^3^2 = %d, want 512", got)
	}
}

func TestParseIntrinsicCallArity(t *testing.T) {
	if _, err := Parse("sqrt(1;2)"); err == nil {
		t.Fatal("expected an arity error for sqrt/2")
	}
}

func TestParseReductionRequiresTwoArgs(t *testing.T) {
	if _, err := Parse("minx(1)"); err == nil {
		t.Fatal("expected an arity error for minx/1")
	}
}

func TestParseUnresolvedIdentBecomesVarRef(t *testing.T) {
	e, err := Parse("total")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ref, ok := e.(*bytecode.VarRefExpr)
	if !ok || ref.Resolved || ref.Name != "total" {
		t.Errorf("got %+v", e)
	}
}

func TestParseAtRefBecomesResolvedVarRef(t *testing.T) {
	e, err := Parse("@3")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ref, ok := e.(*bytecode.VarRefExpr)
	if !ok || !ref.Resolved || ref.ID != 3 {
		t.Errorf("got %+v", e)
	}
}

func TestCombineCastPolicyVarVsLiteral(t *testing.T) {
	e, err := Parse("total + 1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	bin, ok := e.(*bytecode.BinaryExpr)
	if !ok {
		t.Fatalf("got %T, want *bytecode.BinaryExpr", e)
	}
	if bin.Cast != bytecode.CastLeftToRight {
		t.Errorf("got cast %v, want CastLeftToRight", bin.Cast)
	}
}

func TestCombineCastPolicyShiftIsNone(t *testing.T) {
	e, err := Parse("total << 1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	bin := e.(*bytecode.BinaryExpr)
	if bin.Cast != bytecode.CastNone {
		t.Errorf("got cast %v, want CastNone", bin.Cast)
	}
}

func TestParseMathConstant(t *testing.T) {
	e, err := Parse("pi")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c, ok := e.(*bytecode.ConstExpr)
	if !ok {
		t.Fatalf("got %T, want *bytecode.ConstExpr", e)
	}
	if c.Value.F < 3.14 || c.Value.F > 3.15 {
		t.Errorf("pi = %v", c.Value.F)
	}
}

func TestParseTrailingInputIsError(t *testing.T) {
	if _, err := Parse("1 + 2)"); err == nil {
		t.Fatal("expected an error for unbalanced trailing ')'")
	}
}

// A whole-number FLOAT constant must render with a fraction so a
// reparse of the rendered text (the post-pass stage-3 round trip)
// still produces a Float leaf, not an Int one.
func TestRenderWholeNumberFloatKeepsFraction(t *testing.T) {
	e := &bytecode.BinaryExpr{
		Op:   "/",
		Left: &bytecode.ConstExpr{Value: bytecode.Float(3)},
		Right: &bytecode.ConstExpr{Value: bytecode.Float(2)},
		Cast: bytecode.CastNone,
	}
	text := Render(e)
	reparsed, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q): %v", text, err)
	}
	bin, ok := reparsed.(*bytecode.BinaryExpr)
	if !ok {
		t.Fatalf("got %T, want *bytecode.BinaryExpr", reparsed)
	}
	left, ok := bin.Left.(*bytecode.ConstExpr)
	if !ok || left.Value.Kind != bytecode.KindFloat {
		t.Fatalf("rendered text %q reparsed left operand as %#v, want a FLOAT const", text, bin.Left)
	}
}
