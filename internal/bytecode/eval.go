package bytecode

import (
	"math"

	"github.com/pkg/errors"
)

// VarFetcher resolves a variable reference to its current value. The
// VM supplies this (a variable may live in another context via a
// Linked cell or an include intersection); the evaluator itself knows
// nothing about contexts.
type VarFetcher func(varID uint32) (Value, error)

// Eval walks an expression tree and returns its value. declaredKind is
// the type of the enclosing variable or condition; the final result is
// always coerced into it (spec §4.2's "evaluator contract").
func Eval(e Expr, declaredKind ValueKind, fetch VarFetcher) (Value, error) {
	v, err := eval(e, fetch)
	if err != nil {
		return Value{}, err
	}
	out, err := v.CoerceTo(declaredKind)
	if err != nil {
		return Value{}, errors.Wrap(err, "ARITH: result coercion failed")
	}
	return out, nil
}

func eval(e Expr, fetch VarFetcher) (Value, error) {
	switch n := e.(type) {
	case *ConstExpr:
		return n.Value, nil
	case *VarRefExpr:
		if !n.Resolved {
			return Value{}, errors.Errorf("RUNTIME-UNDEF: unresolved variable reference %q", n.Name)
		}
		return fetch(n.ID)
	case *UnaryExpr:
		return evalUnary(n, fetch)
	case *BinaryExpr:
		return evalBinary(n, fetch)
	case *IntrinsicExpr:
		return evalIntrinsic(n, fetch)
	case *ReductionExpr:
		return evalReduction(n, fetch)
	default:
		return Value{}, errors.Errorf("unknown expression node %T", e)
	}
}

func evalUnary(n *UnaryExpr, fetch VarFetcher) (Value, error) {
	v, err := eval(n.Operand, fetch)
	if err != nil {
		return Value{}, err
	}
	switch n.Op {
	case "-":
		switch v.Kind {
		case KindInt:
			return Int(-v.I), nil
		case KindFloat:
			return Float(-v.F), nil
		case KindBool:
			// Bool is numeric-castable; negate as Int per the
			// additive/unary width ordering Bool < Int.
			b, _ := v.CoerceTo(KindInt)
			return Int(-b.I), nil
		default:
			return Value{}, errors.Errorf("TYPE: cannot negate %s value", v.Kind)
		}
	case "!":
		b, err := v.CoerceTo(KindBool)
		if err != nil {
			return Value{}, errors.Wrap(err, "TYPE: '!' requires a boolean-castable operand")
		}
		return Bool(!b.B), nil
	default:
		return Value{}, errors.Errorf("unknown unary operator %q", n.Op)
	}
}

func evalBinary(n *BinaryExpr, fetch VarFetcher) (Value, error) {
	l, err := eval(n.Left, fetch)
	if err != nil {
		return Value{}, err
	}
	r, err := eval(n.Right, fetch)
	if err != nil {
		return Value{}, err
	}

	switch {
	case IsLogical(n.Op):
		return evalLogical(n.Op, l, r)
	case IsShift(n.Op):
		return evalShift(n.Op, l, r)
	case n.Op == "^":
		return evalExponent(l, r)
	default:
		return evalArithOrCompare(n.Op, n.Cast, l, r)
	}
}

func evalLogical(op string, l, r Value) (Value, error) {
	lb, err := l.CoerceTo(KindBool)
	if err != nil {
		return Value{}, errors.Wrapf(err, "TYPE: %q requires boolean-castable operands", op)
	}
	rb, err := r.CoerceTo(KindBool)
	if err != nil {
		return Value{}, errors.Wrapf(err, "TYPE: %q requires boolean-castable operands", op)
	}
	switch op {
	case "&&":
		return Bool(lb.B && rb.B), nil
	case "||":
		return Bool(lb.B || rb.B), nil
	}
	return Value{}, errors.Errorf("unknown logical operator %q", op)
}

func evalShift(op string, l, r Value) (Value, error) {
	li, err := l.CoerceTo(KindInt)
	if err != nil {
		return Value{}, errors.Wrapf(err, "TYPE: %q requires integer operands", op)
	}
	ri, err := r.CoerceTo(KindInt)
	if err != nil {
		return Value{}, errors.Wrapf(err, "TYPE: %q requires integer operands", op)
	}
	if ri.I < 0 || ri.I > 31 {
		return Value{}, errors.Errorf("ARITH: shift amount %d out of range", ri.I)
	}
	switch op {
	case "<<":
		return Int(li.I << uint(ri.I)), nil
	case ">>":
		return Int(li.I >> uint(ri.I)), nil
	}
	return Value{}, errors.Errorf("unknown shift operator %q", op)
}

func evalExponent(l, r Value) (Value, error) {
	lf, err := l.AsFloat64()
	if err != nil {
		return Value{}, errors.Wrap(err, "TYPE: '^' requires numeric operands")
	}
	rf, err := r.AsFloat64()
	if err != nil {
		return Value{}, errors.Wrap(err, "TYPE: '^' requires numeric operands")
	}
	result := math.Pow(lf, rf)
	return Float(float32(result)), nil
}

func evalArithOrCompare(op string, cast CastPolicy, l, r Value) (Value, error) {
	target, err := commonKind(cast, l.Kind, r.Kind)
	if err != nil {
		return Value{}, err
	}
	spec, ok := BinaryOperator(op)
	if !ok {
		return Value{}, errors.Errorf("unknown operator %q", op)
	}
	if !kindAllowed(spec.Allowed, target) {
		return Value{}, errors.Errorf("TYPE: operator %q does not allow %s operands", op, target)
	}
	lc, err := l.CoerceTo(target)
	if err != nil {
		return Value{}, errors.Wrapf(err, "TYPE: operand of %q cannot be cast to %s", op, target)
	}
	rc, err := r.CoerceTo(target)
	if err != nil {
		return Value{}, errors.Wrapf(err, "TYPE: operand of %q cannot be cast to %s", op, target)
	}

	if IsComparison(op) {
		return evalCompare(op, lc, rc, target)
	}
	return evalArith(op, lc, rc, target)
}

func kindAllowed(allowed []ValueKind, k ValueKind) bool {
	for _, a := range allowed {
		if a == k {
			return true
		}
	}
	return false
}

func commonKind(cast CastPolicy, lk, rk ValueKind) (ValueKind, error) {
	switch cast {
	case CastLeftToRight:
		return rk, nil
	case CastRightToLeft:
		return lk, nil
	case CastToMinimum:
		if width(lk) <= width(rk) {
			return lk, nil
		}
		return rk, nil
	case CastToMaximum, CastNone:
		if width(lk) >= width(rk) {
			return lk, nil
		}
		return rk, nil
	default:
		return 0, errors.Errorf("unknown cast policy %v", cast)
	}
}

func evalArith(op string, l, r Value, kind ValueKind) (Value, error) {
	switch kind {
	case KindInt:
		switch op {
		case "+":
			return Int(l.I + r.I), nil
		case "-":
			return Int(l.I - r.I), nil
		case "*":
			return Int(l.I * r.I), nil
		case "/":
			if r.I == 0 {
				return Value{}, errors.New("ARITH-DIV0: integer division by zero")
			}
			return Int(l.I / r.I), nil
		case "%":
			if r.I == 0 {
				return Value{}, errors.New("ARITH-DIV0: integer modulo by zero")
			}
			return Int(l.I % r.I), nil
		}
	case KindFloat:
		lf, rf := float64(l.F), float64(r.F)
		switch op {
		case "+":
			return Float(float32(lf + rf)), nil
		case "-":
			return Float(float32(lf - rf)), nil
		case "*":
			return Float(float32(lf * rf)), nil
		case "/":
			if rf == 0 {
				return Value{}, errors.New("ARITH-DIV0: floating division by zero")
			}
			return Float(float32(lf / rf)), nil
		case "%":
			if rf == 0 {
				return Value{}, errors.New("ARITH-DIV0: floating modulo by zero")
			}
			return Float(float32(math.Mod(lf, rf))), nil
		}
	}
	return Value{}, errors.Errorf("TYPE: operator %q not allowed on %s operands", op, kind)
}

func evalCompare(op string, l, r Value, kind ValueKind) (Value, error) {
	var cmp int
	switch kind {
	case KindBool:
		cmp = boolCompare(l.B, r.B)
	case KindInt:
		cmp = intCompare(l.I, r.I)
	case KindFloat:
		cmp = floatCompare(l.F, r.F)
	default:
		return Value{}, errors.Errorf("TYPE: operator %q not allowed on %s operands", op, kind)
	}
	switch op {
	case "==":
		return Bool(cmp == 0), nil
	case "!=":
		return Bool(cmp != 0), nil
	case "<":
		return Bool(cmp < 0), nil
	case ">":
		return Bool(cmp > 0), nil
	case "<=":
		return Bool(cmp <= 0), nil
	case ">=":
		// Implemented as a true greater-or-equal; see spec §9 open
		// question about the source toolchain's apparent ">="/"<" bug.
		return Bool(cmp >= 0), nil
	}
	return Value{}, errors.Errorf("unknown comparison operator %q", op)
}

func boolCompare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a && b:
		return -1
	default:
		return 1
	}
}

func intCompare(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func floatCompare(a, b float32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func evalIntrinsic(n *IntrinsicExpr, fetch VarFetcher) (Value, error) {
	args, err := evalArgs(n.Args, fetch)
	if err != nil {
		return Value{}, err
	}
	if fn, ok := UnaryIntrinsics[n.Name]; ok {
		if len(args) != 1 {
			return Value{}, errors.Errorf("%s takes exactly 1 argument, got %d", n.Name, len(args))
		}
		return Float(float32(fn(args[0]))), nil
	}
	if fn, ok := BinaryIntrinsics[n.Name]; ok {
		if len(args) != 2 {
			return Value{}, errors.Errorf("%s takes exactly 2 arguments, got %d", n.Name, len(args))
		}
		return Float(float32(fn(args[0], args[1]))), nil
	}
	return Value{}, errors.Errorf("unknown intrinsic %q", n.Name)
}

func evalReduction(n *ReductionExpr, fetch VarFetcher) (Value, error) {
	args, err := evalArgs(n.Args, fetch)
	if err != nil {
		return Value{}, err
	}
	fn, ok := ReductionIntrinsics[n.Name]
	if !ok {
		return Value{}, errors.Errorf("unknown reduction intrinsic %q", n.Name)
	}
	if len(args) < 2 {
		return Value{}, errors.Errorf("%s requires at least 2 arguments, got %d", n.Name, len(args))
	}
	return Float(float32(fn(args))), nil
}

func evalArgs(exprs []Expr, fetch VarFetcher) ([]float64, error) {
	out := make([]float64, 0, len(exprs))
	for _, a := range exprs {
		v, err := eval(a, fetch)
		if err != nil {
			return nil, err
		}
		f, err := v.AsFloat64()
		if err != nil {
			return nil, errors.Wrap(err, "TYPE: intrinsic argument must be numeric")
		}
		out = append(out, f)
	}
	return out, nil
}
