package bytecode

import "math"

// init wires the C8 intrinsic catalog: abs, sqrt, floor, ceiling, sin,
// cos, tan, min2, max2 (fixed arity) and minx/maxx (variadic
// reductions over two-or-more arguments), all computed in double
// precision per spec §4.2.
func init() {
	UnaryIntrinsics["abs"] = math.Abs
	UnaryIntrinsics["sqrt"] = math.Sqrt
	UnaryIntrinsics["floor"] = math.Floor
	UnaryIntrinsics["ceiling"] = math.Ceil
	UnaryIntrinsics["sin"] = math.Sin
	UnaryIntrinsics["cos"] = math.Cos
	UnaryIntrinsics["tan"] = math.Tan

	BinaryIntrinsics["min2"] = math.Min
	BinaryIntrinsics["max2"] = math.Max

	ReductionIntrinsics["minx"] = func(args []float64) float64 {
		m := args[0]
		for _, a := range args[1:] {
			m = math.Min(m, a)
		}
		return m
	}
	ReductionIntrinsics["maxx"] = func(args []float64) float64 {
		m := args[0]
		for _, a := range args[1:] {
			m = math.Max(m, a)
		}
		return m
	}
}

// IntrinsicArity reports how many arguments a fixed-arity intrinsic
// takes; reduction intrinsics (minx/maxx) return -1 (variadic, 2+).
func IntrinsicArity(name string) (int, bool) {
	if _, ok := UnaryIntrinsics[name]; ok {
		return 1, true
	}
	if _, ok := BinaryIntrinsics[name]; ok {
		return 2, true
	}
	if _, ok := ReductionIntrinsics[name]; ok {
		return -1, true
	}
	return 0, false
}
