package parser

import (
	"strconv"
	"strings"

	"tvm/internal/bytecode"
)

// CollectNames returns every distinct unresolved variable name
// referenced anywhere in e, in first-encountered order.
func CollectNames(e bytecode.Expr) []string {
	seen := map[string]bool{}
	var names []string
	var walk func(bytecode.Expr)
	walk = func(e bytecode.Expr) {
		switch n := e.(type) {
		case *bytecode.ConstExpr:
		case *bytecode.VarRefExpr:
			if !n.Resolved && !seen[n.Name] {
				seen[n.Name] = true
				names = append(names, n.Name)
			}
		case *bytecode.UnaryExpr:
			walk(n.Operand)
		case *bytecode.BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *bytecode.IntrinsicExpr:
			for _, a := range n.Args {
				walk(a)
			}
		case *bytecode.ReductionExpr:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(e)
	return names
}

// ResolveNames mutates every unresolved VarRefExpr in e in place,
// replacing its Name with a resolved ID via resolve. It returns the
// set of names resolve could not find, for ERR-UNRESOLVED reporting;
// those nodes are left resolved to ID 0 so the tree stays well-formed
// (spec §4.4: "payload is written with id 0 to keep the binary
// well-formed").
func ResolveNames(e bytecode.Expr, resolve func(name string) (uint32, bool)) []string {
	var missing []string
	var walk func(bytecode.Expr)
	walk = func(e bytecode.Expr) {
		switch n := e.(type) {
		case *bytecode.VarRefExpr:
			if n.Resolved {
				return
			}
			if id, ok := resolve(n.Name); ok {
				n.ID = id
			} else {
				n.ID = 0
				missing = append(missing, n.Name)
			}
			n.Resolved = true
		case *bytecode.UnaryExpr:
			walk(n.Operand)
		case *bytecode.BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *bytecode.IntrinsicExpr:
			for _, a := range n.Args {
				walk(a)
			}
		case *bytecode.ReductionExpr:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(e)
	return missing
}

// Render prints e back to the canonical textual form stored in the
// packed module: every variable reference appears as "@id" (spec
// §4.4 stage 3). Render does not check resolution: a VarRefExpr that
// was never resolved renders with its current ID (0 unless set), so
// the post-pass runs ResolveNames before Render.
func Render(e bytecode.Expr) string {
	var sb strings.Builder
	render(e, &sb)
	return sb.String()
}

func render(e bytecode.Expr, sb *strings.Builder) {
	switch n := e.(type) {
	case *bytecode.ConstExpr:
		sb.WriteString(renderConst(n.Value))
	case *bytecode.VarRefExpr:
		sb.WriteByte('@')
		sb.WriteString(strconv.FormatUint(uint64(n.ID), 10))
	case *bytecode.UnaryExpr:
		sb.WriteString(n.Op)
		sb.WriteByte('(')
		render(n.Operand, sb)
		sb.WriteByte(')')
	case *bytecode.BinaryExpr:
		sb.WriteByte('(')
		render(n.Left, sb)
		sb.WriteByte(' ')
		sb.WriteString(n.Op)
		sb.WriteByte(' ')
		render(n.Right, sb)
		sb.WriteByte(')')
	case *bytecode.IntrinsicExpr:
		sb.WriteString(n.Name)
		sb.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				sb.WriteByte(';')
			}
			render(a, sb)
		}
		sb.WriteByte(')')
	case *bytecode.ReductionExpr:
		sb.WriteString(n.Name)
		sb.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				sb.WriteByte(';')
			}
			render(a, sb)
		}
		sb.WriteByte(')')
	}
}

func renderConst(v bytecode.Value) string {
	switch v.Kind {
	case bytecode.KindBool:
		if v.B {
			return "TRUE"
		}
		return "FALSE"
	case bytecode.KindFloat:
		// Render can drop the fraction for whole-number floats
		// (FormatFloat(3.0, 'f', -1, 32) == "3"); the reparse on the
		// other side of stage 3 must still see a FLOAT literal, not
		// an INT one, or an expression like "(3.0 / 2.0)" would
		// silently become integer division.
		text := v.Render()
		if !strings.Contains(text, ".") {
			text += ".0"
		}
		return text
	default:
		return v.Render()
	}
}
