// Package bytecode defines the value model, expression tree, cell
// storage, and instruction encoding shared by the front-end compiler
// and the execution engine.
package bytecode

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ValueKind is the declared type tag of the toolchain's four primitive
// value types.
type ValueKind byte

const (
	KindBool ValueKind = iota
	KindInt
	KindFloat
	KindString
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "BOOL"
	case KindInt:
		return "INT"
	case KindFloat:
		return "FLOAT"
	case KindString:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// ParseKind maps a source-level TYPE token to its ValueKind.
func ParseKind(s string) (ValueKind, bool) {
	switch s {
	case "BOOL":
		return KindBool, true
	case "INT":
		return KindInt, true
	case "FLOAT":
		return KindFloat, true
	case "STRING":
		return KindString, true
	default:
		return 0, false
	}
}

// width orders Bool < Int < Float for min/max cast policies. String has
// no numeric width and never participates in cast-to-minimum/maximum.
func width(k ValueKind) int {
	switch k {
	case KindBool:
		return 0
	case KindInt:
		return 1
	case KindFloat:
		return 2
	default:
		return -1
	}
}

// Value is a tagged union holding exactly one of the four primitive
// types. The zero Value is the boolean false.
type Value struct {
	Kind ValueKind
	B    bool
	I    int32
	F    float32
	S    string
}

func Bool(b bool) Value     { return Value{Kind: KindBool, B: b} }
func Int(i int32) Value     { return Value{Kind: KindInt, I: i} }
func Float(f float32) Value { return Value{Kind: KindFloat, F: f} }
func Str(s string) Value    { return Value{Kind: KindString, S: s} }

// AsFloat64 widens the value to double precision for intrinsic
// evaluation; it never fails for numeric kinds and treats booleans as
// 0/1.
func (v Value) AsFloat64() (float64, error) {
	switch v.Kind {
	case KindBool:
		if v.B {
			return 1, nil
		}
		return 0, nil
	case KindInt:
		return float64(v.I), nil
	case KindFloat:
		return float64(v.F), nil
	default:
		return 0, errors.Errorf("cannot use %s value as a number", v.Kind)
	}
}

// CoerceTo converts v into the declared type, following the coercion
// table of spec §4.2/§8: Bool<->Int 0/1, Int->Float exact, Float->Int
// truncation, numeric<->String by formatting/parsing.
func (v Value) CoerceTo(target ValueKind) (Value, error) {
	if v.Kind == target {
		return v, nil
	}
	switch target {
	case KindBool:
		switch v.Kind {
		case KindInt:
			return Bool(v.I != 0), nil
		case KindFloat:
			return Bool(v.F != 0), nil
		case KindString:
			b, err := strconv.ParseBool(v.S)
			if err != nil {
				return Value{}, errors.Wrapf(err, "cannot coerce %q to BOOL", v.S)
			}
			return Bool(b), nil
		}
	case KindInt:
		switch v.Kind {
		case KindBool:
			if v.B {
				return Int(1), nil
			}
			return Int(0), nil
		case KindFloat:
			return Int(int32(v.F)), nil
		case KindString:
			n, err := parseIntLiteral(v.S)
			if err != nil {
				return Value{}, err
			}
			return Int(n), nil
		}
	case KindFloat:
		switch v.Kind {
		case KindBool:
			if v.B {
				return Float(1), nil
			}
			return Float(0), nil
		case KindInt:
			return Float(float32(v.I)), nil
		case KindString:
			f, err := parseFloatLiteral(v.S)
			if err != nil {
				return Value{}, err
			}
			return Float(f), nil
		}
	case KindString:
		return Str(v.Render()), nil
	}
	return Value{}, errors.Errorf("no coercion from %s to %s", v.Kind, target)
}

// Render formats v the way WRITE and string coercion present it: a
// decimal point as the floating fraction separator, "true"/"false"
// for booleans, no quoting for strings.
func (v Value) Render() string {
	switch v.Kind {
	case KindBool:
		if v.B {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(int64(v.I), 10)
	case KindFloat:
		return strconv.FormatFloat(float64(v.F), 'f', -1, 32)
	case KindString:
		return v.S
	default:
		return ""
	}
}

// parseIntLiteral parses a decimal integer the way SET/INPUT accept it.
func parseIntLiteral(s string) (int32, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid INT literal %q", s)
	}
	return int32(n), nil
}

// parseFloatLiteral parses a float literal, accepting both '.' and ','
// as the fraction separator per spec §4.6 (INPUT parses either).
func parseFloatLiteral(s string) (float32, error) {
	s = strings.TrimSpace(s)
	s = strings.Replace(s, ",", ".", 1)
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid FLOAT literal %q", s)
	}
	return float32(f), nil
}

// ParseLiteral parses raw source/input text into a Value of the given
// declared kind, used by SET-immediate payload construction and by
// INPUT at runtime.
func ParseLiteral(text string, kind ValueKind) (Value, error) {
	switch kind {
	case KindBool:
		switch strings.ToUpper(strings.TrimSpace(text)) {
		case "TRUE":
			return Bool(true), nil
		case "FALSE":
			return Bool(false), nil
		default:
			b, err := strconv.ParseBool(text)
			if err != nil {
				return Value{}, errors.Wrapf(err, "invalid BOOL literal %q", text)
			}
			return Bool(b), nil
		}
	case KindInt:
		n, err := parseIntLiteral(text)
		if err != nil {
			return Value{}, err
		}
		return Int(n), nil
	case KindFloat:
		f, err := parseFloatLiteral(text)
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case KindString:
		return Str(text), nil
	default:
		return Value{}, errors.Errorf("unknown literal kind %v", kind)
	}
}
