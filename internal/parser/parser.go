package parser

import (
	"strconv"

	"github.com/pkg/errors"

	"tvm/internal/bytecode"
)

// Parser turns one expression string into a bytecode.Expr tree. It
// holds that expression's tokens and a cursor into them; Parse builds
// a fresh Parser for every call.
type Parser struct {
	toks []token
	pos  int
}

// Parse compiles src (already unwrapped of its enclosing
// parentheses by the caller, per spec §4.3's SET/IF operand
// extraction) into an expression tree. Bare identifiers that are not
// reserved names become unresolved bytecode.VarRefExpr nodes; "@N"
// tokens (the post-pass, already-resolved form read back from a
// packed module) become resolved ones directly.
func Parse(src string) (bytecode.Expr, error) {
	p := &Parser{toks: tokenize(src)}
	e, err := p.parseLogical()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, errors.Errorf("unexpected trailing input %q in expression %q", p.cur().text, src)
	}
	return e, nil
}

func (p *Parser) cur() token  { return p.toks[p.pos] }
func (p *Parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) matchOp(ops ...string) (string, bool) {
	if p.cur().kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if p.cur().text == op {
			p.advance()
			return op, true
		}
	}
	return "", false
}

// --- precedence tiers, loosest to tightest per spec §4.2:
// logical -> comparison -> additive -> unary -> multiplicative ->
// exponent -> shift -> primary.

func (p *Parser) parseLogical() (bytecode.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOp("&&", "||")
		if !ok {
			return left, nil
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = combine(op, left, right)
	}
}

func (p *Parser) parseComparison() (bytecode.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOp("==", "!=", "<=", ">=", "<", ">")
		if !ok {
			return left, nil
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = combine(op, left, right)
	}
}

func (p *Parser) parseAdditive() (bytecode.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = combine(op, left, right)
	}
}

// parseUnary recurses on itself for chained prefix operators. A prefix
// "+" is skipped; double negation and double-not are self-inverse, so
// plain recursive nesting already produces the spec's "collapse runs
// by parity" result for runs of "+", "-" and "!" without a separate
// normalization pass (SET x, (-(-2)): INT evaluates to 2 either way).
func (p *Parser) parseUnary() (bytecode.Expr, error) {
	if _, ok := p.matchOp("+"); ok {
		return p.parseUnary()
	}
	if op, ok := p.matchOp("-", "!"); ok {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &bytecode.UnaryExpr{Op: op, Operand: operand}, nil
	}
	return p.parseMultiplicative()
}

func (p *Parser) parseMultiplicative() (bytecode.Expr, error) {
	left, err := p.parseExponent()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOp("*", "/", "%")
		if !ok {
			return left, nil
		}
		right, err := p.parseExponent()
		if err != nil {
			return nil, err
		}
		left = combine(op, left, right)
	}
}

// parseExponent is right-associative: 2^3^2 == 2^(3^2).
func (p *Parser) parseExponent() (bytecode.Expr, error) {
	left, err := p.parseShift()
	if err != nil {
		return nil, err
	}
	if _, ok := p.matchOp("^"); ok {
		right, err := p.parseExponent()
		if err != nil {
			return nil, err
		}
		return &bytecode.BinaryExpr{Op: "^", Left: left, Right: right, Cast: bytecode.CastToMaximum}, nil
	}
	return left, nil
}

func (p *Parser) parseShift() (bytecode.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOp("<<", ">>")
		if !ok {
			return left, nil
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = combine(op, left, right)
	}
}

func (p *Parser) parsePrimary() (bytecode.Expr, error) {
	t := p.cur()
	switch t.kind {
	case tokLParen:
		p.advance()
		e, err := p.parseLogical()
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tokRParen {
			return nil, errors.New("expected closing ')' in expression")
		}
		p.advance()
		return e, nil
	case tokNumber:
		p.advance()
		return parseNumberLiteral(t.text)
	case tokAtRef:
		p.advance()
		id, err := strconv.ParseUint(t.text, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed resolved reference @%s", t.text)
		}
		return &bytecode.VarRefExpr{ID: uint32(id), Resolved: true}, nil
	case tokIdent:
		return p.parseIdentPrimary(t.text)
	default:
		return nil, errors.Errorf("unexpected token %q in expression", t.text)
	}
}

func (p *Parser) parseIdentPrimary(name string) (bytecode.Expr, error) {
	switch name {
	case "TRUE", "true":
		p.advance()
		return &bytecode.ConstExpr{Value: bytecode.Bool(true)}, nil
	case "FALSE", "false":
		p.advance()
		return &bytecode.ConstExpr{Value: bytecode.Bool(false)}, nil
	}
	if f, ok := bytecode.MathConstants[name]; ok {
		p.advance()
		return &bytecode.ConstExpr{Value: bytecode.Float(f)}, nil
	}
	if arity, ok := bytecode.IntrinsicArity(name); ok {
		return p.parseIntrinsicCall(name, arity)
	}
	p.advance()
	return &bytecode.VarRefExpr{Name: name, Resolved: false}, nil
}

func (p *Parser) parseIntrinsicCall(name string, arity int) (bytecode.Expr, error) {
	p.advance() // consume the intrinsic name
	if p.cur().kind != tokLParen {
		return nil, errors.Errorf("expected '(' after intrinsic %q", name)
	}
	p.advance()
	var args []bytecode.Expr
	if p.cur().kind != tokRParen {
		for {
			arg, err := p.parseLogical()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur().kind == tokSemicolon {
				p.advance()
				continue
			}
			break
		}
	}
	if p.cur().kind != tokRParen {
		return nil, errors.Errorf("expected ')' closing call to %q", name)
	}
	p.advance()

	if arity >= 0 && len(args) != arity {
		return nil, errors.Errorf("%s takes %d argument(s), got %d", name, arity, len(args))
	}
	if arity == -1 {
		if len(args) < 2 {
			return nil, errors.Errorf("%s requires at least 2 arguments, got %d", name, len(args))
		}
		return &bytecode.ReductionExpr{Name: name, Args: args}, nil
	}
	return &bytecode.IntrinsicExpr{Name: name, Args: args}, nil
}

func parseNumberLiteral(text string) (bytecode.Expr, error) {
	for _, c := range text {
		if c == '.' {
			f, err := strconv.ParseFloat(text, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid float literal %q", text)
			}
			return &bytecode.ConstExpr{Value: bytecode.Float(float32(f))}, nil
		}
	}
	n, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid int literal %q", text)
	}
	return &bytecode.ConstExpr{Value: bytecode.Int(int32(n))}, nil
}

// combine builds a BinaryExpr, resolving its CastPolicy from whether
// each side is a direct variable fetch (spec §4.2: "the variable
// operand type is never a cast target... the variable is coerced to
// the numeric's type").
func combine(op string, left, right bytecode.Expr) bytecode.Expr {
	_, leftIsVar := left.(*bytecode.VarRefExpr)
	_, rightIsVar := right.(*bytecode.VarRefExpr)

	cast := bytecode.CastToMaximum
	switch {
	case bytecode.IsLogical(op), bytecode.IsShift(op):
		cast = bytecode.CastNone
	case leftIsVar && !rightIsVar:
		cast = bytecode.CastLeftToRight
	case rightIsVar && !leftIsVar:
		cast = bytecode.CastRightToLeft
	}
	return &bytecode.BinaryExpr{Op: op, Left: left, Right: right, Cast: cast}
}
