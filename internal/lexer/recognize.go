package lexer

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoMatch is returned when a non-blank line matches none of the
// fixed command shapes (spec §7 ERR-PARSE).
var ErrNoMatch = errors.New("line matches no command shape")

// Recognize attempts the fixed command shapes against raw in the
// priority order given by spec §4.1, returning the first match. A
// blank or comment-only line is a no-op. An unrecognized non-blank
// line returns ErrNoMatch alongside a NOP *Line so the caller can
// still emit a zero byte and continue (spec §7).
func Recognize(raw string, lineNo int) (*Line, error) {
	text := strings.TrimSpace(stripComment(raw))
	nop := &Line{Kind: CmdNOP, LineNo: lineNo, Raw: raw}
	if text == "" {
		return nop, nil
	}

	if m := reSet.FindStringSubmatch(text); m != nil {
		return &Line{Kind: CmdSET, LineNo: lineNo, Raw: raw, Name: m[1], Operand: m[2], TypeTok: m[3]}, nil
	}
	if m := rePush.FindStringSubmatch(text); m != nil {
		return &Line{Kind: CmdPUSH, LineNo: lineNo, Raw: raw, Name: m[1]}, nil
	}
	if m := reWrite.FindStringSubmatch(text); m != nil {
		return parseWrite(raw, lineNo, m[1]), nil
	}
	if m := reInput.FindStringSubmatch(text); m != nil {
		return &Line{Kind: CmdINPUT, LineNo: lineNo, Raw: raw, Name: m[1], TypeTok: m[2]}, nil
	}
	if m := reJump.FindStringSubmatch(text); m != nil {
		target, err := strconv.Atoi(m[1])
		if err != nil {
			return nop, errors.Wrap(ErrNoMatch, "malformed JUMP target")
		}
		return &Line{Kind: CmdJUMP, LineNo: lineNo, Raw: raw, JumpTarget: target}, nil
	}
	if m := reDefine.FindStringSubmatch(text); m != nil {
		return &Line{Kind: CmdDEFINE, LineNo: lineNo, Raw: raw, Name: m[1]}, nil
	}
	if reRet.MatchString(text) {
		return &Line{Kind: CmdRET, LineNo: lineNo, Raw: raw}, nil
	}
	if m := reCall.FindStringSubmatch(text); m != nil {
		return &Line{Kind: CmdCALL, LineNo: lineNo, Raw: raw, Name: m[1]}, nil
	}
	if reEnd.MatchString(text) {
		return &Line{Kind: CmdEND, LineNo: lineNo, Raw: raw}, nil
	}
	if reElse.MatchString(text) {
		return &Line{Kind: CmdELSE, LineNo: lineNo, Raw: raw}, nil
	}
	if m := reIf.FindStringSubmatch(text); m != nil {
		return &Line{Kind: CmdIF, LineNo: lineNo, Raw: raw, Cond: m[1]}, nil
	}
	if m := reIfShort.FindStringSubmatch(text); m != nil {
		return &Line{Kind: CmdIFSHORT, LineNo: lineNo, Raw: raw, Cond: m[1], ThenRaw: m[2], ElseRaw: m[3]}, nil
	}
	if m := reInclude.FindStringSubmatch(text); m != nil {
		return &Line{Kind: CmdINCLUDE, LineNo: lineNo, Raw: raw, IncludePath: m[1]}, nil
	}

	return nop, ErrNoMatch
}

// parseWrite classifies a WRITE operand as a quoted literal or a bare
// variable name.
func parseWrite(raw string, lineNo int, operand string) *Line {
	l := &Line{Kind: CmdWRITE, LineNo: lineNo, Raw: raw}
	if strings.HasPrefix(operand, `"`) && strings.HasSuffix(operand, `"`) && len(operand) >= 2 {
		l.WriteText = operand[1 : len(operand)-1]
		l.WriteIsVar = false
	} else {
		l.WriteText = operand
		l.WriteIsVar = true
	}
	return l
}

// IsExprOperand reports whether a SET/IF operand text is a
// parenthesized expression rather than a bare literal or name.
func IsExprOperand(operand string) bool {
	return strings.HasPrefix(operand, "(") && strings.HasSuffix(operand, ")")
}

// UnwrapParens strips one layer of enclosing parentheses.
func UnwrapParens(operand string) string {
	if IsExprOperand(operand) {
		return operand[1 : len(operand)-1]
	}
	return operand
}
