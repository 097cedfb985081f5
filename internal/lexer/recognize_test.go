package lexer

import "testing"

func TestRecognizeBlankAndCommentOnly(t *testing.T) {
	for _, raw := range []string{"", "   ", "# just a comment"} {
		l, err := Recognize(raw, 1)
		if err != nil {
			t.Fatalf("Recognize(%q): %v", raw, err)
		}
		if l.Kind != CmdNOP {
			t.Errorf("Recognize(%q) = %v, want NOP", raw, l.Kind)
		}
	}
}

func TestRecognizeStripsTrailingComment(t *testing.T) {
	l, err := Recognize(`SET x, 5: INT # seed the counter`, 3)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if l.Kind != CmdSET || l.Name != "x" || l.Operand != "5" || l.TypeTok != "INT" {
		t.Errorf("got %+v", l)
	}
}

func TestRecognizeIgnoresHashInsideQuotes(t *testing.T) {
	l, err := Recognize(`WRITE "a#b"`, 1)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if l.Kind != CmdWRITE || l.WriteIsVar || l.WriteText != "a#b" {
		t.Errorf("got %+v", l)
	}
}

func TestRecognizeWriteLiteralVsVar(t *testing.T) {
	lit, err := Recognize(`WRITE "hello"`, 1)
	if err != nil || lit.Kind != CmdWRITE || lit.WriteIsVar || lit.WriteText != "hello" {
		t.Fatalf("literal case: %+v, err=%v", lit, err)
	}
	v, err := Recognize(`WRITE total`, 1)
	if err != nil || v.Kind != CmdWRITE || !v.WriteIsVar || v.WriteText != "total" {
		t.Fatalf("variable case: %+v, err=%v", v, err)
	}
}

func TestRecognizeSetWithExpression(t *testing.T) {
	l, err := Recognize(`SET total, (a + b): INT`, 1)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if l.Kind != CmdSET || l.Operand != "(a + b)" || !IsExprOperand(l.Operand) {
		t.Errorf("got %+v", l)
	}
	if UnwrapParens(l.Operand) != "a + b" {
		t.Errorf("UnwrapParens = %q", UnwrapParens(l.Operand))
	}
}

func TestRecognizeIfVsIfShort(t *testing.T) {
	full, err := Recognize(`IF (a < b):`, 1)
	if err != nil || full.Kind != CmdIF || full.Cond != "(a < b)" {
		t.Fatalf("IF case: %+v, err=%v", full, err)
	}
	short, err := Recognize(`IF (a<b): SET r, 1: INT ? SET r, 0: INT`, 1)
	if err != nil || short.Kind != CmdIFSHORT {
		t.Fatalf("IF-SHORT case: %+v, err=%v", short, err)
	}
	if short.Cond != "(a<b)" ||short.ThenRaw != "SET r, 1: INT" || short.ElseRaw != "SET r, 0: INT" {
		t.Errorf("got %+v", short)
	}
}

func TestRecognizeElseMarker(t *testing.T) {
	l, err := Recognize(`END ?`, 1)
	if err != nil || l.Kind != CmdELSE {
		t.Fatalf("got %+v, err=%v", l, err)
	}
}

func TestRecognizeInclude(t *testing.T) {
	l, err := Recognize(`%include% lib.txt`, 1)
	if err != nil || l.Kind != CmdINCLUDE || l.IncludePath != "lib.txt" {
		t.Fatalf("got %+v, err=%v", l, err)
	}
}

func TestRecognizeJumpDefineCallRet(t *testing.T) {
	j, err := Recognize(`JUMP 12`, 1)
	if err != nil || j.Kind != CmdJUMP || j.JumpTarget != 12 {
		t.Fatalf("JUMP: %+v, err=%v", j, err)
	}
	d, err := Recognize(`DEFINE factorial`, 1)
	if err != nil || d.Kind != CmdDEFINE || d.Name != "factorial" {
		t.Fatalf("DEFINE: %+v, err=%v", d, err)
	}
	c, err := Recognize(`CALL factorial`, 1)
	if err != nil || c.Kind != CmdCALL || c.Name != "factorial" {
		t.Fatalf("CALL: %+v, err=%v", c, err)
	}
	r, err := Recognize(`RET`, 1)
	if err != nil || r.Kind != CmdRET {
		t.Fatalf("RET: %+v, err=%v", r, err)
	}
}

func TestRecognizeUnmatchedLineIsNopWithError(t *testing.T) {
	l, err := Recognize(`THIS IS NOT A COMMAND`, 9)
	if err != ErrNoMatch {
		t.Fatalf("got err=%v, want ErrNoMatch", err)
	}
	if l.Kind != CmdNOP || l.LineNo != 9 {
		t.Errorf("got %+v", l)
	}
}

func TestRecognizeInputDeclaresType(t *testing.T) {
	l, err := Recognize(`INPUT age INT`, 1)
	if err != nil || l.Kind != CmdINPUT || l.Name != "age" || l.TypeTok != "INT" {
		t.Fatalf("got %+v, err=%v", l, err)
	}
}
