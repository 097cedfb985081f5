package bytecode

import (
	"bytes"
	"testing"
)

func roundTrip(t *testing.T, ins *Instr) *Instr {
	t.Helper()
	var buf bytes.Buffer
	if err := ins.Encode(&buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeInstr(&buf)
	if err != nil {
		t.Fatalf("DecodeInstr: %v", err)
	}
	return got
}

func TestInstrRoundTripSetImmediate(t *testing.T) {
	ins := &Instr{Op: OpSET, VarID: 3, DeclKind: KindInt, Literal: Int(42)}
	got := roundTrip(t, ins)
	if got.VarID != 3 || got.DeclKind != KindInt || got.Literal.I != 42 {
		t.Errorf("got %+v", got)
	}
}

func TestInstrRoundTripSetExpression(t *testing.T) {
	ins := &Instr{Op: OpSET, VarID: 1, DeclKind: KindInt, IsExpr: true, ExprText: "(@0 + 1)"}
	got := roundTrip(t, ins)
	if !got.IsExpr || got.ExprText != "(@0 + 1)" {
		t.Errorf("got %+v", got)
	}
}

func TestInstrRoundTripSetLinked(t *testing.T) {
	ins := &Instr{Op: OpSET, VarID: 2, DeclKind: KindBool, IsLink: true, LinkedVarID: 9}
	got := roundTrip(t, ins)
	if !got.IsLink || got.LinkedVarID != 9 {
		t.Errorf("got %+v", got)
	}
}

func TestInstrRoundTripIf(t *testing.T) {
	ins := &Instr{Op: OpIF, ElseTarget: 12, CondIsExpr: true, CondText: "(@0 < @1)"}
	got := roundTrip(t, ins)
	if got.ElseTarget != 12 || !got.CondIsExpr || got.CondText != "(@0 < @1)" {
		t.Errorf("got %+v", got)
	}
}

func TestInstrRoundTripDefine(t *testing.T) {
	ins := &Instr{Op: OpDEFINE, ProcID: 5, BodyStart: 20}
	got := roundTrip(t, ins)
	if got.ProcID != 5 || got.BodyStart != 20 {
		t.Errorf("got %+v", got)
	}
}

func TestInstrRoundTripWriteLiteralAndVar(t *testing.T) {
	lit := roundTrip(t, &Instr{Op: OpWRITE, WriteLiteral: "hello"})
	if lit.WriteIsVar || lit.WriteLiteral != "hello" {
		t.Errorf("got %+v", lit)
	}
	v := roundTrip(t, &Instr{Op: OpWRITE, WriteIsVar: true, WriteVarID: 4})
	if !v.WriteIsVar || v.WriteVarID != 4 {
		t.Errorf("got %+v", v)
	}
}

func TestInstrRoundTripPush(t *testing.T) {
	got := roundTrip(t, &Instr{Op: OpPUSH, ObjectID: 8, PushKind: PushProcedure})
	if got.ObjectID != 8 || got.PushKind != PushProcedure {
		t.Errorf("got %+v", got)
	}
}

func TestInstrRoundTripJumpUnresolved(t *testing.T) {
	got := roundTrip(t, &Instr{Op: OpJUMP, JumpTarget: -1})
	if got.JumpTarget != -1 {
		t.Errorf("got %d, want -1", got.JumpTarget)
	}
}

func TestInstrRoundTripInclude(t *testing.T) {
	got := roundTrip(t, &Instr{Op: OpINCLUDE, IncludeIndex: 2, IncludePath: "lib.txt"})
	if got.IncludeIndex != 2 || got.IncludePath != "lib.txt" {
		t.Errorf("got %+v", got)
	}
}

func TestInstrRoundTripNopRetEof(t *testing.T) {
	for _, op := range []Op{OpNOP, OpRET, OpEOF} {
		got := roundTrip(t, &Instr{Op: op})
		if got.Op != op {
			t.Errorf("got op %v, want %v", got.Op, op)
		}
	}
}
