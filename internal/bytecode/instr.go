package bytecode

import (
	"io"

	"github.com/pkg/errors"
)

// Op is the 4-bit opcode nibble of spec §4.3. Values 5 (ELSE-marker),
// 6 (IF-SHORT), and 7 (END) are reserved slots in the nibble space
// that the builder never actually emits at runtime: ELSE and END are
// pure bracket-stack bookkeeping (ELSE emits a JUMP, an END closing a
// DEFINE emits a RET, an END closing an IF/ELSE only patches targets;
// an END with no open block is reported as ERR-PARSE and emits
// nothing, and the single EOF is appended by Builder.Finish), and
// IF-SHORT is desugared in place into IF/JUMP before it ever reaches
// an instruction blob (see spec §4.3 and DESIGN.md).
type Op byte

const (
	OpNOP Op = iota
	OpSET
	OpPUSH
	OpJUMP
	OpIF
	OpELSE
	OpIFSHORT
	OpEND
	OpDEFINE
	OpRET
	OpCALL
	OpWRITE
	OpINPUT
	OpINCLUDE
	opReserved14
	OpEOF
)

func (o Op) String() string {
	names := [...]string{"NOP", "SET", "PUSH", "JUMP", "IF", "ELSE", "IF-SHORT", "END",
		"DEFINE", "RET", "CALL", "WRITE", "INPUT", "INCLUDE", "?", "EOF"}
	if int(o) < len(names) {
		return names[o]
	}
	return "?"
}

// PushKind distinguishes PUSH's two object kinds (spec §4.3 flag bit 0).
type PushKind byte

const (
	PushVariable PushKind = iota
	PushProcedure
)

// Instr is the fully structured, in-memory form of one instruction.
// Only the fields relevant to Op are meaningful; the rest are zero.
// The same type is used by the builder (with Jump/Else targets and
// name references still unresolved, and CompiledExpr/CondExpr always
// populated from the build-time parse) and by the loader (after
// decoding a packed module, which re-parses ExprText/CondText back
// into a tree via the parser package).
type Instr struct {
	Op Op

	// SET
	VarID    uint32
	DeclKind ValueKind
	IsLink   bool
	IsExpr   bool
	Literal  Value
	LinkedVarID uint32
	ExprText    string
	CompiledExpr Expr

	// PUSH
	ObjectID uint32
	PushKind PushKind

	// WRITE
	WriteLiteral string
	WriteIsVar   bool
	WriteVarID   uint32

	// JUMP
	JumpTarget int32 // -1 == unresolved

	// IF
	ElseTarget  int32 // -1 == unresolved; else-or-end target
	CondIsExpr  bool
	CondVarID   uint32
	CondText    string
	CondExpr    Expr

	// DEFINE
	ProcID    uint32
	BodyStart int32

	// CALL
	CallProcID uint32

	// INPUT
	InputVarID uint32
	InputKind  ValueKind

	// INCLUDE
	IncludeIndex uint32
	IncludePath  string
}

// Encode writes one instruction in the §4.3/§4.5 on-disk layout.
func (ins *Instr) Encode(w io.Writer) error {
	flags := ins.flags()
	if err := writeByte(w, byte(ins.Op)<<4|flags); err != nil {
		return err
	}
	switch ins.Op {
	case OpNOP, OpRET, OpEOF:
		return nil
	case OpSET:
		if err := writeU32(w, ins.VarID); err != nil {
			return err
		}
		switch {
		case ins.IsExpr:
			return writeLongString(w, ins.ExprText)
		case ins.IsLink:
			return writeU32(w, ins.LinkedVarID)
		default:
			return WriteValue(w, ins.Literal)
		}
	case OpPUSH:
		return writeU32(w, ins.ObjectID)
	case OpWRITE:
		if ins.WriteIsVar {
			return writeU32(w, ins.WriteVarID)
		}
		return writeLongString(w, ins.WriteLiteral)
	case OpINPUT:
		return writeU32(w, ins.InputVarID)
	case OpJUMP:
		return writeI32(w, ins.JumpTarget)
	case OpIF:
		if err := writeI32(w, ins.ElseTarget); err != nil {
			return err
		}
		if ins.CondIsExpr {
			return writeLongString(w, ins.CondText)
		}
		return writeU32(w, ins.CondVarID)
	case OpDEFINE:
		if err := writeU32(w, ins.ProcID); err != nil {
			return err
		}
		return writeI32(w, ins.BodyStart)
	case OpCALL:
		return writeU32(w, ins.CallProcID)
	case OpINCLUDE:
		if err := writeU32(w, ins.IncludeIndex); err != nil {
			return err
		}
		return writeLongString(w, ins.IncludePath)
	default:
		return errors.Errorf("cannot encode opcode %s", ins.Op)
	}
}

func (ins *Instr) flags() byte {
	switch ins.Op {
	case OpSET:
		f := byte(ins.DeclKind) & 0x3
		if ins.IsLink {
			f |= 0x4
		}
		if ins.IsExpr {
			f |= 0x8
		}
		return f
	case OpWRITE:
		if ins.WriteIsVar {
			return 0x8
		}
		return 0
	case OpIF:
		if ins.CondIsExpr {
			return 0x8
		}
		return 0
	case OpINPUT:
		return byte(ins.InputKind) & 0x3
	case OpPUSH:
		return byte(ins.PushKind) & 0x1
	default:
		return 0
	}
}

// DecodeInstr reads one instruction previously written by Encode. It
// does not compile ExprText/CondText into CompiledExpr/CondExpr —
// that is the loader's job (C6), since it needs a name resolver bound
// to no one (the text is already "@id"-substituted) but still must
// invoke the parser.
func DecodeInstr(r io.Reader) (*Instr, error) {
	b0, err := readByte(r)
	if err != nil {
		return nil, err
	}
	op := Op(b0 >> 4)
	flags := b0 & 0xF
	ins := &Instr{Op: op}
	switch op {
	case OpNOP, OpRET, OpEOF:
		return ins, nil
	case OpSET:
		ins.DeclKind = ValueKind(flags & 0x3)
		ins.IsLink = flags&0x4 != 0
		ins.IsExpr = flags&0x8 != 0
		if ins.VarID, err = readU32(r); err != nil {
			return nil, err
		}
		switch {
		case ins.IsExpr:
			ins.ExprText, err = readLongString(r)
		case ins.IsLink:
			ins.LinkedVarID, err = readU32(r)
		default:
			ins.Literal, err = ReadValue(r)
		}
		return ins, err
	case OpPUSH:
		ins.PushKind = PushKind(flags & 0x1)
		ins.ObjectID, err = readU32(r)
		return ins, err
	case OpWRITE:
		ins.WriteIsVar = flags&0x8 != 0
		if ins.WriteIsVar {
			ins.WriteVarID, err = readU32(r)
		} else {
			ins.WriteLiteral, err = readLongString(r)
		}
		return ins, err
	case OpINPUT:
		ins.InputKind = ValueKind(flags & 0x3)
		ins.InputVarID, err = readU32(r)
		return ins, err
	case OpJUMP:
		ins.JumpTarget, err = readI32(r)
		return ins, err
	case OpIF:
		ins.CondIsExpr = flags&0x8 != 0
		if ins.ElseTarget, err = readI32(r); err != nil {
			return nil, err
		}
		if ins.CondIsExpr {
			ins.CondText, err = readLongString(r)
		} else {
			ins.CondVarID, err = readU32(r)
		}
		return ins, err
	case OpDEFINE:
		if ins.ProcID, err = readU32(r); err != nil {
			return nil, err
		}
		ins.BodyStart, err = readI32(r)
		return ins, err
	case OpCALL:
		ins.CallProcID, err = readU32(r)
		return ins, err
	case OpINCLUDE:
		if ins.IncludeIndex, err = readU32(r); err != nil {
			return nil, err
		}
		ins.IncludePath, err = readLongString(r)
		return ins, err
	default:
		return nil, errors.Errorf("unknown opcode nibble %d", op)
	}
}
