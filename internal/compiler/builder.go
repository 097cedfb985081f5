// Package compiler implements C4 (the line-by-line builder) and C5
// (the post-pass and packer): spec.md §4.3–§4.5.
package compiler

import (
	"fmt"
	"regexp"

	"tvm/internal/bytecode"
	"tvm/internal/lexer"
	"tvm/internal/parser"
)

// reNumericLiteral distinguishes a bare numeric SET/INPUT literal from
// a bare variable name of the same shape (spec §4.1's grammar doesn't
// quote numeric literals the way it quotes STRING/BOOL ones).
var reNumericLiteral = regexp.MustCompile(`^-?\d+([.,]\d+)?$`)

type pendingRefField int

const (
	fieldSetLinked pendingRefField = iota
	fieldWriteVar
	fieldIfCond
	fieldCallProc
	fieldPushObject
)

// pendingRef is one deferred name reference (spec §4.3's
// "unresolved_name_references" table): a use, not a declaration, whose
// id is not known until C5 stage 2 because the name might turn out to
// be a forward-declared local or an import from an include.
type pendingRef struct {
	name   string
	isProc bool
	field  pendingRefField
	instr  *bytecode.Instr
	line   int
}

// exprSite is one SET/IF expression awaiting C5 stage 3 finalization:
// its variable leaves are still unresolved VarRefExpr nodes by name.
type exprSite struct {
	instr    *bytecode.Instr
	declKind bytecode.ValueKind
	isCond   bool
}

// bracketEntry is one frame of the DEFINE/IF/ELSE bracket stack (spec
// §4.3).
type bracketEntry struct {
	kind lexer.CommandKind

	ifInstr       *bytecode.Instr // IF: itself. ELSE: the paired IF, carried over from the popped IF frame.
	companionJump *bytecode.Instr // DEFINE: the body-skip JUMP. ELSE: the jump-past-else-body JUMP.
	markerIP      int32           // ELSE only: this frame's own JUMP instruction index, the value IF.ElseTarget patches to.
}

// includeDescriptor is the build-time record of one %include% (spec
// §4.3's "stores its data-segment descriptor"). Only DataSegment
// survives into the post-pass name resolver; the included module's
// own instructions are irrelevant at this module's build time — they
// are re-loaded independently at execution time by internal/module.
type includeDescriptor struct {
	Path        string
	DataSegment []*bytecode.DataEntry
}

// Builder walks one module's source line by line, producing the
// runtime instruction stream, the include-instruction section, and
// the bookkeeping C5 needs to finish the job (spec §4.3).
type Builder struct {
	baseDir string // directory relative includes resolve against

	vars  *symbolTable
	procs *symbolTable

	instrs        []*bytecode.Instr
	includeInstrs []*bytecode.Instr
	includeDescs  []*includeDescriptor

	lineIndex    map[int]int32
	forwardJumps map[int][]int32 // target line -> indices of JUMP instructions awaiting that line's ip

	bracketStack []bracketEntry

	pendingRefs []pendingRef
	exprSites   []exprSite

	importedVars  map[string]uint32
	importedProcs map[string]uint32

	diagnostics []Diagnostic
}

func newBuilder(baseDir string) *Builder {
	return &Builder{
		baseDir:       baseDir,
		vars:          newSymbolTable(),
		procs:         newSymbolTable(),
		lineIndex:     map[int]int32{},
		forwardJumps:  map[int][]int32{},
		importedVars:  map[string]uint32{},
		importedProcs: map[string]uint32{},
	}
}

func (b *Builder) diagf(line int, kind, format string, args ...interface{}) {
	b.diagnostics = append(b.diagnostics, Diagnostic{Kind: kind, Line: line, Message: fmt.Sprintf(format, args...)})
}

func (b *Builder) emit(ins *bytecode.Instr) int32 {
	idx := int32(len(b.instrs))
	b.instrs = append(b.instrs, ins)
	return idx
}

// checkNotReserved flags a SET/INPUT/DEFINE declaration whose target
// name is one of the reserved names (boolean literals, intrinsics,
// math constants — spec §4.1). The declaration still proceeds (the
// builder's continue-past-errors policy, spec §7), so a later bare-name
// reference (WRITE, IF, PUSH, CALL, a linked SET) resolves to the
// variable/procedure; inside an expression the name keeps its reserved
// meaning.
func (b *Builder) checkNotReserved(name string, line int) {
	if bytecode.IsReservedName(name) {
		b.diagf(line, "ERR-PARSE", "%q is a reserved name and cannot be declared", name)
	}
}

// ProcessLine recognizes and compiles one source line (spec §4.3).
func (b *Builder) ProcessLine(raw string, lineNo int) {
	startIP := int32(len(b.instrs))
	b.lineIndex[lineNo] = startIP
	b.flushForwardJumps(lineNo, startIP)

	ln, err := lexer.Recognize(raw, lineNo)
	if err == lexer.ErrNoMatch {
		b.diagf(lineNo, "ERR-PARSE", "line matches no command shape")
	}
	b.dispatch(ln)
}

func (b *Builder) flushForwardJumps(lineNo int, ip int32) {
	for _, idx := range b.forwardJumps[lineNo] {
		b.instrs[idx].JumpTarget = ip
	}
	delete(b.forwardJumps, lineNo)
}

// dispatch emits one command's instruction(s). It is also used by
// buildIfShort for its two inline sub-commands, which share every
// command shape except the bracketed and %include% forms.
func (b *Builder) dispatch(ln *lexer.Line) {
	switch ln.Kind {
	case lexer.CmdNOP:
		b.emit(&bytecode.Instr{Op: bytecode.OpNOP})
	case lexer.CmdSET:
		b.buildSet(ln)
	case lexer.CmdPUSH:
		b.buildPush(ln)
	case lexer.CmdWRITE:
		b.buildWrite(ln)
	case lexer.CmdINPUT:
		b.buildInput(ln)
	case lexer.CmdJUMP:
		b.buildJump(ln)
	case lexer.CmdDEFINE:
		b.buildDefine(ln)
	case lexer.CmdRET:
		b.emit(&bytecode.Instr{Op: bytecode.OpRET})
	case lexer.CmdCALL:
		b.buildCall(ln)
	case lexer.CmdEND:
		b.buildEnd(ln)
	case lexer.CmdIF:
		b.buildIf(ln)
	case lexer.CmdELSE:
		b.buildElse(ln)
	case lexer.CmdIFSHORT:
		b.buildIfShort(ln)
	case lexer.CmdINCLUDE:
		b.buildInclude(ln)
	}
}

func isSetLiteral(operand string, kind bytecode.ValueKind) bool {
	switch kind {
	case bytecode.KindString:
		return len(operand) >= 2 && operand[0] == '"' && operand[len(operand)-1] == '"'
	case bytecode.KindBool:
		switch operand {
		case "TRUE", "FALSE", "true", "false":
			return true
		default:
			return false
		}
	default:
		return reNumericLiteral.MatchString(operand)
	}
}

func unquoteIfString(operand string, kind bytecode.ValueKind) string {
	if kind == bytecode.KindString && len(operand) >= 2 && operand[0] == '"' {
		return operand[1 : len(operand)-1]
	}
	return operand
}

func (b *Builder) buildSet(ln *lexer.Line) {
	kind, ok := bytecode.ParseKind(ln.TypeTok)
	if !ok {
		b.diagf(ln.LineNo, "ERR-PARSE", "unknown SET type %q", ln.TypeTok)
		b.emit(&bytecode.Instr{Op: bytecode.OpNOP})
		return
	}
	b.checkNotReserved(ln.Name, ln.LineNo)
	varID := b.vars.ensure(ln.Name)
	ins := &bytecode.Instr{Op: bytecode.OpSET, VarID: varID, DeclKind: kind}

	switch operand := ln.Operand; {
	case lexer.IsExprOperand(operand):
		text := lexer.UnwrapParens(operand)
		expr, perr := parser.Parse(text)
		if perr != nil {
			b.diagf(ln.LineNo, "ERR-PARSE", "invalid expression %q: %v", text, perr)
			expr = &bytecode.ConstExpr{Value: bytecode.Value{Kind: kind}}
		}
		ins.IsExpr = true
		ins.CompiledExpr = expr
		b.exprSites = append(b.exprSites, exprSite{instr: ins, declKind: kind})
	case isSetLiteral(operand, kind):
		v, verr := bytecode.ParseLiteral(unquoteIfString(operand, kind), kind)
		if verr != nil {
			b.diagf(ln.LineNo, "ERR-PARSE", "invalid %s literal %q", kind, operand)
		}
		ins.Literal = v
	default:
		ins.IsLink = true
		b.pendingRefs = append(b.pendingRefs, pendingRef{name: operand, field: fieldSetLinked, instr: ins, line: ln.LineNo})
	}
	b.emit(ins)
}

func (b *Builder) buildPush(ln *lexer.Line) {
	ins := &bytecode.Instr{Op: bytecode.OpPUSH}
	b.pendingRefs = append(b.pendingRefs, pendingRef{name: ln.Name, field: fieldPushObject, instr: ins, line: ln.LineNo})
	b.emit(ins)
}

func (b *Builder) buildWrite(ln *lexer.Line) {
	ins := &bytecode.Instr{Op: bytecode.OpWRITE}
	if ln.WriteIsVar {
		ins.WriteIsVar = true
		b.pendingRefs = append(b.pendingRefs, pendingRef{name: ln.WriteText, field: fieldWriteVar, instr: ins, line: ln.LineNo})
	} else {
		ins.WriteLiteral = ln.WriteText
	}
	b.emit(ins)
}

func (b *Builder) buildInput(ln *lexer.Line) {
	kind, ok := bytecode.ParseKind(ln.TypeTok)
	if !ok {
		b.diagf(ln.LineNo, "ERR-PARSE", "unknown INPUT type %q", ln.TypeTok)
		kind = bytecode.KindString
	}
	b.checkNotReserved(ln.Name, ln.LineNo)
	varID := b.vars.ensure(ln.Name)
	b.emit(&bytecode.Instr{Op: bytecode.OpINPUT, InputVarID: varID, InputKind: kind})
}

func (b *Builder) buildJump(ln *lexer.Line) {
	if idx, ok := b.lineIndex[ln.JumpTarget]; ok {
		b.emit(&bytecode.Instr{Op: bytecode.OpJUMP, JumpTarget: idx})
		return
	}
	idx := b.emit(&bytecode.Instr{Op: bytecode.OpJUMP, JumpTarget: -1})
	b.forwardJumps[ln.JumpTarget] = append(b.forwardJumps[ln.JumpTarget], idx)
}

func (b *Builder) buildDefine(ln *lexer.Line) {
	b.checkNotReserved(ln.Name, ln.LineNo)
	procID := b.procs.ensure(ln.Name)
	defineIns := &bytecode.Instr{Op: bytecode.OpDEFINE, ProcID: procID, BodyStart: int32(len(b.instrs)) + 2}
	b.emit(defineIns)
	jumpIns := &bytecode.Instr{Op: bytecode.OpJUMP, JumpTarget: -1}
	b.emit(jumpIns)
	b.bracketStack = append(b.bracketStack, bracketEntry{kind: lexer.CmdDEFINE, companionJump: jumpIns})
}

func (b *Builder) buildCall(ln *lexer.Line) {
	ins := &bytecode.Instr{Op: bytecode.OpCALL}
	b.pendingRefs = append(b.pendingRefs, pendingRef{name: ln.Name, isProc: true, field: fieldCallProc, instr: ins, line: ln.LineNo})
	b.emit(ins)
}

// setCondition fills in an IF instruction's condition payload, either
// as an expression (deferred to stage 3) or a bare variable (deferred
// to stage 2), per spec §4.3's IF flag bit 3.
func (b *Builder) setCondition(ins *bytecode.Instr, cond string, lineNo int) {
	if lexer.IsExprOperand(cond) {
		text := lexer.UnwrapParens(cond)
		expr, err := parser.Parse(text)
		if err != nil {
			b.diagf(lineNo, "ERR-PARSE", "invalid condition %q: %v", text, err)
			expr = &bytecode.ConstExpr{Value: bytecode.Bool(false)}
		}
		ins.CondIsExpr = true
		ins.CondExpr = expr
		b.exprSites = append(b.exprSites, exprSite{instr: ins, declKind: bytecode.KindBool, isCond: true})
		return
	}
	b.pendingRefs = append(b.pendingRefs, pendingRef{name: cond, field: fieldIfCond, instr: ins, line: lineNo})
}

func (b *Builder) buildIf(ln *lexer.Line) {
	ins := &bytecode.Instr{Op: bytecode.OpIF, ElseTarget: -1}
	b.setCondition(ins, ln.Cond, ln.LineNo)
	b.emit(ins)
	b.bracketStack = append(b.bracketStack, bracketEntry{kind: lexer.CmdIF, ifInstr: ins})
}

func (b *Builder) buildElse(ln *lexer.Line) {
	if len(b.bracketStack) == 0 || b.bracketStack[len(b.bracketStack)-1].kind != lexer.CmdIF {
		b.diagf(ln.LineNo, "ERR-PARSE", "'END ?' with no open IF")
		return
	}
	top := b.bracketStack[len(b.bracketStack)-1]
	b.bracketStack = b.bracketStack[:len(b.bracketStack)-1]

	jumpIns := &bytecode.Instr{Op: bytecode.OpJUMP, JumpTarget: -1}
	idx := b.emit(jumpIns)
	b.bracketStack = append(b.bracketStack, bracketEntry{
		kind:          lexer.CmdELSE,
		ifInstr:       top.ifInstr,
		companionJump: jumpIns,
		markerIP:      idx,
	})
}

func (b *Builder) buildEnd(ln *lexer.Line) {
	if len(b.bracketStack) == 0 {
		b.diagf(ln.LineNo, "ERR-PARSE", "END with no open DEFINE/IF/ELSE")
		return
	}
	top := b.bracketStack[len(b.bracketStack)-1]
	b.bracketStack = b.bracketStack[:len(b.bracketStack)-1]
	endIP := int32(len(b.instrs))

	switch top.kind {
	case lexer.CmdIF:
		top.ifInstr.ElseTarget = endIP
	case lexer.CmdELSE:
		top.ifInstr.ElseTarget = top.markerIP + 1
		top.companionJump.JumpTarget = endIP
	case lexer.CmdDEFINE:
		b.emit(&bytecode.Instr{Op: bytecode.OpRET})
		top.companionJump.JumpTarget = int32(len(b.instrs))
	}
}

// buildIfShort desugars the inline ternary into IF / cmd1 / JUMP /
// cmd2 / (implicit end), exactly the four-instruction sequence spec
// §4.3 names, so the bracket-discipline invariant of §8 holds
// identically for both IF forms without ever pushing this onto the
// bracket stack.
func (b *Builder) buildIfShort(ln *lexer.Line) {
	ifIns := &bytecode.Instr{Op: bytecode.OpIF, ElseTarget: -1}
	b.setCondition(ifIns, ln.Cond, ln.LineNo)
	b.emit(ifIns)

	b.buildSubCommand(ln.ThenRaw, ln.LineNo)

	jumpIns := &bytecode.Instr{Op: bytecode.OpJUMP, JumpTarget: -1}
	b.emit(jumpIns)
	ifIns.ElseTarget = int32(len(b.instrs))

	b.buildSubCommand(ln.ElseRaw, ln.LineNo)
	jumpIns.JumpTarget = int32(len(b.instrs))
}

// buildSubCommand compiles one of the inline ternary's two clauses,
// which may be any non-bracketed, non-include command.
func (b *Builder) buildSubCommand(raw string, lineNo int) {
	ln, err := lexer.Recognize(raw, lineNo)
	if err == lexer.ErrNoMatch {
		b.diagf(lineNo, "ERR-PARSE", "inline ternary clause %q matches no command shape", raw)
	}
	switch ln.Kind {
	case lexer.CmdDEFINE, lexer.CmdIF, lexer.CmdELSE, lexer.CmdEND, lexer.CmdIFSHORT, lexer.CmdINCLUDE:
		b.diagf(lineNo, "ERR-PARSE", "%q cannot appear inside an inline ternary clause", raw)
		return
	}
	b.dispatch(ln)
}

func (b *Builder) buildInclude(ln *lexer.Line) {
	idx, err := b.resolveInclude(ln.IncludePath, ln.LineNo)
	if err != nil {
		b.diagf(ln.LineNo, "ERR-IO", "include %q: %v", ln.IncludePath, err)
		return
	}
	b.includeInstrs = append(b.includeInstrs, &bytecode.Instr{Op: bytecode.OpINCLUDE, IncludeIndex: idx, IncludePath: ln.IncludePath})
}

// Finish closes out the build: asserts bracket-stack discipline (spec
// §8), appends the trailing EOF, and runs the C5 post-pass.
func (b *Builder) Finish() (*CompiledModule, []Diagnostic, error) {
	if len(b.bracketStack) != 0 {
		b.diagf(0, "ERR-PARSE", "%d unclosed DEFINE/IF/ELSE block(s) at end of file", len(b.bracketStack))
	}
	b.emit(&bytecode.Instr{Op: bytecode.OpEOF})

	dataSeg := b.postPass()

	cm := &CompiledModule{
		IncludeInstrs: b.includeInstrs,
		RuntimeInstrs: b.instrs,
		DataSegment:   dataSeg,
	}
	return cm, b.diagnostics, nil
}
