// Package vm implements C7, the execution engine: a set of live
// Contexts (one per loaded module) driven by a single instruction
// dispatch loop, switching between them on CALL/RET and on the
// implicit execution of an %include% at first load (spec §4.6, §5).
//
// Unlike the teacher's package-level singleton VM, Engine is an
// explicit struct: every Context it owns is reachable only through it,
// so a process can run more than one engine (e.g. one per test case)
// without shared mutable globals.
package vm

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"tvm/internal/bytecode"
	tvmerrors "tvm/internal/errors"
	"tvm/internal/module"
)

// Engine drives execution across every context reachable from one
// entry module.
type Engine struct {
	id uuid.UUID

	cache *module.Cache

	contexts    map[uint32]*Context
	byModule    map[*module.LoadedModule]uint32
	nextID      uint32
	current     uint32

	stdin  *bufio.Reader
	stdout io.Writer
}

// NewEngine constructs an engine reading INPUT from stdin and writing
// WRITE output to stdout.
func NewEngine(stdout io.Writer, stdin io.Reader) *Engine {
	return &Engine{
		id:       uuid.New(),
		cache:    module.NewCache(),
		contexts: map[uint32]*Context{},
		byModule: map[*module.LoadedModule]uint32{},
		stdin:    bufio.NewReader(stdin),
		stdout:   stdout,
	}
}

// ID identifies this engine instance, for correlating its diagnostics
// and disposal across a multi-run CLI invocation.
func (e *Engine) ID() uuid.UUID { return e.id }

// Close releases every context and clears the module cache (spec §5:
// "the module cache is cleared on engine disposal").
func (e *Engine) Close() error {
	e.contexts = map[uint32]*Context{}
	e.byModule = map[*module.LoadedModule]uint32{}
	e.cache.ClearCache()
	return nil
}

// Run loads path as the entry module and executes it to completion.
func (e *Engine) Run(path string) error {
	root, _, err := e.loadContext(path)
	if err != nil {
		return err
	}
	e.current = root.ID
	root.IP = 0
	for !root.EOF {
		cur := e.contexts[e.current]
		if err := e.step(cur); err != nil {
			return err
		}
	}
	return nil
}

// loadContext materializes path (reusing an existing context if the
// underlying LoadedModule is already known) and, on first load, runs
// every include it names to its own EOF before returning — includes
// execute once, at first load, never again (spec §4.6).
func (e *Engine) loadContext(path string) (ctx *Context, fresh bool, err error) {
	lm, _, err := e.cache.Load(path)
	if err != nil {
		return nil, false, err
	}
	if id, ok := e.byModule[lm]; ok {
		return e.contexts[id], false, nil
	}

	ctx = newContext(e.nextID, lm)
	e.nextID++
	e.contexts[ctx.ID] = ctx
	e.byModule[lm] = ctx.ID

	for idx, child := range lm.Includes {
		childCtx, childFresh, err := e.loadContext(child.Path)
		if err != nil {
			return nil, false, err
		}
		ctx.IncludeContexts = append(ctx.IncludeContexts, childCtx.ID)
		if childFresh {
			if err := e.runInclude(ctx, uint32(idx), childCtx); err != nil {
				return nil, false, err
			}
		}
	}

	return ctx, true, nil
}

// runInclude executes includee to its own EOF in place of includer,
// applying the writeback protocol on entry and exit.
func (e *Engine) runInclude(includer *Context, idx uint32, includee *Context) error {
	e.writebackEnter(includer, includee, idx)

	prev := e.current
	e.current = includee.ID
	includee.IP = 0
	for !includee.EOF {
		cur := e.contexts[e.current]
		if err := e.step(cur); err != nil {
			return err
		}
	}
	e.current = prev

	e.writebackExit(includer, includee, idx)
	return nil
}

// switchContext applies the shared-variable writeback protocol for a
// CALL/RET-driven switch between from and to, inferring direction from
// whichever one includes the other. Unrelated contexts share nothing
// and the switch is a no-op.
func (e *Engine) switchContext(from, to *Context) {
	if from == to {
		return
	}
	for idx, id := range from.IncludeContexts {
		if id == to.ID {
			e.writebackEnter(from, to, uint32(idx))
			return
		}
	}
	for idx, id := range to.IncludeContexts {
		if id == from.ID {
			e.writebackExit(to, from, uint32(idx))
			return
		}
	}
}

// writebackEnter copies every variable in the includer/includee
// intersection from the includer's current value into the includee,
// before the includee runs (spec §4.6).
func (e *Engine) writebackEnter(includer, includee *Context, idx uint32) {
	for thisID, otherID := range includer.intersectionFor(idx) {
		v, err := e.readVar(includer, thisID)
		if err != nil {
			continue
		}
		e.setImmediate(includee, otherID, v)
	}
}

// writebackExit copies every variable in the includer/includee
// intersection back from the includee into the includer, once the
// includee has run (spec §4.6, spec §8's "k visible to main" scenario).
func (e *Engine) writebackExit(includer, includee *Context, idx uint32) {
	for thisID, otherID := range includer.intersectionFor(idx) {
		v, err := e.readVar(includee, otherID)
		if err != nil {
			continue
		}
		e.setImmediate(includer, thisID, v)
	}
}

// resolveCrossContext redirects a local id to its owning include's
// context when the data segment marks it Imported; otherwise it
// resolves to ctx itself.
func (e *Engine) resolveCrossContext(ctx *Context, localID uint32, isProc bool) (*Context, uint32) {
	entries := ctx.VarEntries
	if isProc {
		entries = ctx.ProcEntries
	}
	de, ok := entries[localID]
	if !ok || !de.Imported {
		return ctx, localID
	}
	if int(de.OwningInclude) >= len(ctx.IncludeContexts) {
		return ctx, localID
	}
	target := e.contexts[ctx.IncludeContexts[de.OwningInclude]]
	return target, de.ImportedID
}

func (e *Engine) fetcher(ctx *Context) bytecode.VarFetcher {
	return func(id uint32) (bytecode.Value, error) { return e.readVar(ctx, id) }
}

func (e *Engine) readVar(ctx *Context, localID uint32) (bytecode.Value, error) {
	tctx, tid := e.resolveCrossContext(ctx, localID, false)
	cell, ok := tctx.Data[tid]
	if !ok {
		return bytecode.Value{}, tvmerrors.Newf(tvmerrors.RuntimeUndef, "variable %d has no value", tid)
	}
	return e.readCell(tctx, cell)
}

func (e *Engine) readCell(ctx *Context, cell *bytecode.Cell) (bytecode.Value, error) {
	switch cell.StorageKind {
	case bytecode.CellImmediate:
		return cell.Immediate.CoerceTo(cell.Kind)
	case bytecode.CellLinked:
		target, ok := e.contexts[cell.LinkedContext]
		if !ok {
			return bytecode.Value{}, tvmerrors.New(tvmerrors.RuntimeUndef, "linked context no longer live")
		}
		v, err := e.readVar(target, cell.LinkedVar)
		if err != nil {
			return bytecode.Value{}, err
		}
		return v.CoerceTo(cell.Kind)
	case bytecode.CellExpression:
		if v, ok := cell.Memoized(); ok {
			return v, nil
		}
		v, err := bytecode.Eval(cell.Expr, cell.Kind, e.fetcher(ctx))
		if err != nil {
			return bytecode.Value{}, tvmerrors.Wrap(tvmerrors.ArithError, err, "expression evaluation")
		}
		cell.Memoize(v)
		return v, nil
	case bytecode.CellCondition:
		v, err := bytecode.Eval(cell.Expr, bytecode.KindBool, e.fetcher(ctx))
		if err != nil {
			return bytecode.Value{}, tvmerrors.Wrap(tvmerrors.ArithError, err, "condition evaluation")
		}
		return v, nil
	default:
		return bytecode.Value{}, tvmerrors.Newf(tvmerrors.TypeError, "unknown cell storage kind %v", cell.StorageKind)
	}
}

// setImmediate overwrites ctx's local cell for localID with v,
// coercing to the cell's declared kind if one already exists and
// otherwise adopting v's own kind for a freshly created cell.
func (e *Engine) setImmediate(ctx *Context, localID uint32, v bytecode.Value) {
	if cell, ok := ctx.Data[localID]; ok {
		if coerced, err := v.CoerceTo(cell.Kind); err == nil {
			cell.StorageKind = bytecode.CellImmediate
			cell.Immediate = coerced
		}
		return
	}
	ctx.Data[localID] = bytecode.NewImmediateCell(v.Kind, v)
}

// step executes exactly one instruction of ctx, advancing its ip (or
// redirecting control flow, or switching the engine's current context).
func (e *Engine) step(ctx *Context) error {
	instrs := ctx.Module.RuntimeInstrs
	if ctx.IP < 0 || int(ctx.IP) >= len(instrs) {
		ctx.EOF = true
		return nil
	}
	ins := instrs[ctx.IP]

	switch ins.Op {
	case bytecode.OpNOP:
		ctx.IP++
	case bytecode.OpSET:
		return e.execSET(ctx, ins)
	case bytecode.OpPUSH:
		return e.execPUSH(ctx, ins)
	case bytecode.OpJUMP:
		ctx.IP = ins.JumpTarget
	case bytecode.OpIF:
		return e.execIF(ctx, ins)
	case bytecode.OpDEFINE:
		ctx.Procs[ins.ProcID] = ins
		ctx.IP++
	case bytecode.OpRET:
		return e.execRET(ctx)
	case bytecode.OpCALL:
		return e.execCALL(ctx, ins)
	case bytecode.OpWRITE:
		return e.execWRITE(ctx, ins)
	case bytecode.OpINPUT:
		return e.execINPUT(ctx, ins)
	case bytecode.OpEOF:
		ctx.EOF = true
	default:
		// ELSE/IF-SHORT/END/the reserved nibble never reach a
		// materialized runtime stream (see bytecode.Op's doc comment).
		ctx.IP++
	}
	return nil
}

func (e *Engine) execSET(ctx *Context, ins *bytecode.Instr) error {
	switch {
	case ins.IsExpr:
		// Evaluated against the current values and memoized here, so a
		// self-referencing update like (n * digit) reads n's old value.
		v, err := bytecode.Eval(ins.CompiledExpr, ins.DeclKind, e.fetcher(ctx))
		if err != nil {
			return tvmerrors.Wrap(tvmerrors.ArithError, err, "expression evaluation")
		}
		cell, ok := ctx.Data[ins.VarID]
		if ok && cell.StorageKind == bytecode.CellExpression {
			cell.Expr = ins.CompiledExpr
			cell.Kind = ins.DeclKind
		} else {
			cell = bytecode.NewExpressionCell(ins.DeclKind, ins.CompiledExpr)
			ctx.Data[ins.VarID] = cell
		}
		cell.Memoize(v)
	case ins.IsLink:
		tctx, tid := e.resolveCrossContext(ctx, ins.LinkedVarID, false)
		if existing, ok := ctx.Data[ins.VarID]; ok && existing.StorageKind == bytecode.CellLinked {
			existing.LinkedContext, existing.LinkedVar, existing.Kind = tctx.ID, tid, ins.DeclKind
		} else {
			ctx.Data[ins.VarID] = bytecode.NewLinkedCell(ins.DeclKind, tctx.ID, tid)
		}
	default:
		if existing, ok := ctx.Data[ins.VarID]; ok && existing.StorageKind == bytecode.CellImmediate {
			existing.Immediate, existing.Kind = ins.Literal, ins.DeclKind
		} else {
			ctx.Data[ins.VarID] = bytecode.NewImmediateCell(ins.DeclKind, ins.Literal)
		}
	}
	ctx.IP++
	return nil
}

func (e *Engine) execPUSH(ctx *Context, ins *bytecode.Instr) error {
	isProc := ins.PushKind == bytecode.PushProcedure
	tctx, tid := e.resolveCrossContext(ctx, ins.ObjectID, isProc)
	if isProc {
		delete(tctx.Procs, tid)
	} else {
		delete(tctx.Data, tid)
	}
	ctx.IP++
	return nil
}

func (e *Engine) execIF(ctx *Context, ins *bytecode.Instr) error {
	var cond bytecode.Value
	var err error
	if ins.CondIsExpr {
		cond, err = bytecode.Eval(ins.CondExpr, bytecode.KindBool, e.fetcher(ctx))
	} else {
		cond, err = e.readVar(ctx, ins.CondVarID)
		if err == nil {
			cond, err = cond.CoerceTo(bytecode.KindBool)
		}
	}
	if err != nil {
		return tvmerrors.Wrap(tvmerrors.TypeError, err, "IF condition")
	}
	if cond.B {
		ctx.IP++
	} else {
		ctx.IP = ins.ElseTarget
	}
	return nil
}

func (e *Engine) execDEFINEProcLookup(ctx *Context, localID uint32) (*Context, *bytecode.Instr, error) {
	tctx, tid := e.resolveCrossContext(ctx, localID, true)
	descriptor, ok := tctx.Procs[tid]
	if !ok {
		return nil, nil, tvmerrors.Newf(tvmerrors.RuntimeUndef, "procedure %d is not defined", tid)
	}
	return tctx, descriptor, nil
}

func (e *Engine) execCALL(ctx *Context, ins *bytecode.Instr) error {
	target, descriptor, err := e.execDEFINEProcLookup(ctx, ins.CallProcID)
	if err != nil {
		return err
	}
	target.ReturnStack = append(target.ReturnStack, retFrame{ContextID: ctx.ID, IP: ctx.IP + 1})
	if target != ctx {
		e.switchContext(ctx, target)
	}
	e.current = target.ID
	target.IP = descriptor.BodyStart
	return nil
}

func (e *Engine) execRET(ctx *Context) error {
	if len(ctx.ReturnStack) == 0 {
		return tvmerrors.New(tvmerrors.StackError, "RET with an empty return stack")
	}
	n := len(ctx.ReturnStack) - 1
	frame := ctx.ReturnStack[n]
	ctx.ReturnStack = ctx.ReturnStack[:n]

	target, ok := e.contexts[frame.ContextID]
	if !ok {
		return tvmerrors.New(tvmerrors.StackError, "RET into a context that no longer exists")
	}
	if target != ctx {
		e.switchContext(ctx, target)
	}
	e.current = target.ID
	target.IP = frame.IP
	return nil
}

func (e *Engine) execWRITE(ctx *Context, ins *bytecode.Instr) error {
	if ins.WriteIsVar {
		v, err := e.readVar(ctx, ins.WriteVarID)
		if err != nil {
			return err
		}
		fmt.Fprintln(e.stdout, v.Render())
	} else {
		fmt.Fprintln(e.stdout, ins.WriteLiteral)
	}
	ctx.IP++
	return nil
}

func (e *Engine) execINPUT(ctx *Context, ins *bytecode.Instr) error {
	line, err := e.stdin.ReadString('\n')
	if err != nil && line == "" {
		return tvmerrors.Wrap(tvmerrors.IOError, err, "INPUT: reading stdin")
	}
	line = strings.TrimRight(line, "\r\n")

	v, err := bytecode.ParseLiteral(line, ins.InputKind)
	if err != nil {
		return tvmerrors.Wrap(tvmerrors.ArithError, err, "INPUT: parsing value")
	}
	e.setImmediate(ctx, ins.InputVarID, v)
	ctx.IP++
	return nil
}
