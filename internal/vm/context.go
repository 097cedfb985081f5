package vm

import (
	"tvm/internal/bytecode"
	"tvm/internal/module"
)

// retFrame is one return-stack entry: where to resume, and in which
// context, once the procedure currently running returns (spec §4.6).
type retFrame struct {
	ContextID uint32
	IP        int32
}

// Context is one loaded module's live execution state (spec §3's
// "Execution context"). Unlike the teacher's singleton VM, every
// Context here is an explicit, engine-owned struct with no global
// reach outside the Engine that created it.
type Context struct {
	ID     uint32
	Module *module.LoadedModule

	Data  map[uint32]*bytecode.Cell
	Procs map[uint32]*bytecode.Instr // proc local id -> its DEFINE instruction

	IP  int32
	EOF bool

	ReturnStack []retFrame

	// IncludeContexts maps this module's include index (the same index
	// used by DataEntry.OwningInclude and IntersectionPair.IncludeID)
	// to the global context id of the loaded include.
	IncludeContexts []uint32

	// VarEntries/ProcEntries index this context's own data segment by
	// local id, so a cross-context reference (an Imported entry) can
	// be redirected to its owning include's context without a linear
	// scan on every access.
	VarEntries  map[uint32]*bytecode.DataEntry
	ProcEntries map[uint32]*bytecode.DataEntry

	intersections map[uint32]map[uint32]uint32 // include idx -> intersectionFor cache
}

func newContext(id uint32, lm *module.LoadedModule) *Context {
	ctx := &Context{
		ID:          id,
		Module:      lm,
		Data:        map[uint32]*bytecode.Cell{},
		Procs:       map[uint32]*bytecode.Instr{},
		VarEntries:  map[uint32]*bytecode.DataEntry{},
		ProcEntries: map[uint32]*bytecode.DataEntry{},
	}
	for _, de := range lm.DataSegment {
		if de.IsProcedure {
			ctx.ProcEntries[de.LocalID] = de
		} else {
			ctx.VarEntries[de.LocalID] = de
		}
	}
	return ctx
}

// intersectionFor returns, for the include at idx, the map from this
// context's own local variable id to the corresponding variable id
// inside that include's context — combining both the ways a shared
// name can appear in the data segment: a locally declared variable
// that MeetsInIncludes, or a name this context Imported from that
// include. Built lazily and cached, since it's only ever needed at a
// context switch, not on every instruction.
func (ctx *Context) intersectionFor(idx uint32) map[uint32]uint32 {
	if ctx.intersections == nil {
		ctx.intersections = map[uint32]map[uint32]uint32{}
	}
	if table, ok := ctx.intersections[idx]; ok {
		return table
	}
	table := map[uint32]uint32{}
	for _, de := range ctx.VarEntries {
		if de.MeetsInIncludes {
			for _, pair := range de.Intersections {
				if pair.IncludeID == idx {
					table[de.LocalID] = pair.ImportedVarID
				}
			}
		}
		if de.Imported && de.OwningInclude == idx {
			table[de.LocalID] = de.ImportedID
		}
	}
	ctx.intersections[idx] = table
	return table
}
