package compiler

import (
	"tvm/internal/bytecode"
	"tvm/internal/parser"
)

// postPass runs the three C5 stages over everything the line walk
// deferred, and returns the finished data segment (spec §4.4).
func (b *Builder) postPass() []*bytecode.DataEntry {
	var entries []*bytecode.DataEntry

	b.stage1Intersections(&entries)
	b.stage2UnresolvedRefs(&entries)
	b.stage3Expressions(&entries)

	return entries
}

// stage1Intersections records, for every locally declared variable,
// every include whose data segment also declares that name (spec
// §4.4 stage 1). Procedures are not considered here: a CALL to a
// same-named procedure in an include is handled by stage 2 like any
// other deferred reference, since calling doesn't need a writeback
// table — only shared variables do.
func (b *Builder) stage1Intersections(entries *[]*bytecode.DataEntry) {
	for _, name := range b.vars.order {
		id := b.vars.byName[name]
		entry := &bytecode.DataEntry{LocalID: id, Name: name}
		for incIdx, desc := range b.includeDescs {
			for _, de := range desc.DataSegment {
				if !de.IsProcedure && de.Name == name {
					entry.MeetsInIncludes = true
					entry.Intersections = append(entry.Intersections, bytecode.IntersectionPair{
						IncludeID:     uint32(incIdx),
						ImportedVarID: de.LocalID,
					})
				}
			}
		}
		*entries = append(*entries, entry)
	}
	for _, name := range b.procs.order {
		*entries = append(*entries, &bytecode.DataEntry{LocalID: b.procs.byName[name], Name: name, IsProcedure: true})
	}
}

// resolveName looks name up locally, then in the already-synthesized
// import cache, then searches every include's data segment in
// inclusion order, synthesizing a new local id (and a new Imported
// data-segment entry) on first hit. Shared by stage 2 and stage 3 so
// a name referenced both as a bare operand and inside an expression
// resolves to the same id.
func (b *Builder) resolveName(name string, isProc bool, entries *[]*bytecode.DataEntry) (uint32, bool) {
	table, cache := b.vars, b.importedVars
	if isProc {
		table, cache = b.procs, b.importedProcs
	}
	if id, ok := table.lookup(name); ok {
		return id, true
	}
	if id, ok := cache[name]; ok {
		return id, true
	}
	for incIdx, desc := range b.includeDescs {
		for _, de := range desc.DataSegment {
			if de.IsProcedure != isProc || de.Name != name {
				continue
			}
			id := table.ensure(name)
			cache[name] = id
			*entries = append(*entries, &bytecode.DataEntry{
				LocalID:       id,
				Name:          name,
				IsProcedure:   isProc,
				Imported:      true,
				OwningInclude: uint32(incIdx),
				ImportedID:    de.LocalID,
			})
			return id, true
		}
	}
	return 0, false
}

// stage2UnresolvedRefs resolves every deferred PUSH/WRITE/IF/CALL/
// SET-linked name reference (spec §4.4 stage 2).
func (b *Builder) stage2UnresolvedRefs(entries *[]*bytecode.DataEntry) {
	for _, ref := range b.pendingRefs {
		var id uint32
		var found bool

		if ref.field == fieldPushObject {
			// PUSH's target kind (variable vs procedure) is unknown
			// until resolution; a variable match takes priority.
			if vid, ok := b.resolveName(ref.name, false, entries); ok {
				id, found = vid, true
				ref.instr.PushKind = bytecode.PushVariable
			} else if pid, ok := b.resolveName(ref.name, true, entries); ok {
				id, found = pid, true
				ref.instr.PushKind = bytecode.PushProcedure
			}
		} else {
			id, found = b.resolveName(ref.name, ref.isProc, entries)
		}

		if !found {
			b.diagf(ref.line, "ERR-UNRESOLVED", "object %q not found", ref.name)
			id = 0
		}

		switch ref.field {
		case fieldSetLinked:
			ref.instr.LinkedVarID = id
		case fieldWriteVar:
			ref.instr.WriteVarID = id
		case fieldIfCond:
			ref.instr.CondVarID = id
		case fieldCallProc:
			ref.instr.CallProcID = id
		case fieldPushObject:
			ref.instr.ObjectID = id
		}
	}
}

// stage3Expressions substitutes every bare variable name inside each
// deferred SET/IF expression with "@id" and renders the final text
// into the instruction's payload (spec §4.4 stage 3).
func (b *Builder) stage3Expressions(entries *[]*bytecode.DataEntry) {
	for _, site := range b.exprSites {
		expr := site.instr.CompiledExpr
		if site.isCond {
			expr = site.instr.CondExpr
		}

		missing := parser.ResolveNames(expr, func(name string) (uint32, bool) {
			return b.resolveName(name, false, entries)
		})
		for _, name := range missing {
			b.diagf(0, "ERR-UNRESOLVED", "object %q not found", name)
		}

		text := parser.Render(expr)
		if site.isCond {
			site.instr.CondText = text
		} else {
			site.instr.ExprText = text
		}
	}
}
