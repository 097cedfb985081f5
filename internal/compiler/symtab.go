package compiler

// symbolTable assigns dense ids to names in first-seen order, for the
// two per-module namespaces (variables, procedures) spec §3 keeps
// separate. The same table backs both build-time declarations (SET,
// INPUT, DEFINE target names) and post-pass import synthesis (C5
// stage 2) — both paths go through ensure, so the id space for
// locally declared and later-imported names of the same kind never
// collides.
type symbolTable struct {
	byName map[string]uint32
	order  []string
	next   uint32
}

func newSymbolTable() *symbolTable {
	return &symbolTable{byName: map[string]uint32{}}
}

// ensure returns name's id, assigning the next dense id if this is the
// first time name has been seen.
func (t *symbolTable) ensure(name string) uint32 {
	if id, ok := t.byName[name]; ok {
		return id
	}
	id := t.next
	t.next++
	t.byName[name] = id
	t.order = append(t.order, name)
	return id
}

func (t *symbolTable) lookup(name string) (uint32, bool) {
	id, ok := t.byName[name]
	return id, ok
}
