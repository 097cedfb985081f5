// Package module implements C6's load half: turning a packed (or
// still-textual) module into a materialized instruction/data-segment
// tree, recursively resolving its includes, with a cache keyed by
// module base name (each Engine owns one) so repeated includes of the
// same module within one run are not recompiled (spec §3, §4.6).
package module

import (
	"path/filepath"
	"strings"
	"sync"

	"tvm/internal/bytecode"
	"tvm/internal/compiler"
	tvmerrors "tvm/internal/errors"
	"tvm/internal/parser"
)

// LoadedModule is one module's materialized form: its runtime
// instructions (with every SET/IF expression re-parsed into a usable
// Expr tree), its data segment, and its includes in %include% order.
type LoadedModule struct {
	Path          string
	RuntimeInstrs []*bytecode.Instr
	DataSegment   []*bytecode.DataEntry
	Includes      []*LoadedModule
}

// Cache deduplicates module loads by base name for as long as the
// Cache lives (spec §3's "compiled-modules cache"; §8's load idempotence
// invariant).
type Cache struct {
	mu     sync.RWMutex
	byName map[string]*LoadedModule
}

func NewCache() *Cache {
	return &Cache{byName: map[string]*LoadedModule{}}
}

// Load materializes path, reusing a cached module by base name if one
// was already loaded. It reports whether the result came from cache.
func (c *Cache) Load(path string) (*LoadedModule, bool, error) {
	key := filepath.Base(path)

	c.mu.RLock()
	if lm, ok := c.byName[key]; ok {
		c.mu.RUnlock()
		return lm, true, nil
	}
	c.mu.RUnlock()

	lm, err := c.loadFresh(path)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	// Another goroutine may have raced us; first writer wins so every
	// caller observes the same *LoadedModule for a given name.
	if existing, ok := c.byName[key]; ok {
		c.mu.Unlock()
		return existing, true, nil
	}
	c.byName[key] = lm
	c.mu.Unlock()

	return lm, false, nil
}

func (c *Cache) loadFresh(path string) (*LoadedModule, error) {
	var cm *compiler.CompiledModule
	var err error
	if strings.HasSuffix(path, ".bin") {
		cm, err = compiler.LoadBinaryFile(path)
	} else {
		cm, _, err = compiler.CompileFile(path)
	}
	if err != nil {
		return nil, tvmerrors.Wrap(tvmerrors.IOError, err, "load module "+path)
	}

	if err := materializeExpressions(cm.RuntimeInstrs); err != nil {
		return nil, tvmerrors.Wrap(tvmerrors.ParseError, err, "re-parse expression payloads")
	}

	dir := filepath.Dir(path)
	includes := make([]*LoadedModule, 0, len(cm.IncludeInstrs))
	for _, ins := range cm.IncludeInstrs {
		childPath := ins.IncludePath
		if !filepath.IsAbs(childPath) {
			childPath = filepath.Join(dir, childPath)
		}
		child, _, err := c.Load(childPath)
		if err != nil {
			return nil, err
		}
		includes = append(includes, child)
	}

	return &LoadedModule{
		Path:          path,
		RuntimeInstrs: cm.RuntimeInstrs,
		DataSegment:   cm.DataSegment,
		Includes:      includes,
	}, nil
}

// materializeExpressions turns every decoded SET/IF expression's
// "@id"-substituted text back into an evaluable tree (instr.go's
// DecodeInstr deliberately leaves this to the loader). Re-parsing
// unconditionally — rather than only when CompiledExpr is nil — keeps
// a module compiled in-process and one round-tripped through a .bin
// file behaving identically.
func materializeExpressions(instrs []*bytecode.Instr) error {
	for _, ins := range instrs {
		switch ins.Op {
		case bytecode.OpSET:
			if !ins.IsExpr {
				continue
			}
			expr, err := parser.Parse(ins.ExprText)
			if err != nil {
				return err
			}
			ins.CompiledExpr = expr
		case bytecode.OpIF:
			if !ins.CondIsExpr {
				continue
			}
			expr, err := parser.Parse(ins.CondText)
			if err != nil {
				return err
			}
			ins.CondExpr = expr
		}
	}
	return nil
}

// ClearCache drops every cached module. Called by the engine on
// disposal (spec §5: "the module cache is cleared on engine
// disposal").
func (c *Cache) ClearCache() {
	c.mu.Lock()
	c.byName = map[string]*LoadedModule{}
	c.mu.Unlock()
}
