package module

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSrc(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestCacheLoadIsIdempotentByBaseName(t *testing.T) {
	dir := t.TempDir()
	path := writeSrc(t, dir, "main.txt", "SET a, 1: INT\nWRITE a\n")

	c := NewCache()
	lm1, fromCache1, err := c.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fromCache1 {
		t.Error("first load should not report fromCache")
	}
	lm2, fromCache2, err := c.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !fromCache2 {
		t.Error("second load should report fromCache")
	}
	if lm1 != lm2 {
		t.Error("repeated Load of the same module should return the identical *LoadedModule")
	}
}

func TestCacheLoadResolvesIncludesRecursively(t *testing.T) {
	dir := t.TempDir()
	writeSrc(t, dir, "lib.txt", "DEFINE g\nEND\nSET k, 7: INT\n")
	mainPath := writeSrc(t, dir, "main.txt", "%include% lib.txt\nWRITE k\n")

	c := NewCache()
	lm, _, err := c.Load(mainPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(lm.Includes) != 1 {
		t.Fatalf("got %d includes, want 1", len(lm.Includes))
	}
	if lm.Includes[0].Path != filepath.Join(dir, "lib.txt") {
		t.Errorf("included module path = %q", lm.Includes[0].Path)
	}
}

func TestClearCacheDropsEntries(t *testing.T) {
	dir := t.TempDir()
	path := writeSrc(t, dir, "main.txt", "SET a, 1: INT\n")

	c := NewCache()
	lm1, _, err := c.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.ClearCache()
	lm2, fromCache, err := c.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fromCache {
		t.Error("load after ClearCache should not report fromCache")
	}
	if lm1 == lm2 {
		t.Error("load after ClearCache should produce a fresh *LoadedModule")
	}
}
