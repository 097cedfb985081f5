package vm

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	var out bytes.Buffer
	e := NewEngine(&out, strings.NewReader(""))
	defer e.Close()
	if err := e.Run(path); err != nil {
		t.Fatalf("Run(%s): %v", name, err)
	}
	return out.String()
}

func TestEngineSimpleSetWrite(t *testing.T) {
	dir := t.TempDir()
	got := runSource(t, dir, "main.txt", "SET a, 5: INT\nWRITE a\n")
	if got != "5\n" {
		t.Errorf("got %q, want %q", got, "5\n")
	}
}

func TestEngineExpressionPrecedence(t *testing.T) {
	dir := t.TempDir()
	src := "SET r, (2 + 3 * 4): INT\nWRITE r\n"
	got := runSource(t, dir, "main.txt", src)
	if got != "14\n" {
		t.Errorf("got %q, want %q", got, "14\n")
	}
}

func TestEngineDoubleNegation(t *testing.T) {
	dir := t.TempDir()
	src := "SET r, (-(-2)): INT\nWRITE r\n"
	got := runSource(t, dir, "main.txt", src)
	if got != "2\n" {
		t.Errorf("got %q, want %q", got, "2\n")
	}
}

func TestEngineRecursiveFactorialViaSharedVariables(t *testing.T) {
	dir := t.TempDir()
	src := strings.Join([]string{
		"SET digit, 5: INT",
		"SET fact_return, 1: INT",
		"DEFINE factorial",
		"IF (digit > 1):",
		"SET fact_return, (fact_return * digit): INT",
		"SET digit, (digit - 1): INT",
		"CALL factorial",
		"END",
		"END",
		"CALL factorial",
		"WRITE fact_return",
		"",
	}, "\n")
	got := runSource(t, dir, "main.txt", src)
	if got != "120\n" {
		t.Errorf("got %q, want %q", got, "120\n")
	}
}

func TestEngineIncludeTimeWriteback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lib.txt"),
		[]byte("DEFINE g\nEND\nSET k, 7: INT\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got := runSource(t, dir, "main.txt", "%include% lib.txt\nWRITE k\n")
	if got != "7\n" {
		t.Errorf("got %q, want %q", got, "7\n")
	}
}

func TestEngineTernaryShortIf(t *testing.T) {
	dir := t.TempDir()
	trueCase := runSource(t, dir, "a.txt",
		"SET a, 1: INT\nSET b, 2: INT\nIF (a<b): SET r, 1: INT ? SET r, 0: INT\nWRITE r\n")
	if trueCase != "1\n" {
		t.Errorf("a<b case: got %q, want %q", trueCase, "1\n")
	}

	falseCase := runSource(t, dir, "b.txt",
		"SET a, 2: INT\nSET b, 1: INT\nIF (a<b): SET r, 1: INT ? SET r, 0: INT\nWRITE r\n")
	if falseCase != "0\n" {
		t.Errorf("a>=b case: got %q, want %q", falseCase, "0\n")
	}
}

func TestEngineIfElseBothBranches(t *testing.T) {
	dir := t.TempDir()
	pos := runSource(t, dir, "pos.txt",
		"SET a, 1: INT\nIF (a > 0):\nWRITE \"pos\"\nEND ?\nWRITE \"nonpos\"\nEND\n")
	if pos != "pos\n" {
		t.Errorf("got %q, want %q", pos, "pos\n")
	}

	neg := runSource(t, dir, "neg.txt",
		"SET a, -1: INT\nIF (a > 0):\nWRITE \"pos\"\nEND ?\nWRITE \"nonpos\"\nEND\n")
	if neg != "nonpos\n" {
		t.Errorf("got %q, want %q", neg, "nonpos\n")
	}
}

// Whole-number FLOAT literals in an expression must survive the
// stage-3 round-trip (emit -> reparse on load) as floats, not ints,
// or "3.0 / 2.0" silently becomes integer division.
func TestEngineFloatDivisionWholeNumberLiterals(t *testing.T) {
	dir := t.TempDir()
	src := "SET r, (3.0 / 2.0): FLOAT\nWRITE r\n"
	got := runSource(t, dir, "main.txt", src)
	if got != "1.5\n" {
		t.Errorf("got %q, want %q", got, "1.5\n")
	}
}
