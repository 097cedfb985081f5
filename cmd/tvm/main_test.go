package main

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

// TestMain lets testscript invoke "tvm" as an in-process subprocess
// command inside each .txtar script, instead of shelling out to a
// built binary.
func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"tvm": run,
	}))
}

// TestScripts drives the black-box pack/run scenarios of spec.md §8
// end to end: each .txtar under testdata/script packs a source file
// and asserts on the run's stdout.
func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/script",
	})
}
