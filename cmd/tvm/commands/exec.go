package commands

import (
	"fmt"
	"os"

	"tvm/internal/compiler"
	tvmerrors "tvm/internal/errors"
	"tvm/internal/vm"
)

// ExecCommand packs src to a temporary .bin file and runs it
// immediately — the harness-level equivalent of the teacher's "r"/
// "run" alias operating directly on a source file, without leaving a
// .bin artifact behind.
func ExecCommand(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tvm exec <source.txt>")
	}
	src := args[0]

	cm, diags, err := compiler.CompileFile(src)
	for _, d := range diags {
		fmt.Fprintln(os.Stderr, d.String())
	}
	if err != nil {
		return tvmerrors.Wrap(tvmerrors.IOError, err, "compile "+src)
	}

	tmp, err := os.CreateTemp("", "tvm-exec-*.bin")
	if err != nil {
		return tvmerrors.Wrap(tvmerrors.IOError, err, "create temp module")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := cm.Encode(tmp); err != nil {
		tmp.Close()
		return tvmerrors.Wrap(tvmerrors.IOError, err, "write temp module")
	}
	if err := tmp.Close(); err != nil {
		return tvmerrors.Wrap(tvmerrors.IOError, err, "close temp module")
	}

	engine := vm.NewEngine(os.Stdout, os.Stdin)
	defer engine.Close()
	return engine.Run(tmpPath)
}
