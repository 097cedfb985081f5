package commands

import (
	"fmt"
	"os"

	"tvm/internal/vm"
)

// RunCommand loads and executes a previously packed .bin module.
func RunCommand(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tvm run <module.bin>")
	}

	engine := vm.NewEngine(os.Stdout, os.Stdin)
	defer engine.Close()

	return engine.Run(args[0])
}
