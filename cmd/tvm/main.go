// cmd/tvm/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"tvm/cmd/tvm/commands"
)

// commandAliases mirrors the teacher CLI's short-form dispatch (spec
// §6's harness is free to offer convenience aliases around the two
// core entry points, pack and execute).
var commandAliases = map[string]string{
	"p": "pack",
	"r": "run",
	"x": "exec",
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run dispatches one CLI invocation and returns the process exit code.
// Split out from main so the testscript harness (see main_test.go) can
// register it as a subprocess command without forking a real process
// per scenario.
func run(args []string) int {
	if len(args) == 0 {
		showUsage()
		return 1
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}
	rest := args[1:]

	var err error
	switch cmd {
	case "pack":
		err = commands.PackCommand(rest)
	case "run":
		err = commands.RunCommand(rest)
	case "exec":
		err = commands.ExecCommand(rest)
	case "--help", "-h", "help":
		showUsage()
		return 0
	default:
		showUsage()
		return 1
	}

	if err != nil {
		log.Printf("tvm: %v", err)
		return 1
	}
	return 0
}

func showUsage() {
	fmt.Println(`tvm - a line-oriented toy bytecode toolchain

Usage:
  tvm pack <source.txt> [more sources...]   compile source module(s) to .bin
  tvm run <module.bin>                      load and execute a packed module
  tvm exec <source.txt>                     pack to a temp file and run it

Aliases: p=pack, r=run, x=exec`)
}
