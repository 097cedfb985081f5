// Package commands implements the tvm CLI's subcommands, separated
// from main.go's dispatch table the way cmd/sentra/commands separates
// BuildCommand from cmd/sentra/main.go.
package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"tvm/internal/compiler"
	tvmerrors "tvm/internal/errors"
)

// PackCommand compiles one or more source modules to their .bin form.
// Packing N independent files shares no mutable state, so files run
// concurrently through an errgroup — a harness-level concurrency that
// does not touch the single-threaded execution engine (spec §5).
func PackCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tvm pack <source.txt> [more sources...]")
	}
	runID := uuid.New()
	colorize := isatty.IsTerminal(os.Stdout.Fd())

	var g errgroup.Group
	for _, src := range args {
		src := src
		g.Go(func() error {
			return packOne(runID, src, colorize)
		})
	}
	return g.Wait()
}

func outPath(src string) string {
	ext := filepath.Ext(src)
	return strings.TrimSuffix(src, ext) + ".bin"
}

func packOne(runID uuid.UUID, src string, colorize bool) error {
	start := time.Now()
	out := outPath(src)

	cm, diags, err := compiler.CompileFile(src)
	for _, d := range diags {
		printDiagnostic(runID, src, d, colorize)
	}
	if err != nil {
		return tvmerrors.Wrap(tvmerrors.IOError, err, "pack "+src)
	}

	f, err := os.Create(out)
	if err != nil {
		return tvmerrors.Wrap(tvmerrors.IOError, err, "create "+out)
	}
	defer f.Close()
	if err := cm.Encode(f); err != nil {
		return tvmerrors.Wrap(tvmerrors.IOError, err, "write "+out)
	}

	info, statErr := f.Stat()
	var size int64
	if statErr == nil {
		size = info.Size()
	}

	names := declaredNames(cm)
	fmt.Printf("[%s] packed %s -> %s: %s instructions, %s data segment entries (%s), %s, in %s\n",
		shortID(runID), src, out,
		humanize.Comma(int64(len(cm.RuntimeInstrs)+len(cm.IncludeInstrs))),
		humanize.Comma(int64(len(cm.DataSegment))),
		strings.Join(names, ", "),
		humanize.Bytes(uint64(size)),
		time.Since(start).Round(time.Microsecond))
	return nil
}

// declaredNames lists a module's data-segment symbol names in
// deterministic sorted order for the pack summary, since the segment
// itself is ordered by first-seen declaration rather than name.
func declaredNames(cm *compiler.CompiledModule) []string {
	names := make([]string, 0, len(cm.DataSegment))
	for _, e := range cm.DataSegment {
		names = append(names, e.Name)
	}
	slices.Sort(names)
	return names
}

func printDiagnostic(runID uuid.UUID, src string, d compiler.Diagnostic, colorize bool) {
	msg := fmt.Sprintf("[%s] %s: %s", shortID(runID), src, d.String())
	if colorize {
		fmt.Fprintf(os.Stderr, "\x1b[31m%s\x1b[0m\n", msg)
		return
	}
	fmt.Fprintln(os.Stderr, msg)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
