package compiler

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	tvmerrors "tvm/internal/errors"
)

// Compile builds source (already read into memory) into a
// CompiledModule. baseDir is used to resolve relative %include%
// paths. Diagnostics accumulate rather than aborting the build (spec
// §7); a non-nil error is returned only for a failure that prevents
// producing any module at all (currently: an include that cannot be
// opened at all — everything else becomes a Diagnostic).
func Compile(source, baseDir string) (*CompiledModule, []Diagnostic, error) {
	b := newBuilder(baseDir)
	for i, raw := range strings.Split(source, "\n") {
		b.ProcessLine(raw, i+1)
	}
	cm, diags, err := b.Finish()
	if err != nil {
		return nil, diags, err
	}
	for _, d := range diags {
		if d.Kind == string(tvmerrors.IOError) {
			return nil, diags, tvmerrors.AtLine(tvmerrors.New(tvmerrors.IOError, d.Message), d.Line)
		}
	}
	return cm, diags, nil
}

// CompileFile reads path and compiles it, resolving its own relative
// includes against path's directory.
func CompileFile(path string) (*CompiledModule, []Diagnostic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, tvmerrors.Wrap(tvmerrors.IOError, err, "read source module")
	}
	return Compile(string(data), filepath.Dir(path))
}

// LoadBinaryFile decodes a previously packed .bin module.
func LoadBinaryFile(path string) (*CompiledModule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tvmerrors.Wrap(tvmerrors.IOError, err, "open binary module")
	}
	defer f.Close()
	cm, err := DecodeModule(f)
	if err != nil {
		return nil, tvmerrors.Wrap(tvmerrors.IOError, err, "decode binary module")
	}
	return cm, nil
}

// resolveInclude compiles or loads path (relative to b.baseDir unless
// absolute) to obtain its data-segment descriptor, assigns it the
// next include index, and records it for the post-pass resolver
// (spec §4.3: "%include% is evaluated at compile time"). The nested
// module's own instructions are discarded here — internal/module
// reloads and executes the include independently at run time.
func (b *Builder) resolveInclude(path string, lineNo int) (uint32, error) {
	full := path
	if !filepath.IsAbs(path) {
		full = filepath.Join(b.baseDir, path)
	}

	var cm *CompiledModule
	var err error
	if strings.HasSuffix(path, ".bin") {
		cm, err = LoadBinaryFile(full)
	} else {
		var diags []Diagnostic
		cm, diags, err = CompileFile(full)
		b.diagnostics = append(b.diagnostics, diags...)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "line %d", lineNo)
	}

	idx := uint32(len(b.includeDescs))
	b.includeDescs = append(b.includeDescs, &includeDescriptor{Path: path, DataSegment: cm.DataSegment})
	return idx, nil
}
