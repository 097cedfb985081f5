package compiler

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"tvm/internal/bytecode"
)

// sectionSentinel separates the include-instruction section from the
// runtime-instruction section (spec §4.5). It is safe against
// collision with any real instruction's leading byte: the only opcode
// occupying nibble 0xF is EOF, and EOF always encodes with flags 0
// (byte 0xF0), never 0xFF.
const sectionSentinel = 0xFF

// CompiledModule is the in-memory result of building one module: the
// include-instruction section, the runtime-instruction section
// (always terminated by an EOF instruction), and the data segment.
// It is both what the packer writes to a .bin file and what the
// compiler keeps in memory when resolving a nested %include% at build
// time (see compile.go) — no separate on-disk round trip is needed
// for that case.
type CompiledModule struct {
	IncludeInstrs []*bytecode.Instr
	RuntimeInstrs []*bytecode.Instr
	DataSegment   []*bytecode.DataEntry
}

// Encode writes cm in the exact on-disk layout of spec §4.5.
func (cm *CompiledModule) Encode(w io.Writer) error {
	for _, ins := range cm.IncludeInstrs {
		if err := ins.Encode(w); err != nil {
			return errors.Wrap(err, "encode include instruction")
		}
	}
	if _, err := w.Write([]byte{sectionSentinel}); err != nil {
		return errors.Wrap(err, "write include/runtime section sentinel")
	}
	for _, ins := range cm.RuntimeInstrs {
		if err := ins.Encode(w); err != nil {
			return errors.Wrap(err, "encode runtime instruction")
		}
	}
	if err := bytecode.EncodeDataSegment(w, cm.DataSegment); err != nil {
		return errors.Wrap(err, "encode data segment")
	}
	return nil
}

// DecodeModule reads a module previously written by Encode.
func DecodeModule(r io.Reader) (*CompiledModule, error) {
	br := bufio.NewReader(r)

	var includeInstrs []*bytecode.Instr
	for {
		b, err := br.ReadByte()
		if err != nil {
			return nil, errors.Wrap(err, "read include section")
		}
		if b == sectionSentinel {
			break
		}
		if err := br.UnreadByte(); err != nil {
			return nil, err
		}
		ins, err := bytecode.DecodeInstr(br)
		if err != nil {
			return nil, errors.Wrap(err, "decode include instruction")
		}
		includeInstrs = append(includeInstrs, ins)
	}

	var runtimeInstrs []*bytecode.Instr
	for {
		ins, err := bytecode.DecodeInstr(br)
		if err != nil {
			return nil, errors.Wrap(err, "decode runtime instruction")
		}
		runtimeInstrs = append(runtimeInstrs, ins)
		if ins.Op == bytecode.OpEOF {
			break
		}
	}

	dataSeg, err := bytecode.DecodeDataSegment(br)
	if err != nil {
		return nil, errors.Wrap(err, "decode data segment")
	}
	return &CompiledModule{IncludeInstrs: includeInstrs, RuntimeInstrs: runtimeInstrs, DataSegment: dataSeg}, nil
}
