package bytecode

import "io"

// DataEntrySentinel terminates a data segment (spec §4.4/§4.5).
const DataEntrySentinel = 0xFF

// IntersectionPair is one (include_id, imported_var_id) pair recorded
// against a locally-owned variable that also appears, by name, in an
// include's data segment (spec §4.4 stage 1).
type IntersectionPair struct {
	IncludeID    uint32
	ImportedVarID uint32
}

// DataEntry is one symbol-table record in a module's data segment:
// a locally defined procedure/variable, or a name imported from an
// include.
type DataEntry struct {
	IsProcedure     bool
	MeetsInIncludes bool
	Imported        bool

	LocalID uint32
	Name    string

	Intersections []IntersectionPair // only if MeetsInIncludes
	OwningInclude uint32             // only if Imported
	ImportedID    uint32             // only if Imported: the id inside OwningInclude's own data segment
}

func (e *DataEntry) preamble() byte {
	var b byte
	if e.IsProcedure {
		b |= 0x1
	}
	if e.MeetsInIncludes {
		b |= 0x2
	}
	if e.Imported {
		b |= 0x4
	}
	return b
}

// Encode writes one data segment entry.
func (e *DataEntry) Encode(w io.Writer) error {
	if err := writeByte(w, e.preamble()); err != nil {
		return err
	}
	if err := writeU32(w, e.LocalID); err != nil {
		return err
	}
	if err := writeLongString(w, e.Name); err != nil {
		return err
	}
	if e.MeetsInIncludes {
		if err := writeU32(w, uint32(len(e.Intersections))); err != nil {
			return err
		}
		for _, p := range e.Intersections {
			if err := writeU32(w, p.IncludeID); err != nil {
				return err
			}
			if err := writeU32(w, p.ImportedVarID); err != nil {
				return err
			}
		}
	}
	if e.Imported {
		if err := writeU32(w, e.OwningInclude); err != nil {
			return err
		}
		if err := writeU32(w, e.ImportedID); err != nil {
			return err
		}
	}
	return nil
}

// DecodeDataSegment reads entries until the 0xFF sentinel.
func DecodeDataSegment(r io.Reader) ([]*DataEntry, error) {
	var entries []*DataEntry
	for {
		b, err := readByte(r)
		if err != nil {
			return nil, err
		}
		if b == DataEntrySentinel {
			return entries, nil
		}
		e := &DataEntry{
			IsProcedure:     b&0x1 != 0,
			MeetsInIncludes: b&0x2 != 0,
			Imported:        b&0x4 != 0,
		}
		if e.LocalID, err = readU32(r); err != nil {
			return nil, err
		}
		if e.Name, err = readLongString(r); err != nil {
			return nil, err
		}
		if e.MeetsInIncludes {
			n, err := readU32(r)
			if err != nil {
				return nil, err
			}
			for i := uint32(0); i < n; i++ {
				inc, err := readU32(r)
				if err != nil {
					return nil, err
				}
				imp, err := readU32(r)
				if err != nil {
					return nil, err
				}
				e.Intersections = append(e.Intersections, IntersectionPair{IncludeID: inc, ImportedVarID: imp})
			}
		}
		if e.Imported {
			if e.OwningInclude, err = readU32(r); err != nil {
				return nil, err
			}
			if e.ImportedID, err = readU32(r); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
}

// EncodeDataSegment writes all entries followed by the sentinel.
func EncodeDataSegment(w io.Writer, entries []*DataEntry) error {
	for _, e := range entries {
		if err := e.Encode(w); err != nil {
			return err
		}
	}
	return writeByte(w, DataEntrySentinel)
}
