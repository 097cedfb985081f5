package bytecode

import (
	"bytes"
	"testing"
)

func TestDataSegmentRoundTripPlain(t *testing.T) {
	entries := []*DataEntry{
		{LocalID: 0, Name: "digit"},
		{IsProcedure: true, LocalID: 1, Name: "factorial"},
	}
	var buf bytes.Buffer
	if err := EncodeDataSegment(&buf, entries); err != nil {
		t.Fatalf("EncodeDataSegment: %v", err)
	}
	got, err := DecodeDataSegment(&buf)
	if err != nil {
		t.Fatalf("DecodeDataSegment: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Name != "digit" || got[0].IsProcedure {
		t.Errorf("entry 0: %+v", got[0])
	}
	if got[1].Name != "factorial" || !got[1].IsProcedure {
		t.Errorf("entry 1: %+v", got[1])
	}
}

func TestDataSegmentRoundTripIntersections(t *testing.T) {
	e := &DataEntry{
		LocalID:         3,
		Name:            "k",
		MeetsInIncludes: true,
		Intersections: []IntersectionPair{
			{IncludeID: 0, ImportedVarID: 2},
			{IncludeID: 1, ImportedVarID: 5},
		},
	}
	var buf bytes.Buffer
	if err := EncodeDataSegment(&buf, []*DataEntry{e}); err != nil {
		t.Fatalf("EncodeDataSegment: %v", err)
	}
	got, err := DecodeDataSegment(&buf)
	if err != nil {
		t.Fatalf("DecodeDataSegment: %v", err)
	}
	if len(got) != 1 || len(got[0].Intersections) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Intersections[1].IncludeID != 1 || got[0].Intersections[1].ImportedVarID != 5 {
		t.Errorf("got %+v", got[0].Intersections[1])
	}
}

func TestDataSegmentRoundTripImported(t *testing.T) {
	e := &DataEntry{
		LocalID:       4,
		Name:          "g",
		Imported:      true,
		OwningInclude: 0,
		ImportedID:    1,
	}
	var buf bytes.Buffer
	if err := EncodeDataSegment(&buf, []*DataEntry{e}); err != nil {
		t.Fatalf("EncodeDataSegment: %v", err)
	}
	got, err := DecodeDataSegment(&buf)
	if err != nil {
		t.Fatalf("DecodeDataSegment: %v", err)
	}
	if !got[0].Imported || got[0].OwningInclude != 0 || got[0].ImportedID != 1 {
		t.Errorf("got %+v", got[0])
	}
}

func TestDataSegmentEmptyIsJustSentinel(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeDataSegment(&buf, nil); err != nil {
		t.Fatalf("EncodeDataSegment: %v", err)
	}
	if buf.Len() != 1 || buf.Bytes()[0] != DataEntrySentinel {
		t.Errorf("got %v, want a single 0xFF byte", buf.Bytes())
	}
	got, err := DecodeDataSegment(&buf)
	if err != nil {
		t.Fatalf("DecodeDataSegment: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d entries, want 0", len(got))
	}
}
