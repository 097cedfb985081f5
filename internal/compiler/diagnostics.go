package compiler

import "fmt"

// Diagnostic is one non-fatal problem recorded while building a
// module. The builder keeps accumulating these instead of stopping at
// the first one, so a single pack invocation can report every
// ERR-PARSE/ERR-UNRESOLVED in the file (spec §7: "attempts to continue
// past non-fatal parse errors").
type Diagnostic struct {
	Kind    string // "ERR-PARSE", "ERR-UNRESOLVED" or "ERR-IO"
	Line    int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: line %d: %s", d.Kind, d.Line, d.Message)
}
