// Package errors defines the error kinds of spec §7 (the six named
// kinds plus ERR-RUNTIME-UNDEF for a runtime use of id 0) and wraps the
// underlying cause with github.com/pkg/errors so a %+v format prints
// a stack trace back to the failing instruction or source line.
package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind is one of the six error categories spec §7 names, or
// RuntimeUndef.
type Kind string

const (
	ParseError      Kind = "ERR-PARSE"
	UnresolvedError Kind = "ERR-UNRESOLVED"
	TypeError       Kind = "ERR-TYPE"
	ArithError      Kind = "ERR-ARITH"
	IOError         Kind = "ERR-IO"
	StackError      Kind = "ERR-STACK"
	RuntimeUndef    Kind = "ERR-RUNTIME-UNDEF"
)

// TvmError carries a Kind and an optional source location alongside
// the wrapped cause.
type TvmError struct {
	Kind    Kind
	Line    int
	File    string
	cause   error
}

func (e *TvmError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("%s: %s:%d: %v", e.Kind, e.File, e.Line, e.cause)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %v", e.Kind, e.Line, e.cause)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.cause)
}

func (e *TvmError) Unwrap() error { return e.cause }

// Format supports "%+v" to print the pkg/errors stack trace of the
// wrapped cause.
func (e *TvmError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s: %+v", e.Kind, e.cause)
		return
	}
	fmt.Fprint(s, e.Error())
}

// New constructs a TvmError of the given kind wrapping msg.
func New(kind Kind, msg string) error {
	return &TvmError{Kind: kind, cause: pkgerrors.New(msg)}
}

// Newf constructs a TvmError of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &TvmError{Kind: kind, cause: pkgerrors.Errorf(format, args...)}
}

// Wrap wraps cause as a TvmError of the given kind, unless cause is
// already a TvmError (in which case it passes through unchanged so
// kinds don't get relabeled as they propagate).
func Wrap(kind Kind, cause error, msg string) error {
	if cause == nil {
		return nil
	}
	if te, ok := cause.(*TvmError); ok {
		return te
	}
	return &TvmError{Kind: kind, cause: pkgerrors.Wrap(cause, msg)}
}

// AtLine attaches a source line number to err if it is a TvmError.
func AtLine(err error, line int) error {
	if te, ok := err.(*TvmError); ok {
		te.Line = line
	}
	return err
}

// AtFile attaches a file path to err if it is a TvmError.
func AtFile(err error, file string) error {
	if te, ok := err.(*TvmError); ok {
		te.File = file
	}
	return err
}

// KindOf reports the Kind of err, or "" if err is not a TvmError.
func KindOf(err error) Kind {
	if te, ok := err.(*TvmError); ok {
		return te.Kind
	}
	return ""
}
