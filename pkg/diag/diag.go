// Package diag defines the compile error kinds reported by the backend
// and a reporter that accumulates them across independent tables and nodes.
package diag

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Kind classifies a compile error.
type Kind int

const (
	UnsupportedConstruct Kind = iota
	InvalidSliceAnnotation
	ResourceExhausted
	MalformedTableShape
	StructuralError
)

var kindNames = map[Kind]string{
	UnsupportedConstruct:   "unsupported construct",
	InvalidSliceAnnotation: "invalid slice annotation",
	ResourceExhausted:      "resource exhausted",
	MalformedTableShape:    "malformed table",
	StructuralError:        "structural error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is a compile error with the offending construct attached.
type Error struct {
	Kind      Kind
	Construct string // printed form of the source construct, may be empty
	Msg       string
}

func (e *Error) Error() string {
	if e.Construct == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Construct, e.Msg)
}

// Errorf builds an *Error for the given construct.
func Errorf(kind Kind, construct fmt.Stringer, format string, args ...interface{}) *Error {
	c := ""
	if construct != nil {
		c = construct.String()
	}
	return &Error{Kind: kind, Construct: c, Msg: fmt.Sprintf(format, args...)}
}

// Is reports whether err, or any error it wraps or combines, has the given kind.
func Is(err error, kind Kind) bool {
	for _, e := range multierr.Errors(err) {
		var de *Error
		if errors.As(e, &de) && de.Kind == kind {
			return true
		}
	}
	return false
}

// Reporter accumulates errors. The zero value is ready to use.
type Reporter struct {
	err error
}

// Report records err. Nil errors are ignored.
func (r *Reporter) Report(err error) {
	r.err = multierr.Append(r.err, err)
}

// HasErrors reports whether anything was recorded.
func (r *Reporter) HasErrors() bool {
	return r.err != nil
}

// Count returns the number of recorded errors.
func (r *Reporter) Count() int {
	return len(multierr.Errors(r.err))
}

// Err returns the combined error, or nil.
func (r *Reporter) Err() error {
	return r.err
}

// Errors returns the recorded errors in report order.
func (r *Reporter) Errors() []error {
	return multierr.Errors(r.err)
}
