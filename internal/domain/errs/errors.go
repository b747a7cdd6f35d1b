// Package errs defines the error kinds shared by the judging domain, the
// application service and the HTTP layer.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds. Callers match them with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("constraint conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrStore      = errors.New("store failure")
)

// Error carries the failing operation, its kind and an optional cause.
// Problems holds per-field detail for validation failures.
type Error struct {
	Op       string
	Kind     error
	Err      error
	Problems []string
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Problems) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Problems, "; "))
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New returns an error of the given kind with a message.
func New(op string, kind error, msg string) error {
	if msg == "" {
		return &Error{Op: op, Kind: kind}
	}
	return &Error{Op: op, Kind: kind, Err: errors.New(msg)}
}

// Newf is New with formatting.
func Newf(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches op and kind to err. A nil err stays nil.
func Wrap(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the sentinel kind of err, or nil if err carries none.
func KindOf(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrForbidden, ErrStore} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// ProblemsOf returns the field-level problems of a validation error.
func ProblemsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Problems
	}
	return nil
}

// Validation collects problems before failing once.
type Validation struct {
	op       string
	problems []string
}

// NewValidation starts an empty problem list for op.
func NewValidation(op string) *Validation {
	return &Validation{op: op}
}

// Addf records a problem.
func (v *Validation) Addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

// HasErrors reports whether any problem was recorded.
func (v *Validation) HasErrors() bool { return len(v.problems) > 0 }

// Err returns nil when no problem was recorded.
func (v *Validation) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return &Error{Op: v.op, Kind: ErrValidation, Problems: append([]string(nil), v.problems...)}
}
