package domain

import (
	"fmt"
	"strings"
)

// StructuralError reports input that cannot be transcoded at all: a malformed
// equation, an unreadable model or an archive without a master entry.
type StructuralError struct {
	Op  string
	Err error
}

func (e *StructuralError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// Structuralf builds a StructuralError from a format string.
func Structuralf(op, format string, args ...any) error {
	return &StructuralError{Op: op, Err: fmt.Errorf(format, args...)}
}

// ValidationError lists every invariant a document violates before export.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "document is invalid"
	}
	return "document is invalid: " + strings.Join(e.Problems, "; ")
}

// LookupError names an id that could not be resolved.
type LookupError struct {
	Kind string
	ID   string
}

func (e *LookupError) Error() string {
	if e.Kind == "measurement" {
		return fmt.Sprintf("No data found for measurement with ID '%s'", e.ID)
	}
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.ID)
}

// RepairableWarning describes a problem that was corrected in place. It is
// logged, never returned.
type RepairableWarning struct {
	Subject string
	Message string
}

func (w RepairableWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Subject, w.Message)
}
