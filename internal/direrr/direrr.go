// Package direrr gives the error taxonomy in spec.md §7 a concrete Go shape:
// one typed error per category, each wrapping an underlying cause so callers
// can errors.As instead of string-matching, while still printing a useful
// message via Error().
//
// Grounded on joshuafuller-beacon/internal/transport's
// Operation/Err/Details error struct shape.
package direrr

import (
	"errors"
	"fmt"
)

// Category names one of the taxonomy entries from spec.md §7.
type Category string

const (
	Configuration      Category = "configuration"
	Transport          Category = "transport"
	Decode             Category = "decode"
	Semantic           Category = "semantic"
	Imposter           Category = "imposter"
	ResourceExhaustion Category = "resource_exhaustion"
)

// Error is the shared shape for every category. Operation names what was
// being attempted ("accept connection", "decode request", ...); Details adds
// context beyond the wrapped error; Err may be nil for purely semantic
// failures (e.g. unknown action) that have no underlying cause to wrap.
type Error struct {
	Err       error
	Category  Category
	Operation string
	Details   string
}

func (e *Error) Error() string {
	if e.Err == nil {
		if e.Details == "" {
			return fmt.Sprintf("%s: %s", e.Category, e.Operation)
		}
		return fmt.Sprintf("%s: %s: %s", e.Category, e.Operation, e.Details)
	}
	if e.Details == "" {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Operation, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s: %v", e.Category, e.Operation, e.Details, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a taxonomy error in the given category.
func New(cat Category, operation string, err error) *Error {
	return &Error{Category: cat, Operation: operation, Err: err}
}

// Withf is New with a formatted Details string attached.
func Withf(cat Category, operation string, err error, format string, args ...any) *Error {
	return &Error{Category: cat, Operation: operation, Err: err, Details: fmt.Sprintf(format, args...)}
}

// IsCategory reports whether err (or anything it wraps) is a taxonomy error
// in the given category.
func IsCategory(err error, cat Category) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Category == cat
}
