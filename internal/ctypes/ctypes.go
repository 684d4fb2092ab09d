// Package ctypes holds the built-in record templates the CLI accepts as
// a shorthand for "a ctype name followed by its positional values",
// lifted from original_source/src/ctypes.rs.
package ctypes

import (
	"fmt"

	"github.com/dreamware/dindex/internal/record"
)

// templates maps a ctype name to the ordered keys its positional CLI
// values fill in.
var templates = map[string][]string{
	"webpage": {"url", "title", "description"},
	"email":   {"name", "email"},
	"phone":   {"name", "phone"},
	"image":   {"image-url", "description"},
}

// Known reports whether name is a registered ctype.
func Known(name string) bool {
	_, ok := templates[name]
	return ok
}

// Expand builds a record.Record from a ctype name and its positional
// values, in the order the ctype's key list defines. The number of
// values must match the ctype's key count exactly.
func Expand(name string, values []string) (record.Record, error) {
	keys, ok := templates[name]
	if !ok {
		return nil, fmt.Errorf("ctypes: unknown ctype %q", name)
	}
	if len(values) != len(keys) {
		return nil, fmt.Errorf("ctypes: %q expects %d values, got %d", name, len(keys), len(values))
	}
	r := make(record.Record, len(keys))
	for i, k := range keys {
		r[k] = values[i]
	}
	return r, nil
}
