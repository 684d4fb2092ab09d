// Package query compiles a record of per-key patterns into a matcher
// against stored records. Grounded on original_source/src/record.rs's
// matches/create_regex_map, which intersect query keys with record keys
// and skip any key whose pattern fails to compile rather than rejecting
// the query.
package query

import (
	"regexp"

	"github.com/dreamware/dindex/internal/record"
)

// Compiled is a record.Record reduced to its successfully-compiled
// per-key regexes. Keys whose value failed to compile as a regex are
// silently dropped.
type Compiled map[string]*regexp.Regexp

// Compile builds a Compiled matcher from a query record. A key whose
// value is not a valid regex is dropped rather than failing the whole
// query — permissive compilation per spec.md §4.1.
func Compile(q record.Record) Compiled {
	c := make(Compiled, len(q))
	for k, pattern := range q {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		c[k] = re
	}
	return c
}

// Empty reports whether c has no usable patterns left after compilation.
func (c Compiled) Empty() bool {
	return len(c) == 0
}

// Match reports whether r satisfies c under keys-intersection semantics:
// a record with no keys in common with the query never matches, and a
// record that shares keys with the query matches only if every shared
// key's value is matched by that key's compiled pattern. Keys present in
// the query but absent from the record, or vice versa, are ignored.
func Match(c Compiled, r record.Record) bool {
	matchedAny := false
	for k, re := range c {
		v, ok := r[k]
		if !ok {
			continue
		}
		if !re.MatchString(v) {
			return false
		}
		matchedAny = true
	}
	return matchedAny
}
