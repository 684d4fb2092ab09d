// Package record defines the core data model shared by every subsystem:
// the store, the query engine, the wire codec, and the signature scheme.
package record

import "sort"

// Record is a mapping from string keys to string values. Key order carries
// no meaning; two records with the same key/value pairs are equivalent
// regardless of the order they were built in.
type Record map[string]string

// Reserved keys carrying an optional record signature. A record is signed
// iff both are present and verify; it is an imposter iff exactly one or
// both are present and verification fails.
const (
	KeyPublicKey = "SIGNING:public-key"
	KeySignature = "SIGNING:non-sig-bytes"
)

// RecordStatus classifies a record by its signing state. It is computed by
// internal/signing, which knows how to verify a signature; the type lives
// here so both packages (and anything downstream, e.g. internal/dispatch)
// can refer to it without internal/record importing internal/signing.
type RecordStatus int

const (
	Unsigned RecordStatus = iota
	Signed
	Imposter
)

func (s RecordStatus) String() string {
	switch s {
	case Unsigned:
		return "unsigned"
	case Signed:
		return "signed"
	case Imposter:
		return "imposter"
	default:
		return "unknown"
	}
}

// Empty reports whether r has no keys. Empty records must never be stored.
func (r Record) Empty() bool {
	return len(r) == 0
}

// HasSigningFields reports whether either reserved signing key is present.
func (r Record) HasSigningFields() bool {
	_, hasKey := r[KeyPublicKey]
	_, hasSig := r[KeySignature]
	return hasKey || hasSig
}

// Clone returns a shallow copy, safe to mutate without affecting r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Canonical produces the deterministic byte form used as the signing input:
// the two reserved keys are filtered out, the remaining entries are sorted
// by key in lexicographic byte order, and key||value bytes are concatenated
// in that order. The result depends only on r's non-reserved contents, never
// on insertion order or serialization round-trips.
func Canonical(r Record) []byte {
	keys := make([]string, 0, len(r))
	for k := range r {
		if k == KeyPublicKey || k == KeySignature {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf []byte
	for _, k := range keys {
		buf = append(buf, k...)
		buf = append(buf, r[k]...)
	}
	return buf
}
