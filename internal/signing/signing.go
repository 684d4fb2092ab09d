// Package signing implements the optional per-record signature scheme:
// RSA-PKCS#1-v1.5 over the SHA-256 digest of a record's canonical byte
// form. Grounded on original_source/src/signing.rs's use of rsa +
// sha256 over the same canonical encoding, re-expressed with Go's
// crypto/rsa and crypto/x509 since no pack example carries a dedicated
// signing library for this construction (see DESIGN.md).
package signing

import (
	"bufio"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/dreamware/dindex/internal/record"
)

// keyBits is the RSA modulus size generated identities use.
const keyBits = 2048

// Sign returns a copy of r with the two reserved signing keys set: the
// base64-encoded PKCS#1 v1.5 signature over SHA-256(Canonical(r)), and
// the base64-encoded PEM of priv's public key (see EncodePublicKey).
func Sign(priv *rsa.PrivateKey, r record.Record) (record.Record, error) {
	digest := sha256.Sum256(record.Canonical(r))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("signing: sign: %w", err)
	}
	pubB64, err := EncodePublicKey(&priv.PublicKey)
	if err != nil {
		return nil, err
	}

	out := r.Clone()
	out[record.KeySignature] = base64.StdEncoding.EncodeToString(sig)
	out[record.KeyPublicKey] = pubB64
	return out, nil
}

// Verify reports whether r carries a valid signature over its own
// canonical content. A record with neither signing key present is
// considered unsigned, not verified: callers distinguish the two via
// record.HasSigningFields.
func Verify(r record.Record) (bool, error) {
	sigB64, hasSig := r[record.KeySignature]
	pubB64, hasKey := r[record.KeyPublicKey]
	if !hasSig || !hasKey {
		return false, nil
	}

	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false, fmt.Errorf("signing: decode signature: %w", err)
	}
	pub, err := parsePublicKey(pubB64)
	if err != nil {
		return false, fmt.Errorf("signing: decode public key: %w", err)
	}

	digest := sha256.Sum256(record.Canonical(r))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return false, nil
	}
	return true, nil
}

// IsImposter reports whether r claims to be signed (either reserved key
// present) but fails verification — spec.md §3 invariant ii.
func IsImposter(r record.Record) bool {
	if !r.HasSigningFields() {
		return false
	}
	ok, err := Verify(r)
	return err != nil || !ok
}

// Status classifies r as Unsigned, Signed, or Imposter.
func Status(r record.Record) record.RecordStatus {
	if !r.HasSigningFields() {
		return record.Unsigned
	}
	ok, err := Verify(r)
	if err != nil || !ok {
		return record.Imposter
	}
	return record.Signed
}

// parsePublicKey accepts PEM, PKIX DER, or PKCS#1 DER, all base64-wrapped
// at the wire level, matching the range of public key encodings the
// original CLI's gen_identity/print_identity could have produced.
func parsePublicKey(b64 string) (*rsa.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}

	der := raw
	if block, _ := pem.Decode(raw); block != nil {
		der = block.Bytes
	}

	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return rsaKey, nil
		}
		return nil, fmt.Errorf("signing: public key is not RSA")
	}
	if key, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("signing: unrecognized public key encoding")
}

// Authority holds the set of trusted public keys privileged operations
// are checked against, loaded from a file of base64-encoded keys, one
// per line, with blank lines and #-comments ignored (spec.md §4.5).
type Authority struct {
	trusted map[string]struct{}
}

// LoadAuthority reads path and builds an Authority from it. A missing
// file yields an empty, always-unauthorized Authority rather than an
// error, since an absent trusted-keys file is a valid "nobody is
// trusted yet" configuration.
func LoadAuthority(path string) (*Authority, error) {
	a := &Authority{trusted: make(map[string]struct{})}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("signing: open trusted keys: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		a.trusted[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("signing: read trusted keys: %w", err)
	}
	return a, nil
}

// IsAuthorized reports whether r is both validly signed and signed by a
// key in the trusted set.
func (a *Authority) IsAuthorized(r record.Record) bool {
	pubB64, ok := r[record.KeyPublicKey]
	if !ok {
		return false
	}
	if _, trusted := a.trusted[pubB64]; !trusted {
		return false
	}
	ok, err := Verify(r)
	return err == nil && ok
}

// GenerateIdentity creates a fresh RSA keypair for the gen_identity CLI
// action.
func GenerateIdentity() (*rsa.PrivateKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("signing: generate identity: %w", err)
	}
	return priv, nil
}

// EncodePublicKey renders pub as the base64 encoding of its PEM ("PUBLIC
// KEY" block holding the PKIX DER), the string the wire format and
// trusted-keys file both expect.
func EncodePublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("signing: marshal public key: %w", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return base64.StdEncoding.EncodeToString(pemBytes), nil
}
