package certutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint calculates the audit fingerprint binding a certificate code to
// its issuance time: the lowercase hex SHA-256 digest of "<code>|<issuedAt>".
// Any verifier holding the two fields can recompute it without trusting the
// stored audit_hash column.
func Fingerprint(code, issuedAt string) string {
	hash := sha256.Sum256([]byte(code + "|" + issuedAt))
	return hex.EncodeToString(hash[:])
}

// FingerprintMatches checks a stored hash against a recomputed one
func FingerprintMatches(code, issuedAt, storedHash string) bool {
	return Fingerprint(code, issuedAt) == storedHash
}
