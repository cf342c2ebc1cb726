package auth

import (
	"crypto/subtle"
	"strings"
)

const bearerScheme = "bearer"

// BearerToken extracts the credential from an Authorization header value.
// The scheme match is case-insensitive; anything that is not a bearer
// credential yields ok=false.
func BearerToken(header string) (token string, ok bool) {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearerScheme) {
		return "", false
	}
	scheme, rest := header[:len(bearerScheme)], header[len(bearerScheme):]
	if !strings.EqualFold(scheme, bearerScheme) || rest[0] != ' ' {
		return "", false
	}
	token = strings.TrimSpace(rest)
	if token == "" {
		return "", false
	}
	return token, true
}

// VerifyAdminToken compares a presented credential against the configured
// admin secret in constant time. An empty configured secret never matches.
func VerifyAdminToken(presented, configured string) bool {
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}
