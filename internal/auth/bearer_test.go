package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"standard scheme", "Bearer secret-token", "secret-token", true},
		{"lowercase scheme", "bearer secret-token", "secret-token", true},
		{"shouting scheme", "BEARER secret-token", "secret-token", true},
		{"surrounding whitespace", "  Bearer   secret-token  ", "secret-token", true},
		{"empty header", "", "", false},
		{"scheme only", "Bearer", "", false},
		{"scheme with empty token", "Bearer   ", "", false},
		{"wrong scheme", "Basic secret-token", "", false},
		{"no scheme", "secret-token", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BearerToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyAdminToken(t *testing.T) {
	assert.True(t, VerifyAdminToken("s3cret", "s3cret"))
	assert.False(t, VerifyAdminToken("s3cret", "other"))
	assert.False(t, VerifyAdminToken("", "s3cret"))

	// An unconfigured secret must never match, not even an empty
	// presented credential.
	assert.False(t, VerifyAdminToken("", ""))
	assert.False(t, VerifyAdminToken("anything", ""))
}
