package cert

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFormat(t *testing.T) {
	gen := NewCodeGenerator("", "")

	code, err := gen.Generate()
	require.NoError(t, err)

	assert.Regexp(t, `^R7-ESG-\d{4}-[0-9A-F]{6}$`, code)
	assert.True(t, CodePattern.MatchString(code))

	year := fmt.Sprintf("%d", time.Now().UTC().Year())
	assert.Equal(t, year, strings.Split(code, "-")[2])
}

func TestGenerateCustomPrefixScope(t *testing.T) {
	gen := NewCodeGenerator("ACME", "CO2")

	code, err := gen.Generate()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(code, "ACME-CO2-"))
	assert.True(t, CodePattern.MatchString(code))
}

func TestGenerateUniqueness(t *testing.T) {
	gen := NewCodeGenerator("", "")

	// Sized so the birthday bound over 24 bits keeps the collision
	// probability negligible for a test run.
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := gen.Generate()
		require.NoError(t, err)
		assert.False(t, seen[code], "generated code %q twice", code)
		seen[code] = true
	}
}
