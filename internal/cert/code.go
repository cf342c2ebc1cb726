package cert

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Default code components, matching the historical issuer
const (
	DefaultCodePrefix = "R7"
	DefaultCodeScope  = "ESG"
)

const randomSuffixBytes = 3 // 6 hex chars, 24 bits of entropy

// CodePattern matches well-formed certificate codes
var CodePattern = regexp.MustCompile(`^[A-Z0-9]+-[A-Z0-9]+-\d{4}-[0-9A-F]{6}$`)

// CodeGenerator mints human-readable certificate codes of the form
// <PREFIX>-<SCOPE>-<YEAR>-<RANDOM6>. The generator does not check for
// collisions; uniqueness is enforced by the store's UNIQUE constraint on
// certificate_code.
type CodeGenerator struct {
	prefix string
	scope  string
}

// NewCodeGenerator creates a generator with the given prefix and scope,
// falling back to the defaults when either is empty.
func NewCodeGenerator(prefix, scope string) *CodeGenerator {
	if prefix == "" {
		prefix = DefaultCodePrefix
	}
	if scope == "" {
		scope = DefaultCodeScope
	}
	return &CodeGenerator{prefix: prefix, scope: scope}
}

// Generate mints a new certificate code. The year component is the current
// UTC year; the suffix is 6 uppercase hex characters from a cryptographically
// secure source.
func (g *CodeGenerator) Generate() (string, error) {
	buf := make([]byte, randomSuffixBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random suffix: %w", err)
	}

	year := time.Now().UTC().Year()
	suffix := strings.ToUpper(fmt.Sprintf("%x", buf))

	return fmt.Sprintf("%s-%s-%d-%s", g.prefix, g.scope, year, suffix), nil
}
