package models

import "encoding/json"

// Level is the compliance level assigned at issuance
type Level string

// Allowed compliance levels
const (
	LevelBronze   Level = "bronze"
	LevelSilver   Level = "silver"
	LevelGold     Level = "gold"
	LevelPlatinum Level = "platinum"
)

// ParseLevel reports whether s is one of the four allowed levels. Client
// input is trimmed and lower-cased by the caller before it gets here.
func ParseLevel(s string) (Level, bool) {
	switch Level(s) {
	case LevelBronze, LevelSilver, LevelGold, LevelPlatinum:
		return Level(s), true
	}
	return "", false
}

// Status is the certificate lifecycle status. Only "valid" is ever written
// by this server; other values may appear in rows written by external tools
// and are passed through unchanged.
type Status string

// StatusValid is the status assigned at issuance
const StatusValid Status = "valid"

// Company identifies the certified organization
type Company struct {
	Name    string  `json:"name"`
	VAT     *string `json:"vat"`
	Country *string `json:"country"`
}

// Issuer identifies who issued the certificate
type Issuer struct {
	Name string `json:"name"`
}

// Audit carries the integrity fingerprint of a certificate together with
// the moment it was last checked. VerifiedAt is computed per request and
// never stored.
type Audit struct {
	Hash       *string `json:"hash"`
	VerifiedAt string  `json:"verified_at"`
}

// PDF is a placeholder for a future rendering backend. All fields are null
// at issuance time.
type PDF struct {
	Path      *string `json:"path"`
	URL       *string `json:"url"`
	ExpiresIn *int64  `json:"expires_in"`
}

// StoredCertificate is the raw row shape as read from the store. The
// certificates table has lived through two schemas: v1 kept a flat
// organization_name, valid_until and audit_hash; v2 added the structured
// company, valid_to and nested audit columns without rewriting old rows.
// Readers must therefore tolerate both shapes; the normalizer in
// internal/cert resolves the precedence.
type StoredCertificate struct {
	CertificateCode string
	Status          string
	Level           string
	IssuedAt        string // RFC 3339, UTC

	ValidTo    *string
	ValidUntil *string // legacy v1 column

	Company          *Company
	OrganizationName *string // legacy v1 column

	IssuerName *string

	AuditHash *string      // flat v1 column, still written at insert
	Audit     *StoredAudit // nested shape, external writers only

	Payload json.RawMessage
	PDFPath *string
}

// StoredAudit is the nested audit shape some writers use
type StoredAudit struct {
	Hash *string `json:"hash"`
}

// Certificate is the single canonical response shape produced by the
// normalizer for both issuance and verification.
type Certificate struct {
	CertificateCode string          `json:"certificate_code"`
	Status          string          `json:"status"`
	Level           string          `json:"level"`
	IssuedAt        string          `json:"issued_at"`
	ValidTo         *string         `json:"valid_to"`
	Company         Company         `json:"company"`
	Issuer          Issuer          `json:"issuer"`
	Audit           Audit           `json:"audit"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	PDF             *PDF            `json:"pdf,omitempty"`
}
