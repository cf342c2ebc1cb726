package cert

import (
	"time"

	"github.com/rebel7/certserver/internal/models"
)

// DefaultIssuerName is used when a stored row carries no issuer identity
const DefaultIssuerName = "Rebel7 ESG"

// Normalize maps a raw stored row into the canonical certificate shape.
// The store has held two schemas over time, so several fields resolve by
// precedence, first non-absent wins:
//
//	expiry:     valid_to, then valid_until, then null
//	company:    structured company, then {name: organization_name}
//	audit hash: audit.hash, then flat audit_hash, then null
//	issuer:     issuer_name, then the configured default
//
// audit.verified_at is set to now (UTC) on every call; it is never stored.
func Normalize(rec *models.StoredCertificate, defaultIssuer string, now time.Time) *models.Certificate {
	if defaultIssuer == "" {
		defaultIssuer = DefaultIssuerName
	}

	out := &models.Certificate{
		CertificateCode: rec.CertificateCode,
		Status:          rec.Status,
		Level:           rec.Level,
		IssuedAt:        rec.IssuedAt,
		ValidTo:         resolveExpiry(rec),
		Company:         resolveCompany(rec),
		Issuer:          models.Issuer{Name: resolveIssuer(rec, defaultIssuer)},
		Audit: models.Audit{
			Hash:       resolveAuditHash(rec),
			VerifiedAt: now.UTC().Format(time.RFC3339),
		},
		Payload: rec.Payload,
	}
	return out
}

func resolveExpiry(rec *models.StoredCertificate) *string {
	if rec.ValidTo != nil {
		return rec.ValidTo
	}
	return rec.ValidUntil
}

func resolveCompany(rec *models.StoredCertificate) models.Company {
	if rec.Company != nil {
		return *rec.Company
	}
	synthesized := models.Company{}
	if rec.OrganizationName != nil {
		synthesized.Name = *rec.OrganizationName
	}
	return synthesized
}

func resolveAuditHash(rec *models.StoredCertificate) *string {
	if rec.Audit != nil && rec.Audit.Hash != nil {
		return rec.Audit.Hash
	}
	return rec.AuditHash
}

func resolveIssuer(rec *models.StoredCertificate, fallback string) string {
	if rec.IssuerName != nil && *rec.IssuerName != "" {
		return *rec.IssuerName
	}
	return fallback
}
