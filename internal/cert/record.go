package cert

import (
	"encoding/json"
	"time"

	"github.com/rebel7/certserver/internal/models"
	"github.com/rebel7/certserver/pkg/certutil"
)

// BuildRecord assembles a complete certificate row ready for insertion:
// fresh code, issued_at stamped from now (UTC), audit hash bound to both,
// status valid, pdf unset. Inputs are expected to be validated already
// (see internal/policy).
func BuildRecord(gen *CodeGenerator, issuerName string, company models.Company, level models.Level, expiresAt *string, payload json.RawMessage, now time.Time) (*models.StoredCertificate, error) {
	code, err := gen.Generate()
	if err != nil {
		return nil, err
	}

	if issuerName == "" {
		issuerName = DefaultIssuerName
	}
	issuedAt := now.UTC().Format(time.RFC3339)
	auditHash := certutil.Fingerprint(code, issuedAt)

	return &models.StoredCertificate{
		CertificateCode: code,
		Status:          string(models.StatusValid),
		Level:           string(level),
		IssuedAt:        issuedAt,
		ValidTo:         expiresAt,
		Company:         &company,
		IssuerName:      &issuerName,
		AuditHash:       &auditHash,
		Payload:         payload,
	}, nil
}
