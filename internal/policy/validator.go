package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/rebel7/certserver/internal/models"
)

// FieldError is a field-addressable validation failure. The field path uses
// the request's JSON naming (e.g. "company.name").
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid or missing field: %s", e.Field)
}

// IssueInput is the raw, client-supplied issuance input
type IssueInput struct {
	CompanyName    string
	CompanyVAT     *string
	CompanyCountry *string
	Level          string
	ExpiresAt      *string
}

// IssueParams is a validated, normalized issuance input
type IssueParams struct {
	Company   models.Company
	Level     models.Level
	ExpiresAt *string
}

// Validator validates issuance requests against the certificate policy
type Validator struct{}

// NewValidator creates a new policy validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateIssueRequest checks an issuance input and returns its normalized
// form. Checks run in contract order, first failure wins:
//
//  1. company.name trimmed must be non-empty
//  2. level trimmed and lower-cased must be one of bronze, silver, gold, platinum
//  3. expires_at, when present, must be an RFC 3339 timestamp
func (v *Validator) ValidateIssueRequest(in IssueInput) (*IssueParams, error) {
	name := strings.TrimSpace(in.CompanyName)
	if name == "" {
		return nil, &FieldError{Field: "company.name"}
	}

	level, ok := models.ParseLevel(strings.ToLower(strings.TrimSpace(in.Level)))
	if !ok {
		return nil, &FieldError{Field: "level"}
	}

	expiresAt := in.ExpiresAt
	if expiresAt != nil {
		trimmed := strings.TrimSpace(*expiresAt)
		if trimmed == "" {
			expiresAt = nil
		} else {
			if _, err := time.Parse(time.RFC3339, trimmed); err != nil {
				return nil, &FieldError{Field: "expires_at"}
			}
			expiresAt = &trimmed
		}
	}

	return &IssueParams{
		Company: models.Company{
			Name:    name,
			VAT:     in.CompanyVAT,
			Country: in.CompanyCountry,
		},
		Level:     level,
		ExpiresAt: expiresAt,
	}, nil
}
