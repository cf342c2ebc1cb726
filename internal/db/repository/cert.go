package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/rebel7/certserver/internal/models"
)

// ErrDuplicateCode signals a certificate_code uniqueness violation on
// insert. Two concurrent issuances minting the same code must end with
// exactly one success; the UNIQUE constraint is the arbiter.
var ErrDuplicateCode = errors.New("certificate code already exists")

// CertRepository handles certificate record data access
type CertRepository struct {
	db    *sql.DB
	table string
}

// NewCertRepository creates a new certificate repository bound to the
// configured table name. The name is validated as a plain identifier by the
// config layer before it reaches query text.
func NewCertRepository(db *sql.DB, table string) *CertRepository {
	return &CertRepository{db: db, table: table}
}

// Insert creates a new certificate record keyed by certificate_code.
// Returns ErrDuplicateCode when the code is already present; existing
// records are never overwritten.
func (r *CertRepository) Insert(rec *models.StoredCertificate) error {
	companyJSON, err := marshalNullable(rec.Company)
	if err != nil {
		return fmt.Errorf("failed to encode company: %w", err)
	}
	auditJSON, err := marshalNullable(rec.Audit)
	if err != nil {
		return fmt.Errorf("failed to encode audit: %w", err)
	}

	var payload interface{}
	if len(rec.Payload) > 0 {
		payload = string(rec.Payload)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			certificate_code, status, level, issued_at, valid_to,
			company, issuer_name, audit_hash, audit, payload, pdf_path
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.table)

	_, err = r.db.Exec(query,
		rec.CertificateCode,
		rec.Status,
		rec.Level,
		rec.IssuedAt,
		nullableString(rec.ValidTo),
		companyJSON,
		nullableString(rec.IssuerName),
		nullableString(rec.AuditHash),
		auditJSON,
		payload,
		nullableString(rec.PDFPath),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to create certificate record: %w", err)
	}

	return nil
}

// GetByCode retrieves a certificate by its exact code. A missing record is
// reported as (nil, nil): a lookup miss is a legitimate negative result, not
// a store failure.
func (r *CertRepository) GetByCode(code string) (*models.StoredCertificate, error) {
	query := fmt.Sprintf(`
		SELECT certificate_code, status, level, issued_at,
		       valid_to, valid_until, company, organization_name,
		       issuer_name, audit_hash, audit, payload, pdf_path
		FROM %s
		WHERE certificate_code = ?
	`, r.table)

	rec := &models.StoredCertificate{}
	var (
		validTo, validUntil, companyJSON, orgName sql.NullString
		issuerName, auditHash, auditJSON          sql.NullString
		payload, pdfPath                          sql.NullString
	)

	err := r.db.QueryRow(query, code).Scan(
		&rec.CertificateCode,
		&rec.Status,
		&rec.Level,
		&rec.IssuedAt,
		&validTo,
		&validUntil,
		&companyJSON,
		&orgName,
		&issuerName,
		&auditHash,
		&auditJSON,
		&payload,
		&pdfPath,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}

	rec.ValidTo = stringPtr(validTo)
	rec.ValidUntil = stringPtr(validUntil)
	rec.OrganizationName = stringPtr(orgName)
	rec.IssuerName = stringPtr(issuerName)
	rec.AuditHash = stringPtr(auditHash)
	rec.PDFPath = stringPtr(pdfPath)

	if companyJSON.Valid && companyJSON.String != "" {
		company := &models.Company{}
		if err := json.Unmarshal([]byte(companyJSON.String), company); err != nil {
			return nil, fmt.Errorf("failed to decode company: %w", err)
		}
		rec.Company = company
	}
	if auditJSON.Valid && auditJSON.String != "" {
		audit := &models.StoredAudit{}
		if err := json.Unmarshal([]byte(auditJSON.String), audit); err != nil {
			return nil, fmt.Errorf("failed to decode audit: %w", err)
		}
		rec.Audit = audit
	}
	if payload.Valid && payload.String != "" {
		rec.Payload = json.RawMessage(payload.String)
	}

	return rec, nil
}

// marshalNullable encodes v as JSON, mapping a nil pointer to SQL NULL
func marshalNullable(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case *models.Company:
		if x == nil {
			return nil, nil
		}
	case *models.StoredAudit:
		if x == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
