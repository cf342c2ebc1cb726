package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rebel7/certserver/internal/cert"
	"github.com/rebel7/certserver/internal/config"
	"github.com/rebel7/certserver/internal/db/repository"
	"github.com/rebel7/certserver/internal/models"
	"github.com/rebel7/certserver/internal/policy"
)

// CertStore is the record store contract the handlers depend on. The
// sqlite repository satisfies it in production; an in-memory store stands
// in for tests. Insert must reject duplicate keys; GetByCode returns
// (nil, nil) on a miss.
type CertStore interface {
	Insert(rec *models.StoredCertificate) error
	GetByCode(code string) (*models.StoredCertificate, error)
}

// AuditStore records issuance attempts and auth failures
type AuditStore interface {
	Create(log *models.AuditLog) error
}

// CertHandler handles certificate issuance and verification
type CertHandler struct {
	config    *config.Config
	generator *cert.CodeGenerator
	validator *policy.Validator
	certs     CertStore
	audit     AuditStore
	log       *logrus.Logger
}

// NewCertHandler creates a new certificate handler
func NewCertHandler(cfg *config.Config, certs CertStore, audit AuditStore, log *logrus.Logger) *CertHandler {
	return &CertHandler{
		config:    cfg,
		generator: cert.NewCodeGenerator(cfg.Certificate.CodePrefix, cfg.Certificate.CodeScope),
		validator: policy.NewValidator(),
		certs:     certs,
		audit:     audit,
		log:       log,
	}
}

// IssueRequest represents a certificate issue request
type IssueRequest struct {
	Company struct {
		Name    string  `json:"name"`
		VAT     *string `json:"vat"`
		Country *string `json:"country"`
	} `json:"company"`
	Level     string          `json:"level"`
	ExpiresAt *string         `json:"expires_at"`
	Payload   json.RawMessage `json:"payload"`
}

// IssueResponse represents a successful issuance
type IssueResponse struct {
	OK          bool                `json:"ok"`
	Certificate *models.Certificate `json:"certificate"`
}

// Issue handles certificate issuance.
// POST /api/certificates/generate (admin bearer credential required)
func (h *CertHandler) Issue(c *gin.Context) {
	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondFieldError(c, "body")
		return
	}

	params, err := h.validator.ValidateIssueRequest(policy.IssueInput{
		CompanyName:    req.Company.Name,
		CompanyVAT:     req.Company.VAT,
		CompanyCountry: req.Company.Country,
		Level:          req.Level,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		var fieldErr *policy.FieldError
		if errors.As(err, &fieldErr) {
			h.logIssueFailure(c, fieldErr.Error())
			RespondFieldError(c, fieldErr.Field)
			return
		}
		RespondError(c, http.StatusInternalServerError, CodeInternalError, "Internal error")
		return
	}

	// Deployment check comes after input validation: a caller with a bad
	// request learns about their request, not about the server's wiring.
	if h.certs == nil {
		RespondEnvMissing(c, map[string]bool{config.EnvDBPath: true})
		return
	}

	record, err := cert.BuildRecord(
		h.generator,
		h.config.Certificate.IssuerName,
		params.Company,
		params.Level,
		params.ExpiresAt,
		req.Payload,
		time.Now(),
	)
	if err != nil {
		h.log.WithError(err).Error("failed to build certificate record")
		RespondError(c, http.StatusInternalServerError, CodeInternalError, "Internal error")
		return
	}

	if err := h.certs.Insert(record); err != nil {
		h.log.WithError(err).WithField("certificate_code", record.CertificateCode).
			Error("failed to store certificate")
		h.logIssueFailure(c, err.Error())
		detail := err.Error()
		if errors.Is(err, repository.ErrDuplicateCode) {
			detail = "certificate code collision"
		}
		RespondErrorWithDetails(c, http.StatusInternalServerError, CodeInternalError,
			"Internal error", gin.H{"store": detail})
		return
	}

	h.logIssueSuccess(c, record)

	normalized := cert.Normalize(record, h.config.Certificate.IssuerName, time.Now())
	// PDF rendering is a future collaborator; the placeholder keeps the
	// response schema stable.
	normalized.PDF = &models.PDF{}

	c.JSON(http.StatusCreated, IssueResponse{OK: true, Certificate: normalized})
}

// VerifyResponse represents a successful verification
type VerifyResponse struct {
	OK          bool                `json:"ok"`
	Certificate *models.Certificate `json:"certificate"`
}

// Verify handles public certificate verification.
// GET /api/certificates/verify?certificate_code=...
// Open to any caller; verification is a public trust-check primitive.
func (h *CertHandler) Verify(c *gin.Context) {
	code := strings.TrimSpace(c.Query("certificate_code"))
	if code == "" {
		RespondVerifyError(c, http.StatusBadRequest, CodeBadRequest, "Missing certificate_code")
		return
	}

	if h.certs == nil {
		RespondVerifyEnvMissing(c, map[string]bool{config.EnvDBPath: true})
		return
	}

	record, err := h.certs.GetByCode(code)
	if err != nil {
		h.log.WithError(err).WithField("certificate_code", code).Error("store lookup failed")
		RespondVerifyErrorWithDetails(c, http.StatusInternalServerError, CodeDBError,
			"Database error", err.Error())
		return
	}
	if record == nil {
		RespondVerifyError(c, http.StatusNotFound, CodeCertNotFound, "Certificate not found")
		return
	}

	normalized := cert.Normalize(record, h.config.Certificate.IssuerName, time.Now())

	c.JSON(http.StatusOK, VerifyResponse{OK: true, Certificate: normalized})
}

// Helper methods for audit logging. Verification is deliberately not
// audited: it must stay side-effect-free.

func (h *CertHandler) logIssueFailure(c *gin.Context, reason string) {
	if h.audit == nil {
		return
	}
	if err := h.audit.Create(&models.AuditLog{
		Action:    models.ActionCertIssue,
		ClientIP:  GetClientIP(c),
		UserAgent: c.GetHeader("User-Agent"),
		Success:   false,
		ErrorMsg:  reason,
	}); err != nil {
		h.log.WithError(err).Warn("failed to write audit entry")
	}
}

func (h *CertHandler) logIssueSuccess(c *gin.Context, record *models.StoredCertificate) {
	if h.audit == nil {
		return
	}
	details, _ := json.Marshal(gin.H{
		"certificate_code": record.CertificateCode,
		"level":            record.Level,
		"company":          record.Company.Name,
	})
	if err := h.audit.Create(&models.AuditLog{
		Action:    models.ActionCertIssue,
		ClientIP:  GetClientIP(c),
		UserAgent: c.GetHeader("User-Agent"),
		Success:   true,
		Details:   string(details),
	}); err != nil {
		h.log.WithError(err).Warn("failed to write audit entry")
	}
}
