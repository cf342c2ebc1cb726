package handlers

import (
	"bytes"
	"image/png"
	"net/http"
	"net/url"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/gin-gonic/gin"

	"github.com/rebel7/certserver/internal/config"
)

const qrImageSize = 256

// QRCode renders a QR image pointing at the public verification URL for an
// existing certificate, suitable for printing on issued documents.
// GET /v1/certs/qr?certificate_code=...
func (h *CertHandler) QRCode(c *gin.Context) {
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

	target := h.verifyURL(c, record.CertificateCode)

	qrCode, err := qr.Encode(target, qr.M, qr.Auto)
	if err != nil {
		h.log.WithError(err).Error("failed to encode QR code")
		RespondVerifyError(c, http.StatusInternalServerError, CodeInternalError, "Internal error")
		return
	}
	qrCode, err = barcode.Scale(qrCode, qrImageSize, qrImageSize)
	if err != nil {
		h.log.WithError(err).Error("failed to scale QR code")
		RespondVerifyError(c, http.StatusInternalServerError, CodeInternalError, "Internal error")
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qrCode); err != nil {
		h.log.WithError(err).Error("failed to render QR PNG")
		RespondVerifyError(c, http.StatusInternalServerError, CodeInternalError, "Internal error")
		return
	}

	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// verifyURL builds the public verification URL for a code, preferring the
// configured base URL and falling back to the request host.
func (h *CertHandler) verifyURL(c *gin.Context, code string) string {
	base := h.config.Server.VerifyBaseURL
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host + "/api/certificates/verify"
	}
	return base + "?certificate_code=" + url.QueryEscape(code)
}
