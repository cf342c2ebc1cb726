package handlers

import "github.com/gin-gonic/gin"

// Error code constants shared by both endpoints. The strings are part of
// the frozen v1 API contract and must not change without versioning.
const (
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeBadRequest       = "BAD_REQUEST"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeDBError          = "DB_ERROR"
	CodeCertNotFound     = "CERT_NOT_FOUND"
	CodeEnvMissing       = "ENV_MISSING"
	CodeNotFound         = "NOT_FOUND"
)

// ErrorResponse is the issuance-path error envelope
type ErrorResponse struct {
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details interface{}     `json:"details,omitempty"`
	Missing map[string]bool `json:"missing,omitempty"`
}

// VerifyErrorResponse is the public verification-path error envelope; it
// additionally carries ok:false so browser clients can branch on one field.
type VerifyErrorResponse struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details interface{}     `json:"details,omitempty"`
	Missing map[string]bool `json:"missing,omitempty"`
}

// RespondError sends an issuance-path error response
func RespondError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: message,
		Code:  errorCode,
	})
}

// RespondErrorWithDetails sends an issuance-path error response with details
func RespondErrorWithDetails(c *gin.Context, statusCode int, errorCode string, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		Error:   message,
		Code:    errorCode,
		Details: details,
	})
}

// RespondFieldError sends a field-addressable BAD_REQUEST
func RespondFieldError(c *gin.Context, field string) {
	RespondErrorWithDetails(c, 400, CodeBadRequest, "Bad request", gin.H{"field": field})
}

// RespondEnvMissing reports absent deployment configuration, enumerating
// the missing keys by name without echoing any values.
func RespondEnvMissing(c *gin.Context, missing map[string]bool) {
	c.JSON(500, ErrorResponse{
		Error:   "Server misconfigured",
		Code:    CodeEnvMissing,
		Missing: missing,
	})
}

// RespondVerifyError sends a verification-path error response
func RespondVerifyError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.JSON(statusCode, VerifyErrorResponse{
		Error: message,
		Code:  errorCode,
	})
}

// RespondVerifyErrorWithDetails sends a verification-path error response
// with details
func RespondVerifyErrorWithDetails(c *gin.Context, statusCode int, errorCode string, message string, details interface{}) {
	c.JSON(statusCode, VerifyErrorResponse{
		Error:   message,
		Code:    errorCode,
		Details: details,
	})
}

// RespondVerifyEnvMissing is RespondEnvMissing on the verification path
func RespondVerifyEnvMissing(c *gin.Context, missing map[string]bool) {
	c.JSON(500, VerifyErrorResponse{
		Error:   "Server misconfigured",
		Code:    CodeEnvMissing,
		Missing: missing,
	})
}

// GetClientIP gets the real client IP address
func GetClientIP(c *gin.Context) string {
	// Try X-Forwarded-For header first (for proxied requests)
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		return ip
	}

	// Try X-Real-IP header
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}

	// Fall back to RemoteAddr
	return c.ClientIP()
}
