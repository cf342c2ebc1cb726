package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rebel7/certserver/internal/auth"
	"github.com/rebel7/certserver/internal/config"
	"github.com/rebel7/certserver/internal/models"
)

// AuditSink records auth failures; nil disables auditing
type AuditSink interface {
	Create(log *models.AuditLog) error
}

// AdminAuth guards issuance with the shared admin bearer credential.
// A missing server-side secret is reported as ENV_MISSING, never as
// UNAUTHORIZED: an unconfigured deployment is not an invalid caller.
// When a TOTP secret is configured, a valid X-Admin-OTP code is required
// on top of the bearer token.
func AdminAuth(cfg *config.Config, audit AuditSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Admin.Token == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "Server misconfigured",
				"code":    "ENV_MISSING",
				"missing": map[string]bool{config.EnvAdminToken: true},
			})
			return
		}

		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok || !auth.VerifyAdminToken(token, cfg.Admin.Token) {
			recordAuthFailure(audit, c, "Missing or invalid bearer credential")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
				"code":  "UNAUTHORIZED",
			})
			return
		}

		if cfg.Admin.TOTPSecret != "" {
			if !auth.ValidateTOTP(cfg.Admin.TOTPSecret, c.GetHeader("X-Admin-OTP")) {
				recordAuthFailure(audit, c, "Invalid TOTP code")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Unauthorized",
					"code":  "UNAUTHORIZED",
				})
				return
			}
		}

		c.Next()
	}
}

func recordAuthFailure(audit AuditSink, c *gin.Context, reason string) {
	if audit == nil {
		return
	}
	_ = audit.Create(&models.AuditLog{
		Action:    models.ActionAuthFailed,
		ClientIP:  c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
		Success:   false,
		ErrorMsg:  reason,
	})
}
