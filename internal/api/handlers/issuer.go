package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// IssuerHandler serves the issuer identity
type IssuerHandler struct {
	name string
}

// NewIssuerHandler creates a new issuer handler
func NewIssuerHandler(name string) *IssuerHandler {
	return &IssuerHandler{name: name}
}

// GetIssuer returns the configured issuer display name, so verifiers know
// who stands behind the certificates.
// GET /v1/issuer
func (h *IssuerHandler) GetIssuer(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"name": h.name})
}
