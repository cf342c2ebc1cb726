package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rebel7/certserver/internal/api/handlers"
	"github.com/rebel7/certserver/internal/api/middleware"
	"github.com/rebel7/certserver/internal/config"
)

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	config *config.Config
}

// NewServer creates a new API server. certStore and auditStore may be nil
// when no database is configured; the affected endpoints then answer
// ENV_MISSING instead of failing at startup.
func NewServer(
	cfg *config.Config,
	log *logrus.Logger,
	certStore handlers.CertStore,
	auditStore handlers.AuditStore,
) *Server {
	// Set Gin mode
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware. Panics must never escape as unstructured bodies.
	router.Use(gin.CustomRecovery(func(c *gin.Context, _ interface{}) {
		handlers.RespondError(c, http.StatusInternalServerError,
			handlers.CodeInternalError, "Internal error")
	}))
	router.Use(middleware.Logger(log))

	// A request with a known path but the wrong method is a contract
	// violation, not a missing route.
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		handlers.RespondError(c, http.StatusMethodNotAllowed,
			handlers.CodeMethodNotAllowed, "Method not allowed")
	})
	router.NoRoute(func(c *gin.Context) {
		handlers.RespondError(c, http.StatusNotFound,
			handlers.CodeNotFound, "Not found")
	})

	// Create handlers
	certHandler := handlers.NewCertHandler(cfg, certStore, auditStore, log)
	issuerHandler := handlers.NewIssuerHandler(cfg.Certificate.IssuerName)

	adminAuth := middleware.AdminAuth(cfg, auditStoreAsSink(auditStore))

	// Frozen v1.0 API paths served since the first deployment
	api := router.Group("/api/certificates")
	{
		api.POST("/generate", adminAuth, certHandler.Issue)

		public := api.Group("")
		public.Use(middleware.CORS())
		{
			public.GET("/verify", certHandler.Verify)
			public.OPTIONS("/verify", noContent)
		}
	}

	// Versioned routes
	v1 := router.Group("/v1")
	{
		certs := v1.Group("/certs")
		{
			certs.POST("/issue", adminAuth, certHandler.Issue)

			public := certs.Group("")
			public.Use(middleware.CORS())
			{
				public.GET("/verify", certHandler.Verify)
				public.OPTIONS("/verify", noContent)
				public.GET("/qr", certHandler.QRCode)
			}
		}

		v1.GET("/issuer", issuerHandler.GetIssuer)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	return &Server{
		router: router,
		config: cfg,
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	return s.router.Run(s.config.Server.ListenAddr)
}

// Router returns the underlying Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// noContent terminates preflight requests; the CORS middleware has already
// written the headers and a 204.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// auditStoreAsSink adapts a possibly-nil AuditStore to the middleware's
// sink interface without handing it a non-nil interface holding a nil value.
func auditStoreAsSink(store handlers.AuditStore) middleware.AuditSink {
	if store == nil {
		return nil
	}
	return store
}
