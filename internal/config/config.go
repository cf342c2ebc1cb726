package config

import (
	"fmt"
	"regexp"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Certificate CertificateConfig `yaml:"certificate"`
	Admin       AdminConfig       `yaml:"admin"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// VerifyBaseURL is the public URL of the verification endpoint, used
	// when rendering QR codes. Derived from the request host when empty.
	VerifyBaseURL string `yaml:"verify_base_url"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Path  string `yaml:"path"`
	Table string `yaml:"table"`
}

// CertificateConfig contains certificate issuance configuration
type CertificateConfig struct {
	IssuerName string `yaml:"issuer_name"`
	CodePrefix string `yaml:"code_prefix"`
	CodeScope  string `yaml:"code_scope"`
}

// AdminConfig contains admin credential configuration
type AdminConfig struct {
	Token string `yaml:"token"`
	// TOTPSecret, when set, requires a valid X-Admin-OTP code on issuance
	// in addition to the bearer token.
	TOTPSecret string `yaml:"totp_secret"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Environment variable names, also used as keys in ENV_MISSING responses
const (
	EnvListenAddr      = "CERT_LISTEN_ADDR"
	EnvVerifyBaseURL   = "CERT_VERIFY_BASE_URL"
	EnvDBPath          = "CERT_DB_PATH"
	EnvTable           = "CERT_TABLE"
	EnvAdminToken      = "CERT_ADMIN_TOKEN"
	EnvAdminTOTPSecret = "CERT_ADMIN_TOTP_SECRET"
	EnvIssuerName      = "CERT_ISSUER_NAME"
	EnvCodePrefix      = "CERT_CODE_PREFIX"
	EnvCodeScope       = "CERT_CODE_SCOPE"
	EnvLogLevel        = "CERT_LOG_LEVEL"
	EnvLogFormat       = "CERT_LOG_FORMAT"
)

// Defaults for the optional keys
const (
	DefaultListenAddr = ":8080"
	DefaultTable      = "certificates"
	DefaultIssuerName = "Rebel7 ESG"
	DefaultCodePrefix = "R7"
	DefaultCodeScope  = "ESG"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

// tableNamePattern guards the configured table name, which is interpolated
// into SQL statements.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// applyDefaults fills in every optional key that was left unset
func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Database.Table == "" {
		c.Database.Table = DefaultTable
	}
	if c.Certificate.IssuerName == "" {
		c.Certificate.IssuerName = DefaultIssuerName
	}
	if c.Certificate.CodePrefix == "" {
		c.Certificate.CodePrefix = DefaultCodePrefix
	}
	if c.Certificate.CodeScope == "" {
		c.Certificate.CodeScope = DefaultCodeScope
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Validate checks if the configuration is valid. Missing deployment secrets
// are deliberately not validation failures here: the handlers report them as
// ENV_MISSING per call so a misconfigured caller credential is never
// conflated with a missing one (see Missing).
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	if !tableNamePattern.MatchString(c.Database.Table) {
		return fmt.Errorf("database.table must be a plain SQL identifier, got %q", c.Database.Table)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be 'json' or 'text'")
	}

	return nil
}

// Missing enumerates required deployment keys that are absent, keyed by
// their environment variable name. Operators see exactly which keys to set;
// values are never echoed.
func (c *Config) Missing() map[string]bool {
	missing := map[string]bool{}
	if c.Admin.Token == "" {
		missing[EnvAdminToken] = true
	}
	if c.Database.Path == "" {
		missing[EnvDBPath] = true
	}
	return missing
}
