package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, cfg.Server.ListenAddr)
	assert.Equal(t, DefaultTable, cfg.Database.Table)
	assert.Equal(t, DefaultIssuerName, cfg.Certificate.IssuerName)
	assert.Equal(t, DefaultCodePrefix, cfg.Certificate.CodePrefix)
	assert.Equal(t, DefaultCodeScope, cfg.Certificate.CodeScope)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  listen_addr: ":9090"
database:
  path: /var/lib/certserver/certs.db
  table: esg_certificates
admin:
  token: file-token
certificate:
  issuer_name: Custom Issuer
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, "esg_certificates", cfg.Database.Table)
	assert.Equal(t, "file-token", cfg.Admin.Token)
	assert.Equal(t, "Custom Issuer", cfg.Certificate.IssuerName)
	// Unset keys still receive defaults
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv(EnvListenAddr, ":7070")
	t.Setenv(EnvAdminToken, "env-token")
	t.Setenv(EnvDBPath, "/tmp/test.db")
	t.Setenv(EnvTable, "esg_certificates")
	t.Setenv(EnvIssuerName, "Env Issuer")

	cfg, err := LoadWithEnv("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.ListenAddr)
	assert.Equal(t, "env-token", cfg.Admin.Token)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, "esg_certificates", cfg.Database.Table)
	assert.Equal(t, "Env Issuer", cfg.Certificate.IssuerName)
}

func TestValidateRejectsBadTableName(t *testing.T) {
	t.Setenv(EnvTable, "certs; DROP TABLE users")

	_, err := LoadWithEnv("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.table")
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "verbose")

	_, err := LoadWithEnv("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestMissingEnumeratesAbsentKeys(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	missing := cfg.Missing()
	assert.True(t, missing[EnvAdminToken])
	assert.True(t, missing[EnvDBPath])

	cfg.Admin.Token = "tok"
	cfg.Database.Path = "/tmp/db"
	assert.Empty(t, cfg.Missing())
}
