package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebel7/certserver/internal/api"
	"github.com/rebel7/certserver/internal/api/handlers"
	"github.com/rebel7/certserver/internal/auth"
	"github.com/rebel7/certserver/internal/config"
	"github.com/rebel7/certserver/internal/db/repository"
	"github.com/rebel7/certserver/internal/models"
	"github.com/rebel7/certserver/pkg/certutil"
)

const testAdminToken = "test-admin-token"

var codePattern = regexp.MustCompile(`^R7-ESG-\d{4}-[0-9A-F]{6}$`)

type testEnv struct {
	router http.Handler
	certs  *repository.InMemoryCertStore
	audit  *repository.InMemoryAuditStore
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Admin.Token = testAdminToken
	if mutate != nil {
		mutate(cfg)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	certs := repository.NewInMemoryCertStore()
	audit := repository.NewInMemoryAuditStore()

	return &testEnv{
		router: api.NewServer(cfg, log, certs, audit).Router(),
		certs:  certs,
		audit:  audit,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func issueRequest(path string, body interface{}) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	return req
}

func validIssueBody() map[string]interface{} {
	return map[string]interface{}{
		"company": map[string]interface{}{
			"name":    "Acme Srl",
			"vat":     "IT12345678901",
			"country": "IT",
		},
		"level": "gold",
	}
}

type issueEnvelope struct {
	OK          bool                `json:"ok"`
	Certificate *models.Certificate `json:"certificate"`
}

type errorEnvelope struct {
	OK      *bool           `json:"ok"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
	Missing map[string]bool `json:"missing"`
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func detailField(t *testing.T, resp errorEnvelope) string {
	t.Helper()
	var details struct {
		Field string `json:"field"`
	}
	require.NoError(t, json.Unmarshal(resp.Details, &details))
	return details.Field
}

func TestIssueHappyPath(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(issueRequest("/api/certificates/generate", validIssueBody()))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp issueEnvelope
	decodeJSON(t, w, &resp)
	require.True(t, resp.OK)
	require.NotNil(t, resp.Certificate)

	c := resp.Certificate
	assert.Regexp(t, codePattern, c.CertificateCode)
	assert.Equal(t, "valid", c.Status)
	assert.Equal(t, "gold", c.Level)

	issuedAt, err := time.Parse(time.RFC3339, c.IssuedAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), issuedAt, time.Minute)

	assert.Nil(t, c.ValidTo)
	assert.Equal(t, "Acme Srl", c.Company.Name)
	require.NotNil(t, c.Company.VAT)
	assert.Equal(t, "IT12345678901", *c.Company.VAT)
	require.NotNil(t, c.Company.Country)
	assert.Equal(t, "IT", *c.Company.Country)
	assert.Equal(t, "Rebel7 ESG", c.Issuer.Name)

	require.NotNil(t, c.Audit.Hash)
	assert.Equal(t, certutil.Fingerprint(c.CertificateCode, c.IssuedAt), *c.Audit.Hash)
	_, err = time.Parse(time.RFC3339, c.Audit.VerifiedAt)
	assert.NoError(t, err)

	require.NotNil(t, c.PDF)
	assert.Nil(t, c.PDF.Path)
	assert.Nil(t, c.PDF.URL)

	// The record is retrievable under the minted code
	stored, err := env.certs.GetByCode(c.CertificateCode)
	require.NoError(t, err)
	require.NotNil(t, stored)

	entries := env.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionCertIssue, entries[0].Action)
	assert.True(t, entries[0].Success)
}

func TestIssueNormalizesLevel(t *testing.T) {
	env := newTestEnv(t, nil)

	body := validIssueBody()
	body["level"] = " Gold "
	w := env.do(issueRequest("/api/certificates/generate", body))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp issueEnvelope
	decodeJSON(t, w, &resp)
	assert.Equal(t, "gold", resp.Certificate.Level)
}

func TestIssueRejectsUnknownLevel(t *testing.T) {
	env := newTestEnv(t, nil)

	body := validIssueBody()
	body["level"] = "diamond"
	w := env.do(issueRequest("/api/certificates/generate", body))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorEnvelope
	decodeJSON(t, w, &resp)
	assert.Equal(t, "BAD_REQUEST", resp.Code)
	assert.Equal(t, "level", detailField(t, resp))

	entries := env.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionCertIssue, entries[0].Action)
	assert.False(t, entries[0].Success)
}

func TestIssueRejectsBlankCompanyName(t *testing.T) {
	env := newTestEnv(t, nil)

	body := validIssueBody()
	body["company"] = map[string]interface{}{"name": "   "}
	w := env.do(issueRequest("/api/certificates/generate", body))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorEnvelope
	decodeJSON(t, w, &resp)
	assert.Equal(t, "BAD_REQUEST", resp.Code)
	assert.Equal(t, "company.name", detailField(t, resp))
}

func TestIssueRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/certificates/generate",
		bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	w := env.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorEnvelope
	decodeJSON(t, w, &resp)
	assert.Equal(t, "BAD_REQUEST", resp.Code)
	assert.Equal(t, "body", detailField(t, resp))
}

func TestIssueRequiresBearerToken(t *testing.T) {
	env := newTestEnv(t, nil)

	for name, header := range map[string]string{
		"absent":       "",
		"wrong token":  "Bearer nope",
		"wrong scheme": "Basic " + testAdminToken,
	} {
		t.Run(name, func(t *testing.T) {
			req := issueRequest("/api/certificates/generate", validIssueBody())
			if header == "" {
				req.Header.Del("Authorization")
			} else {
				req.Header.Set("Authorization", header)
			}
			w := env.do(req)
			require.Equal(t, http.StatusUnauthorized, w.Code)

			var resp errorEnvelope
			decodeJSON(t, w, &resp)
			assert.Equal(t, "UNAUTHORIZED", resp.Code)
		})
	}

	// Every rejection was an auth failure; nothing was issued
	for _, entry := range env.audit.Entries() {
		assert.Equal(t, models.ActionAuthFailed, entry.Action)
	}
}

func TestIssueAdminTokenUnconfigured(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Admin.Token = ""
	})

	req := issueRequest("/api/certificates/generate", validIssueBody())
	req.Header.Del("Authorization")
	w := env.do(req)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp errorEnvelope
	decodeJSON(t, w, &resp)
	assert.Equal(t, "ENV_MISSING", resp.Code)
	assert.True(t, resp.Missing[config.EnvAdminToken])
}

// newRouter builds a router around arbitrary store implementations, for
// exercising nil and failing stores.
func newRouter(t *testing.T, certs handlers.CertStore, audit handlers.AuditStore) http.Handler {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Admin.Token = testAdminToken

	log := logrus.New()
	log.SetOutput(io.Discard)

	return api.NewServer(cfg, log, certs, audit).Router()
}

// brokenCertStore fails every operation with the configured errors
type brokenCertStore struct {
	insertErr error
	getErr    error
}

func (s *brokenCertStore) Insert(*models.StoredCertificate) error { return s.insertErr }

func (s *brokenCertStore) GetByCode(string) (*models.StoredCertificate, error) {
	return nil, s.getErr
}

func TestIssueWithoutStore(t *testing.T) {
	router := newRouter(t, nil, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, issueRequest("/api/certificates/generate", validIssueBody()))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ENV_MISSING", resp.Code)
	assert.True(t, resp.Missing[config.EnvDBPath])
}

func TestIssueUnparsableBodyBeforeStoreCheck(t *testing.T) {
	// Input validation outranks the deployment check: a bad request is
	// reported even when no store is configured.
	router := newRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/certificates/generate",
		bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "BAD_REQUEST", resp.Code)
	assert.Equal(t, "body", detailField(t, resp))
}

func storeDetail(t *testing.T, resp errorEnvelope) string {
	t.Helper()
	var details struct {
		Store string `json:"store"`
	}
	require.NoError(t, json.Unmarshal(resp.Details, &details))
	return details.Store
}

func TestIssueStoreWriteFailure(t *testing.T) {
	audit := repository.NewInMemoryAuditStore()
	router := newRouter(t, &brokenCertStore{insertErr: errors.New("disk I/O error")}, audit)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, issueRequest("/api/certificates/generate", validIssueBody()))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
	assert.Equal(t, "disk I/O error", storeDetail(t, resp))

	entries := audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionCertIssue, entries[0].Action)
	assert.False(t, entries[0].Success)
}

func TestIssueDuplicateCode(t *testing.T) {
	router := newRouter(t, &brokenCertStore{insertErr: repository.ErrDuplicateCode}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, issueRequest("/api/certificates/generate", validIssueBody()))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
	// The minted code is not echoed on failure
	assert.Equal(t, "certificate code collision", storeDetail(t, resp))
}

func TestVerifyStoreReadFailure(t *testing.T) {
	router := newRouter(t, &brokenCertStore{getErr: errors.New("connection reset")}, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/api/certificates/verify?certificate_code=R7-ESG-2025-ABC123", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	assert.Equal(t, "DB_ERROR", resp.Code)
	assert.Equal(t, "Database error", resp.Error)
}

func TestIssueWithTOTP(t *testing.T) {
	secret, err := auth.GenerateTOTPSecret()
	require.NoError(t, err)

	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Admin.TOTPSecret = secret
	})

	// Bearer token alone is no longer sufficient
	w := env.do(issueRequest("/api/certificates/generate", validIssueBody()))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	req := issueRequest("/api/certificates/generate", validIssueBody())
	req.Header.Set("X-Admin-OTP", code)
	w = env.do(req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestVerifyUnknownCode(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/api/certificates/verify?certificate_code=R7-ESG-2099-FFFFFF", nil)
	w := env.do(req)
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp errorEnvelope
	decodeJSON(t, w, &resp)
	require.NotNil(t, resp.OK)
	assert.False(t, *resp.OK)
	assert.Equal(t, "CERT_NOT_FOUND", resp.Code)

	// Verification leaves no audit trail
	assert.Empty(t, env.audit.Entries())
}

func TestVerifyMissingCodeParam(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/certificates/verify", nil)
	w := env.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorEnvelope
	decodeJSON(t, w, &resp)
	assert.Equal(t, "BAD_REQUEST", resp.Code)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(issueRequest("/v1/certs/issue", validIssueBody()))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var issued issueEnvelope
	decodeJSON(t, w, &issued)

	req := httptest.NewRequest(http.MethodGet,
		"/v1/certs/verify?certificate_code="+issued.Certificate.CertificateCode, nil)
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var verified issueEnvelope
	decodeJSON(t, w, &verified)
	require.True(t, verified.OK)

	assert.Equal(t, issued.Certificate.CertificateCode, verified.Certificate.CertificateCode)
	assert.Equal(t, issued.Certificate.IssuedAt, verified.Certificate.IssuedAt)
	assert.Equal(t, issued.Certificate.Company, verified.Certificate.Company)
	require.NotNil(t, verified.Certificate.Audit.Hash)
	assert.Equal(t, *issued.Certificate.Audit.Hash, *verified.Certificate.Audit.Hash)
}

func TestVerifyLegacyRow(t *testing.T) {
	env := newTestEnv(t, nil)

	org := "Legacy Org"
	validUntil := "2020-06-01T00:00:00Z"
	hash := certutil.Fingerprint("R7-ESG-2019-ABCDEF", "2019-06-01T00:00:00Z")
	require.NoError(t, env.certs.Insert(&models.StoredCertificate{
		CertificateCode:  "R7-ESG-2019-ABCDEF",
		Status:           "valid",
		Level:            "silver",
		IssuedAt:         "2019-06-01T00:00:00Z",
		ValidUntil:       &validUntil,
		OrganizationName: &org,
		AuditHash:        &hash,
	}))

	req := httptest.NewRequest(http.MethodGet,
		"/api/certificates/verify?certificate_code=R7-ESG-2019-ABCDEF", nil)
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp issueEnvelope
	decodeJSON(t, w, &resp)
	require.True(t, resp.OK)

	c := resp.Certificate
	require.NotNil(t, c.ValidTo)
	assert.Equal(t, validUntil, *c.ValidTo)
	assert.Equal(t, "Legacy Org", c.Company.Name)
	assert.Nil(t, c.Company.VAT)
	assert.Nil(t, c.Company.Country)
	assert.Equal(t, "Rebel7 ESG", c.Issuer.Name)
	require.NotNil(t, c.Audit.Hash)
	assert.Equal(t, hash, *c.Audit.Hash)
}

func TestVerifyPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/certificates/verify", nil)
	req.Header.Set("Origin", "https://example.com")
	w := env.do(req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "GET")
}

func TestGenerateRejectsWrongMethod(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/certificates/generate", nil)
	w := env.do(req)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	var resp errorEnvelope
	decodeJSON(t, w, &resp)
	assert.Equal(t, "METHOD_NOT_ALLOWED", resp.Code)
}

func TestQRCode(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(issueRequest("/v1/certs/issue", validIssueBody()))
	require.Equal(t, http.StatusCreated, w.Code)

	var issued issueEnvelope
	decodeJSON(t, w, &issued)

	req := httptest.NewRequest(http.MethodGet,
		"/v1/certs/qr?certificate_code="+issued.Certificate.CertificateCode, nil)
	w = env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestQRCodeUnknownCode(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/v1/certs/qr?certificate_code=R7-ESG-2099-FFFFFF", nil)
	w := env.do(req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestIssuerEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/issuer", nil)
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Name string `json:"name"`
	}
	decodeJSON(t, w, &resp)
	assert.Equal(t, "Rebel7 ESG", resp.Name)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string `json:"status"`
	}
	decodeJSON(t, w, &resp)
	assert.Equal(t, "ok", resp.Status)
}
