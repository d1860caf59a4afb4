// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/storefront/internal/config"
	"codeberg.org/oliverandrich/storefront/internal/testutil"
	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:        "localhost",
			Port:        5000,
			BaseURL:     "http://localhost:5000",
			MaxBodySize: 1,
			CORSOrigins: []string{"*"},
		},
		Database: config.DatabaseConfig{DSN: ":memory:"},
		Auth:     *testutil.NewAuthConfig(),
	}
}

func newTestServer(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	require.NoError(t, cfg.Validate())
	srv, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv.Handler()
}

type response struct {
	code int
	body map[string]any
}

func do(t *testing.T, h http.Handler, method, path, body, bearer string) response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, testutil.NewRequest(method, path, reader, bearer))

	res := response{code: rec.Code}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res.body), rec.Body.String())
	}
	return res
}

func code(t *testing.T, secret string) string {
	t.Helper()
	c, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return c
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestServer(t, newTestConfig())

	res := do(t, h, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "ok", res.body["status"])
}

// TestAuthFlow walks an account from registration through two-factor
// enrollment, step-up login and recovery login.
func TestAuthFlow(t *testing.T) {
	h := newTestServer(t, newTestConfig())

	res := do(t, h, http.MethodPost, "/api/auth/register",
		`{"name":"ana","email":"ana@example.com","password":"pw123","address":"Main St 1"}`, "")
	require.Equal(t, http.StatusCreated, res.code)
	require.Equal(t, "ana", res.body["username"])

	res = do(t, h, http.MethodPost, "/api/auth/login", `{"email":"ana@example.com","password":"pw123"}`, "")
	require.Equal(t, http.StatusOK, res.code)
	session := res.body["token"].(string)

	res = do(t, h, http.MethodPost, "/api/auth/generate-2fa", "", session)
	require.Equal(t, http.StatusOK, res.code)
	secret := res.body["tempSecret"].(string)
	assert.True(t, strings.HasPrefix(res.body["qrImage"].(string), "data:image/png;base64,"))

	res = do(t, h, http.MethodPost, "/api/auth/confirm-2fa",
		`{"otp":"`+code(t, secret)+`","tempSecret":"`+secret+`"}`, session)
	require.Equal(t, http.StatusOK, res.code)
	backupCodes := res.body["backupCodes"].([]any)
	require.Len(t, backupCodes, 10)

	res = do(t, h, http.MethodPost, "/api/auth/login", `{"email":"ana@example.com","password":"pw123"}`, "")
	require.Equal(t, http.StatusAccepted, res.code)
	assert.Equal(t, "otp-required", res.body["status"])
	stepUp := res.body["tempToken"].(string)

	// A step-up token is not a session.
	res = do(t, h, http.MethodGet, "/api/auth/profile", "", stepUp)
	assert.Equal(t, http.StatusUnauthorized, res.code)

	res = do(t, h, http.MethodPost, "/api/auth/verify-otp", `{"otp":"`+code(t, secret)+`"}`, stepUp)
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "ana@example.com", res.body["email"])
	session = res.body["token"].(string)

	res = do(t, h, http.MethodPost, "/api/auth/verify-otp", `{"otp":"`+code(t, secret)+`"}`, stepUp)
	assert.Equal(t, http.StatusUnauthorized, res.code)

	res = do(t, h, http.MethodGet, "/api/auth/profile", "", session)
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, true, res.body["twoFactorEnabled"])

	res = do(t, h, http.MethodPost, "/api/auth/recovery-login",
		`{"email":"ana@example.com","recoveryCode":"`+backupCodes[0].(string)+`"}`, "")
	require.Equal(t, http.StatusOK, res.code)
	assert.InDelta(t, 9, res.body["remainingCodes"], 0)
	recoverySession := res.body["token"].(string)

	res = do(t, h, http.MethodGet, "/api/auth/validate-token", "", recoverySession)
	assert.Equal(t, http.StatusOK, res.code)

	res = do(t, h, http.MethodPost, "/api/auth/recovery-login",
		`{"email":"ana@example.com","recoveryCode":"`+backupCodes[0].(string)+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, res.code)
}

func TestAddressAndDisable2FA(t *testing.T) {
	h := newTestServer(t, newTestConfig())

	res := do(t, h, http.MethodPost, "/api/auth/register",
		`{"name":"ana","email":"ana@example.com","password":"pw123","address":"Main St 1"}`, "")
	require.Equal(t, http.StatusCreated, res.code)
	session := res.body["token"].(string)

	res = do(t, h, http.MethodPut, "/api/auth/update-address", `{"address":"Elm St 2"}`, session)
	require.Equal(t, http.StatusOK, res.code)

	res = do(t, h, http.MethodPost, "/api/auth/generate-recovery-codes", "", session)
	assert.Equal(t, http.StatusBadRequest, res.code)

	res = do(t, h, http.MethodPost, "/api/auth/disable-2fa", "", session)
	assert.Equal(t, http.StatusOK, res.code)

	res = do(t, h, http.MethodPost, "/api/auth/login", `{"email":"ana@example.com","password":"pw123"}`, "")
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "Elm St 2", res.body["address"])
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	h := newTestServer(t, newTestConfig())

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/auth/generate-2fa"},
		{http.MethodPost, "/api/auth/confirm-2fa"},
		{http.MethodPost, "/api/auth/disable-2fa"},
		{http.MethodPost, "/api/auth/generate-recovery-codes"},
		{http.MethodPut, "/api/auth/update-address"},
		{http.MethodGet, "/api/auth/profile"},
		{http.MethodGet, "/api/auth/validate-token"},
	}

	for _, r := range routes {
		t.Run(r.path, func(t *testing.T) {
			res := do(t, h, r.method, r.path, "", "")
			assert.Equal(t, http.StatusUnauthorized, res.code)
			assert.Equal(t, "Authentication token required", res.body["message"])

			res = do(t, h, r.method, r.path, "", "not-a-token")
			assert.Equal(t, http.StatusUnauthorized, res.code)
			assert.Equal(t, "Invalid or expired token", res.body["message"])
		})
	}
}

func TestLocalizedErrors(t *testing.T) {
	h := newTestServer(t, newTestConfig())

	req := testutil.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"nobody@example.com","password":"x"}`), "")
	req.Header.Set("Accept-Language", "es")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"message":"Credenciales inválidas"}`, rec.Body.String())
}

func TestStepUpReplay_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := newTestConfig()
	cfg.Redis.URL = "redis://" + mr.Addr()
	h := newTestServer(t, cfg)

	res := do(t, h, http.MethodPost, "/api/auth/register",
		`{"name":"ana","email":"ana@example.com","password":"pw123","address":"Main St 1"}`, "")
	require.Equal(t, http.StatusCreated, res.code)
	session := res.body["token"].(string)

	res = do(t, h, http.MethodPost, "/api/auth/generate-2fa", "", session)
	secret := res.body["tempSecret"].(string)
	res = do(t, h, http.MethodPost, "/api/auth/confirm-2fa",
		`{"otp":"`+code(t, secret)+`","tempSecret":"`+secret+`"}`, session)
	require.Equal(t, http.StatusOK, res.code)

	res = do(t, h, http.MethodPost, "/api/auth/login", `{"email":"ana@example.com","password":"pw123"}`, "")
	require.Equal(t, http.StatusAccepted, res.code)
	stepUp := res.body["tempToken"].(string)

	res = do(t, h, http.MethodPost, "/api/auth/verify-otp", `{"otp":"`+code(t, secret)+`"}`, stepUp)
	require.Equal(t, http.StatusOK, res.code)
	assert.Len(t, mr.Keys(), 1)

	res = do(t, h, http.MethodPost, "/api/auth/verify-otp", `{"otp":"`+code(t, secret)+`"}`, stepUp)
	assert.Equal(t, http.StatusUnauthorized, res.code)
}

func TestNew_InvalidRedisURL(t *testing.T) {
	cfg := newTestConfig()
	cfg.Redis.URL = "http://localhost"

	_, err := New(context.Background(), cfg)

	assert.Error(t, err)
}

func TestNew_WithSMTP(t *testing.T) {
	cfg := newTestConfig()
	cfg.SMTP = config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "shop@example.com"}

	srv, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, srv.Close())
}
