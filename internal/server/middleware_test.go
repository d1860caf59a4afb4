// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/storefront/internal/handlers"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiddlewareEcho(t *testing.T) *echo.Echo {
	t.Helper()
	cfg := newTestConfig()
	cfg.Server.CORSOrigins = []string{"https://shop.example.com"}

	e := echo.New()
	e.HTTPErrorHandler = handlers.ErrorHandler
	setupMiddleware(e, cfg)
	e.POST("/echo", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	return e
}

func TestRequestIDMiddleware(t *testing.T) {
	e := newMiddlewareEcho(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo", nil))

	_, err := uuid.Parse(rec.Header().Get(echo.HeaderXRequestID))
	assert.NoError(t, err)
}

func TestCORSMiddleware(t *testing.T) {
	e := newMiddlewareEcho(t)

	t.Run("allowed origin preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/echo", nil)
		req.Header.Set(echo.HeaderOrigin, "https://shop.example.com")
		req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
		req.Header.Set(echo.HeaderAccessControlRequestHeaders, "Authorization, Content-Type")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://shop.example.com", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowHeaders), echo.HeaderAuthorization)
	})

	t.Run("foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/echo", nil)
		req.Header.Set(echo.HeaderOrigin, "https://evil.example.com")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	})
}

func TestBodyLimitMiddleware(t *testing.T) {
	e := newMiddlewareEcho(t)

	body := strings.Repeat("x", 2<<20)
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSecureHeaders(t *testing.T) {
	e := newMiddlewareEcho(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))
}

func TestTrailingSlashIsIgnored(t *testing.T) {
	e := newMiddlewareEcho(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
