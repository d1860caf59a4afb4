// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/storefront/internal/auth"
	"codeberg.org/oliverandrich/storefront/internal/i18n"
	"codeberg.org/oliverandrich/storefront/internal/middleware"
	authsvc "codeberg.org/oliverandrich/storefront/internal/services/auth"
	"codeberg.org/oliverandrich/storefront/internal/services/token"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	valid string
}

func (v fakeVerifier) ParseSession(tokenString string) (*token.Claims, error) {
	if tokenString != v.valid {
		return nil, errors.New("bad token")
	}
	return &token.Claims{UserID: 7, Email: "ana@example.com"}, nil
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"missing", "", ""},
		{"bearer", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase scheme", "bearer abc", "abc"},
		{"extra spaces", "  Bearer   abc  ", "abc"},
		{"basic auth", "Basic dXNlcjpwYXNz", ""},
		{"scheme only", "Bearer", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			assert.Equal(t, tt.expected, middleware.BearerToken(req))
		})
	}
}

func TestRequireSession(t *testing.T) {
	e := echo.New()
	var seen *token.Claims
	handler := middleware.RequireSession(fakeVerifier{valid: "good"})(func(c echo.Context) error {
		seen = auth.GetClaims(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	t.Run("missing token", func(t *testing.T) {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		assert.ErrorIs(t, handler(c), authsvc.ErrTokenMissing)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer forged")
		c := e.NewContext(req, httptest.NewRecorder())
		assert.ErrorIs(t, handler(c), authsvc.ErrInvalidToken)
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer good")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, handler(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, int64(7), seen.UserID)
	})
}

func TestLocale(t *testing.T) {
	require.NoError(t, i18n.Init())

	e := echo.New()
	e.Use(middleware.Locale())

	var locale string
	e.GET("/", func(c echo.Context) error {
		locale = i18n.GetLocale(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	tests := []struct {
		header   string
		expected string
	}{
		{"es-ES,es;q=0.9", "es"},
		{"en-US", "en"},
		{"de-DE", "en"},
		{"", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Language", tt.header)
			e.ServeHTTP(httptest.NewRecorder(), req)

			assert.Contains(t, locale, tt.expected)
		})
	}
}

func TestStripTrailingSlash(t *testing.T) {
	e := echo.New()
	e.Pre(middleware.StripTrailingSlash())
	e.POST("/api/auth/login", func(c echo.Context) error {
		return c.String(http.StatusOK, "login")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "login", rec.Body.String())
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	e := echo.New()
	e.Use(middleware.RequestLogger())
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/api/auth/profile", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusUnauthorized)
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String())

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "/api/auth/profile", entry["uri"])
	assert.InDelta(t, http.StatusUnauthorized, entry["status"], 0)
}
