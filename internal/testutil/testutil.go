// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/oliverandrich/storefront/internal/config"
	"codeberg.org/oliverandrich/storefront/internal/database"
	"codeberg.org/oliverandrich/storefront/internal/models"
	"codeberg.org/oliverandrich/storefront/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// TestEncryptionKey is a fixed 32-byte hex key for tests.
const TestEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewAuthConfig returns an auth configuration suitable for tests.
// bcrypt runs at minimum cost to keep tests fast.
func NewAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		Pepper:        "test-pepper",
		EncryptionKey: TestEncryptionKey,
		JWTSecret:     "test-jwt-secret",
		Issuer:        "EpicKick",
		SessionTTL:    time.Hour,
		StepUpTTL:     5 * time.Minute,
		BcryptCost:    4,
	}
}

// NewTestUser creates a user with a placeholder password hash.
func NewTestUser(t *testing.T, repo *repository.Repository, username string) *models.User {
	t.Helper()
	ctx := context.Background()
	email := fmt.Sprintf("%s@example.com", username)
	user, err := repo.CreateUser(ctx, username, email, "not-a-real-hash", "Main St 1")
	require.NoError(t, err)
	return user
}

// NewRequest creates a JSON HTTP request, optionally carrying a bearer token.
func NewRequest(method, path string, body io.Reader, token string) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	return req
}
