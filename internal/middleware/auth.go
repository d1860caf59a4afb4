// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware provides echo middleware for bearer authentication,
// localization and request logging.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/storefront/internal/auth"
	authsvc "codeberg.org/oliverandrich/storefront/internal/services/auth"
	"codeberg.org/oliverandrich/storefront/internal/services/token"
	"github.com/labstack/echo/v4"
)

// SessionVerifier validates session tokens.
type SessionVerifier interface {
	ParseSession(tokenString string) (*token.Claims, error)
}

// RequireSession rejects requests without a valid session bearer token and
// stores the verified claims in the request context.
func RequireSession(v SessionVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := BearerToken(c.Request())
			if raw == "" {
				return authsvc.ErrTokenMissing
			}

			claims, err := v.ParseSession(raw)
			if err != nil {
				slog.Debug("session_rejected", "path", c.Path(), "error", err)
				return authsvc.ErrInvalidToken
			}

			ctx := auth.SetClaims(c.Request().Context(), claims)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get(echo.HeaderAuthorization))
	scheme, tok, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
