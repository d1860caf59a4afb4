// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth provides authentication context helpers.
package auth

import (
	"context"

	"codeberg.org/oliverandrich/storefront/internal/ctxkeys"
	"codeberg.org/oliverandrich/storefront/internal/services/token"
)

// SetClaims stores verified session claims in the context.
func SetClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, ctxkeys.Claims{}, claims)
}

// GetClaims returns the session claims from the context, or nil if not authenticated.
func GetClaims(ctx context.Context) *token.Claims {
	if claims, ok := ctx.Value(ctxkeys.Claims{}).(*token.Claims); ok {
		return claims
	}
	return nil
}

// UserID returns the ID of the authenticated user.
func UserID(ctx context.Context) (int64, bool) {
	claims := GetClaims(ctx)
	if claims == nil {
		return 0, false
	}
	return claims.UserID, true
}

// IsAuthenticated returns true if the context has verified session claims.
func IsAuthenticated(ctx context.Context) bool {
	return GetClaims(ctx) != nil
}
