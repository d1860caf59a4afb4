// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues and verifies signed bearer tokens.
//
// Two kinds exist. Session tokens grant access to the account. Step-up tokens
// only prove that the password was correct while a one-time code is still
// pending. The kind travels in the audience claim, so a token of one kind is
// rejected wherever the other is expected.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"codeberg.org/oliverandrich/storefront/internal/config"
	"codeberg.org/oliverandrich/storefront/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distinguishes session tokens from step-up tokens.
type Kind string

const (
	KindSession Kind = "session"
	KindStepUp  Kind = "step-up"
)

// ErrInvalidToken is returned for missing, malformed, expired or mismatched tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims are carried by every token. Email and Username are empty on
// step-up tokens and on sessions started through a recovery code.
type Claims struct {
	UserID   int64  `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs tokens with HS256.
type Issuer struct {
	now        func() time.Time
	secret     []byte
	issuer     string
	sessionTTL time.Duration
	stepUpTTL  time.Duration
}

// NewIssuer creates an issuer from the auth configuration.
func NewIssuer(cfg *config.AuthConfig) *Issuer {
	return &Issuer{
		now:        time.Now,
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		sessionTTL: cfg.SessionTTL,
		stepUpTTL:  cfg.StepUpTTL,
	}
}

// WithClock replaces the time source. Used by tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// StepUpTTL returns the lifetime of step-up tokens.
func (i *Issuer) StepUpTTL() time.Duration {
	return i.stepUpTTL
}

// IssueSession creates a full session token carrying the user's identity.
func (i *Issuer) IssueSession(user *models.User) (string, error) {
	return i.sign(Claims{UserID: user.ID, Email: user.Email, Username: user.Username}, KindSession, i.sessionTTL)
}

// IssueRecoverySession creates a full session token that only carries the user ID.
func (i *Issuer) IssueRecoverySession(userID int64) (string, error) {
	return i.sign(Claims{UserID: userID}, KindSession, i.sessionTTL)
}

// IssueStepUp creates a short-lived token that only authorizes OTP verification.
func (i *Issuer) IssueStepUp(userID int64) (string, error) {
	return i.sign(Claims{UserID: userID}, KindStepUp, i.stepUpTTL)
}

func (i *Issuer) sign(claims Claims, kind Kind, ttl time.Duration) (string, error) {
	now := i.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    i.issuer,
		Subject:   strconv.FormatInt(claims.UserID, 10),
		Audience:  jwt.ClaimStrings{string(kind)},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, expiry and kind and returns the claims.
func (i *Issuer) Parse(tokenString string, kind Kind) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(string(kind)),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
