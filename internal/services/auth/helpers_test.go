// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/storefront/internal/config"
	"codeberg.org/oliverandrich/storefront/internal/repository"
	"codeberg.org/oliverandrich/storefront/internal/services/auth"
	"codeberg.org/oliverandrich/storefront/internal/services/cipher"
	"codeberg.org/oliverandrich/storefront/internal/services/otp"
	"codeberg.org/oliverandrich/storefront/internal/services/token"
	"codeberg.org/oliverandrich/storefront/internal/testutil"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

type notification struct {
	event     string
	email     string
	remaining int
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) RecoveryCodeUsed(_ context.Context, email string, remaining int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{event: "recovery_code_used", email: email, remaining: remaining})
	return nil
}

func (n *fakeNotifier) TwoFactorDisabled(_ context.Context, email string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{event: "two_factor_disabled", email: email})
	return nil
}

func (n *fakeNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

type fixture struct {
	svc      *auth.Service
	db       *sqlx.DB
	repo     *repository.Repository
	cfg      *config.AuthConfig
	cipher   *cipher.Cipher
	tokens   *token.Issuer
	notifier *fakeNotifier
}

func newCipher(t *testing.T, cfg *config.AuthConfig) *cipher.Cipher {
	t.Helper()
	key, err := cfg.EncryptionKeyBytes()
	require.NoError(t, err)
	c, err := cipher.New(key)
	require.NoError(t, err)
	return c
}

func newService(t *testing.T, repo *repository.Repository, opts ...auth.Option) (*auth.Service, *config.AuthConfig, *cipher.Cipher, *token.Issuer) {
	t.Helper()
	cfg := testutil.NewAuthConfig()
	c := newCipher(t, cfg)
	tokens := token.NewIssuer(cfg)
	return auth.NewService(repo, cfg, c, tokens, otp.New(cfg.Issuer), opts...), cfg, c, tokens
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, repo := testutil.NewTestDB(t)
	notifier := &fakeNotifier{}
	svc, cfg, c, tokens := newService(t, repo, auth.WithNotifier(notifier))
	return &fixture{svc: svc, db: db, repo: repo, cfg: cfg, cipher: c, tokens: tokens, notifier: notifier}
}

func (f *fixture) register(t *testing.T, name, email, password string) *auth.Session {
	t.Helper()
	session, err := f.svc.Register(context.Background(), auth.RegisterParams{
		Name: name, Email: email, Password: password, Address: "Main St 1",
	})
	require.NoError(t, err)
	return session
}

func (f *fixture) userID(t *testing.T, sessionToken string) int64 {
	t.Helper()
	claims, err := f.tokens.Parse(sessionToken, token.KindSession)
	require.NoError(t, err)
	return claims.UserID
}

// enable2FA runs generate and confirm and returns the secret and backup codes.
func (f *fixture) enable2FA(t *testing.T, userID int64) (string, []string) {
	t.Helper()
	ctx := context.Background()
	enrollment, err := f.svc.Generate2FA(ctx, userID)
	require.NoError(t, err)

	codes, err := f.svc.Confirm2FA(ctx, userID, currentCode(t, enrollment.TempSecret), enrollment.TempSecret)
	require.NoError(t, err)
	return enrollment.TempSecret, codes
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}

// wrongCode returns a six digit code that does not match secret in the
// accepted window.
func wrongCode(t *testing.T, secret string) string {
	t.Helper()
	now := time.Now()
	valid := map[string]bool{}
	for _, offset := range []time.Duration{-otp.Period * time.Second, 0, otp.Period * time.Second} {
		code, err := totp.GenerateCode(secret, now.Add(offset))
		require.NoError(t, err)
		valid[code] = true
	}
	for _, candidate := range []string{"000000", "111111", "222222", "333333"} {
		if !valid[candidate] {
			return candidate
		}
	}
	t.Fatal("no wrong code found")
	return ""
}
