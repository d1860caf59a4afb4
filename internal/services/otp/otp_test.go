// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package otp_test

import (
	"encoding/base64"
	"net/url"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/storefront/internal/services/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newEngine(now *time.Time) *otp.Engine {
	return otp.New("EpicKick").WithClock(func() time.Time { return *now })
}

func TestGenerate(t *testing.T) {
	now := fixedNow
	e := newEngine(&now)

	enrollment, err := e.Generate("ana@example.com")
	require.NoError(t, err)

	assert.Len(t, enrollment.Secret, 32) // 20 bytes in unpadded base32
	assert.True(t, strings.HasPrefix(enrollment.QRImage, "data:image/png;base64,"))

	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(enrollment.QRImage, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	u, err := url.Parse(enrollment.URL)
	require.NoError(t, err)
	assert.Equal(t, "otpauth", u.Scheme)
	assert.Equal(t, "totp", u.Host)
	assert.Equal(t, "EpicKick", u.Query().Get("issuer"))
	assert.Equal(t, enrollment.Secret, u.Query().Get("secret"))
	assert.Contains(t, u.Path, "ana@example.com")
}

func TestGenerate_UniqueSecrets(t *testing.T) {
	now := fixedNow
	e := newEngine(&now)

	a, err := e.Generate("ana@example.com")
	require.NoError(t, err)
	b, err := e.Generate("ana@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, a.Secret, b.Secret)
}

func TestGenerate_MissingAccount(t *testing.T) {
	now := fixedNow
	_, err := newEngine(&now).Generate("")

	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	now := fixedNow
	e := newEngine(&now)
	enrollment, err := e.Generate("ana@example.com")
	require.NoError(t, err)

	code, err := totp.GenerateCode(enrollment.Secret, now)
	require.NoError(t, err)

	ok, err := e.Verify(enrollment.Secret, code)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_Skew(t *testing.T) {
	now := fixedNow
	e := newEngine(&now)
	enrollment, err := e.Generate("ana@example.com")
	require.NoError(t, err)

	tests := []struct {
		name     string
		offset   time.Duration
		expected bool
	}{
		{"previous step", -otp.Period * time.Second, true},
		{"next step", otp.Period * time.Second, true},
		{"two steps back", -2 * otp.Period * time.Second, false},
		{"two steps ahead", 2 * otp.Period * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := totp.GenerateCode(enrollment.Secret, now.Add(tt.offset))
			require.NoError(t, err)

			ok, err := e.Verify(enrollment.Secret, code)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestVerify_WrongCode(t *testing.T) {
	now := fixedNow
	e := newEngine(&now)
	enrollment, err := e.Generate("ana@example.com")
	require.NoError(t, err)

	code, err := e.Code(enrollment.Secret)
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for _, input := range []string{wrong, "", "12345", "abcdef", "1234567"} {
		ok, err := e.Verify(enrollment.Secret, input)
		require.NoError(t, err)
		assert.False(t, ok, input)
	}
}

func TestVerify_InvalidSecret(t *testing.T) {
	now := fixedNow
	e := newEngine(&now)

	for _, secret := range []string{"", "   ", "not base32!!"} {
		_, err := e.Verify(secret, "123456")
		assert.ErrorIs(t, err, otp.ErrInvalidSecret, secret)
	}
}

func TestCode_MatchesVerify(t *testing.T) {
	now := fixedNow
	e := newEngine(&now)
	enrollment, err := e.Generate("ana@example.com")
	require.NoError(t, err)

	code, err := e.Code(enrollment.Secret)
	require.NoError(t, err)
	assert.Len(t, code, 6)

	ok, err := e.Verify(enrollment.Secret, code)
	require.NoError(t, err)
	assert.True(t, ok)
}
