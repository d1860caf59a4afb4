// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package otp generates TOTP secrets, enrollment QR codes and verifies codes.
package otp

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
)

const (
	// SecretSize is the number of random bytes behind a secret.
	SecretSize = 20
	// Period is the TOTP step in seconds.
	Period = 30
	// Skew is the number of steps accepted before and after the current one.
	Skew = 1
	// qrSize is the edge length of the enrollment QR image in pixels.
	qrSize = 256
)

// ErrInvalidSecret is returned when a secret is not valid base32.
var ErrInvalidSecret = errors.New("invalid TOTP secret")

// Enrollment is a freshly generated, not yet confirmed TOTP secret.
type Enrollment struct {
	Secret  string // base32, shown for manual entry
	URL     string // otpauth:// provisioning URI
	QRImage string // PNG data URL of URL
}

// Engine creates and verifies time-based one-time passwords.
type Engine struct {
	now    func() time.Time
	issuer string
}

// New creates an engine that labels secrets with issuer.
func New(issuer string) *Engine {
	return &Engine{issuer: issuer, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Generate creates a new secret for accountName together with its QR code.
func (e *Engine) Generate(accountName string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: accountName,
		Period:      Period,
		SecretSize:  SecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate TOTP secret: %w", err)
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("render QR code: %w", err)
	}

	return &Enrollment{
		Secret:  key.Secret(),
		URL:     key.URL(),
		QRImage: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}

// Verify checks code against secret, accepting one step of clock skew either way.
// A malformed secret is reported as ErrInvalidSecret, a malformed code is simply
// not valid.
func (e *Engine) Verify(secret, code string) (bool, error) {
	if strings.TrimSpace(secret) == "" {
		return false, ErrInvalidSecret
	}

	valid, err := totp.ValidateCustom(strings.TrimSpace(code), secret, e.now().UTC(), totp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		if errors.Is(err, otp.ErrValidateSecretInvalidBase32) {
			return false, ErrInvalidSecret
		}
		return false, nil
	}
	return valid, nil
}

// Code returns the current code for secret. Used by tests and tooling.
func (e *Engine) Code(secret string) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, e.now().UTC(), totp.ValidateOpts{
		Period:    Period,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSecret, err)
	}
	return code, nil
}
