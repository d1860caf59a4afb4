// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/storefront/internal/repository"
	"codeberg.org/oliverandrich/storefront/internal/services/otp"
)

// Enrollment is a pending TOTP secret. Nothing is stored until Confirm2FA.
type Enrollment struct {
	QRImage    string // PNG data URL of the provisioning URI
	TempSecret string // base32 secret for manual entry
}

// Generate2FA creates a new TOTP secret for the user.
func (s *Service) Generate2FA(ctx context.Context, userID int64) (*Enrollment, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.otp.Generate(user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate 2fa secret: %w", err)
	}

	return &Enrollment{QRImage: enrollment.QRImage, TempSecret: enrollment.Secret}, nil
}

// Confirm2FA enables two-factor authentication once code proves the user holds
// tempSecret. The encrypted secret and a fresh batch of backup codes are
// stored in one transaction; the plaintext codes are returned exactly once.
func (s *Service) Confirm2FA(ctx context.Context, userID int64, code, tempSecret string) ([]string, error) {
	if err := requireFields([2]string{"otp", code}, [2]string{"tempSecret", tempSecret}); err != nil {
		return nil, err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled() {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	ok, err := s.otp.Verify(tempSecret, code)
	if err != nil {
		if errors.Is(err, otp.ErrInvalidSecret) {
			return nil, ErrInvalidSecret
		}
		return nil, fmt.Errorf("verify code: %w", err)
	}
	if !ok {
		slog.Warn("two_factor_confirm_failed", "user_id", user.ID, "reason", "incorrect_code")
		return nil, ErrIncorrectCode
	}

	encryptedSecret, err := s.cipher.Encrypt(tempSecret)
	if err != nil {
		return nil, fmt.Errorf("encrypt secret: %w", err)
	}

	codes, err := s.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}
	encryptedCodes, err := s.encryptCodes(codes)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.SetTwoFactorSecret(ctx, user.ID, sql.NullString{String: encryptedSecret, Valid: true}); err != nil {
			return err
		}
		if err := tx.DeleteBackupCodes(ctx, user.ID); err != nil {
			return err
		}
		return tx.CreateBackupCodes(ctx, user.ID, encryptedCodes)
	})
	if err != nil {
		return nil, storeError("enable 2fa", err)
	}

	slog.Info("two_factor_enabled", "user_id", user.ID)
	return codes, nil
}

// Disable2FA clears the secret and deletes all backup codes in one transaction.
func (s *Service) Disable2FA(ctx context.Context, userID int64) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.SetTwoFactorSecret(ctx, user.ID, sql.NullString{}); err != nil {
			return err
		}
		return tx.DeleteBackupCodes(ctx, user.ID)
	})
	if err != nil {
		return storeError("disable 2fa", err)
	}

	slog.Info("two_factor_disabled", "user_id", user.ID)
	if user.TwoFactorEnabled() {
		s.notify("two_factor_disabled", func(n Notifier) error {
			return n.TwoFactorDisabled(ctx, user.Email)
		})
	}
	return nil
}
