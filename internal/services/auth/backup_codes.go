// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/storefront/internal/repository"
	"codeberg.org/oliverandrich/storefront/internal/services/recovery"
)

// RecoveryResult is returned after signing in with a backup code.
type RecoveryResult struct {
	Token          string
	RemainingCodes int
}

// GenerateBackupCodes returns a fresh batch of plaintext backup codes.
func (s *Service) GenerateBackupCodes() ([]string, error) {
	codes, err := s.recovery.GenerateCodes(recovery.CodeCount)
	if err != nil {
		return nil, fmt.Errorf("generate backup codes: %w", err)
	}
	return codes, nil
}

// PersistBackupCodes encrypts and stores codes for the user. Either all codes
// are stored or none.
func (s *Service) PersistBackupCodes(ctx context.Context, userID int64, codes []string) error {
	encrypted, err := s.encryptCodes(codes)
	if err != nil {
		return err
	}
	if err := s.repo.CreateBackupCodes(ctx, userID, encrypted); err != nil {
		return storeError("store backup codes", err)
	}
	return nil
}

// RegenerateBackupCodes replaces all backup codes of a user with a new batch.
func (s *Service) RegenerateBackupCodes(ctx context.Context, userID int64) ([]string, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled() {
		return nil, ErrTwoFactorNotEnabled
	}

	codes, err := s.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}
	encrypted, err := s.encryptCodes(codes)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.DeleteBackupCodes(ctx, user.ID); err != nil {
			return err
		}
		return tx.CreateBackupCodes(ctx, user.ID, encrypted)
	})
	if err != nil {
		return nil, storeError("regenerate backup codes", err)
	}

	slog.Info("backup_codes_regenerated", "user_id", user.ID)
	return codes, nil
}

// RecoveryLogin signs a user in with a backup code and spends it.
func (s *Service) RecoveryLogin(ctx context.Context, email, code string) (*RecoveryResult, error) {
	email = strings.TrimSpace(email)
	if err := requireFields([2]string{"email", email}, [2]string{"recoveryCode", code}); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Warn("recovery_login_failed", "email", email, "reason", "user_not_found")
			return nil, ErrUserNotFound
		}
		return nil, storeError("get user", err)
	}

	codes, err := s.repo.GetBackupCodes(ctx, user.ID)
	if err != nil {
		return nil, storeError("get backup codes", err)
	}

	candidate := []byte(recovery.NormalizeCode(code))
	unused := 0
	var matchID int64
	for i := range codes {
		if !codes[i].Unused() {
			continue
		}
		unused++
		if matchID != 0 {
			continue
		}
		plaintext, err := s.cipher.Decrypt(codes[i].Code)
		if err != nil {
			return nil, decryptError(err)
		}
		if subtle.ConstantTimeCompare(candidate, []byte(plaintext)) == 1 {
			matchID = codes[i].ID
		}
	}

	if matchID == 0 {
		slog.Warn("recovery_login_failed", "user_id", user.ID, "reason", "invalid_code")
		return nil, ErrInvalidRecoveryCode
	}

	spent, err := s.repo.MarkBackupCodeUsed(ctx, matchID)
	if err != nil {
		return nil, storeError("mark backup code used", err)
	}
	if !spent {
		slog.Warn("recovery_login_failed", "user_id", user.ID, "reason", "code_already_used")
		return nil, ErrInvalidRecoveryCode
	}

	signed, err := s.tokens.IssueRecoverySession(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	remaining := unused - 1
	slog.Info("recovery_code_used", "user_id", user.ID, "remaining", remaining)
	s.notify("recovery_code_used", func(n Notifier) error {
		return n.RecoveryCodeUsed(ctx, user.Email, remaining)
	})

	return &RecoveryResult{Token: signed, RemainingCodes: remaining}, nil
}

func (s *Service) encryptCodes(codes []string) ([]string, error) {
	encrypted := make([]string, len(codes))
	for i, code := range codes {
		c, err := s.cipher.Encrypt(code)
		if err != nil {
			return nil, fmt.Errorf("encrypt backup code: %w", err)
		}
		encrypted[i] = c
	}
	return encrypted, nil
}
