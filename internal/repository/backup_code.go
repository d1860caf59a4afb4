// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/storefront/internal/models"
	"github.com/vinovest/sqlx"
)

// CreateBackupCodes stores already encrypted codes with status not_used.
// Either all codes are stored or none.
func (r *Repository) CreateBackupCodes(ctx context.Context, userID int64, codes []string) error {
	return r.WithTx(ctx, func(tx *Repository) error {
		query := tx.rebind(`INSERT INTO backup_codes (user_id, code, status) VALUES (?, ?, ?)`)
		for _, code := range codes {
			if _, err := tx.q.ExecContext(ctx, query, userID, code, string(models.BackupCodeNotUsed)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetBackupCodes returns all backup codes of a user in creation order.
func (r *Repository) GetBackupCodes(ctx context.Context, userID int64) ([]models.BackupCode, error) {
	var codes []models.BackupCode
	err := sqlx.SelectContext(ctx, r.q, &codes, r.rebind(
		`SELECT id, user_id, code, status, created_at FROM backup_codes WHERE user_id = ? ORDER BY id`), userID)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// CountUnusedBackupCodes returns the number of backup codes still redeemable.
func (r *Repository) CountUnusedBackupCodes(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := sqlx.GetContext(ctx, r.q, &count, r.rebind(
		`SELECT COUNT(*) FROM backup_codes WHERE user_id = ? AND status = ?`), userID, string(models.BackupCodeNotUsed))
	return count, err
}

// MarkBackupCodeUsed flips a single code from not_used to used. It returns
// false when the code was already used, so only one caller can redeem it.
func (r *Repository) MarkBackupCodeUsed(ctx context.Context, codeID int64) (bool, error) {
	res, err := r.q.ExecContext(ctx, r.rebind(
		`UPDATE backup_codes SET status = ? WHERE id = ? AND status = ?`),
		string(models.BackupCodeUsed), codeID, string(models.BackupCodeNotUsed))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteBackupCodes deletes all backup codes for a user.
func (r *Repository) DeleteBackupCodes(ctx context.Context, userID int64) error {
	_, err := r.q.ExecContext(ctx, r.rebind(`DELETE FROM backup_codes WHERE user_id = ?`), userID)
	return err
}
