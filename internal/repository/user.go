// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"

	"codeberg.org/oliverandrich/storefront/internal/models"
	"github.com/vinovest/sqlx"
)

const userColumns = `id, username, email, password_hash, address, two_factor_secret, created_at`

// CreateUser inserts a user without a two-factor secret and returns the stored row.
// A taken email yields ErrDuplicate.
func (r *Repository) CreateUser(ctx context.Context, username, email, passwordHash, address string) (*models.User, error) {
	var id int64
	err := sqlx.GetContext(ctx, r.q, &id, r.rebind(
		`INSERT INTO users (username, email, password_hash, address) VALUES (?, ?, ?, ?) RETURNING id`),
		username, email, passwordHash, address)
	if err != nil {
		return nil, wrapError(err)
	}
	return r.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, r.q, &user, r.rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, r.q, &user, r.rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), email)
	if err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// EmailExists checks if a user with the given email exists.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.q, &exists, r.rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`), email)
	return exists, err
}

// UpdateUserAddress replaces the shipping address of a user.
func (r *Repository) UpdateUserAddress(ctx context.Context, id int64, address string) error {
	res, err := r.q.ExecContext(ctx, r.rebind(`UPDATE users SET address = ? WHERE id = ?`), address, id)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// SetTwoFactorSecret stores the encrypted TOTP secret. An invalid secret clears it.
func (r *Repository) SetTwoFactorSecret(ctx context.Context, id int64, secret sql.NullString) error {
	res, err := r.q.ExecContext(ctx, r.rebind(`UPDATE users SET two_factor_secret = ? WHERE id = ?`), secret, id)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// ListUsers returns all users ordered by creation date (newest first).
func (r *Repository) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := sqlx.SelectContext(ctx, r.q, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// DeleteUser removes a user together with all backup codes.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	return r.WithTx(ctx, func(tx *Repository) error {
		if err := tx.DeleteBackupCodes(ctx, id); err != nil {
			return err
		}
		res, err := tx.q.ExecContext(ctx, tx.rebind(`DELETE FROM users WHERE id = ?`), id)
		if err != nil {
			return err
		}
		return rowsAffected(res)
	})
}
