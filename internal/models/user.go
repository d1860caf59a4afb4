// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"database/sql"
	"time"
)

// User is a storefront account. A non-null TwoFactorSecret holds the
// encrypted TOTP secret and means two-factor authentication is enabled.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID              int64          `db:"id" json:"id"`
	Username        string         `db:"username" json:"username"`
	Email           string         `db:"email" json:"email"`
	PasswordHash    string         `db:"password_hash" json:"-"`
	Address         string         `db:"address" json:"address"`
	TwoFactorSecret sql.NullString `db:"two_factor_secret" json:"-"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// TwoFactorEnabled reports whether the user has confirmed a TOTP secret.
func (u *User) TwoFactorEnabled() bool {
	return u.TwoFactorSecret.Valid && u.TwoFactorSecret.String != ""
}
