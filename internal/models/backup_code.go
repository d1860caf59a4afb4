// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// BackupCodeStatus is the lifecycle state of a backup code.
type BackupCodeStatus string

const (
	BackupCodeNotUsed BackupCodeStatus = "not_used"
	BackupCodeUsed    BackupCodeStatus = "used"
)

// BackupCode stores an encrypted single-use recovery code.
type BackupCode struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64            `db:"id" json:"id"`
	UserID    int64            `db:"user_id" json:"user_id"`
	Code      string           `db:"code" json:"-"`
	Status    BackupCodeStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// Unused reports whether the code can still be redeemed.
func (c *BackupCode) Unused() bool {
	return c.Status == BackupCodeNotUsed
}
