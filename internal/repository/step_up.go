// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"
)

// ConsumeStepUpToken records the token ID as spent. It returns false when the
// ID was consumed before. Expired entries are purged on every call.
func (r *Repository) ConsumeStepUpToken(ctx context.Context, jti string, userID int64, expiresAt time.Time) (bool, error) {
	var consumed bool
	err := r.WithTx(ctx, func(tx *Repository) error {
		if _, err := tx.q.ExecContext(ctx, tx.rebind(
			`DELETE FROM step_up_tokens WHERE expires_at < ?`), time.Now().Unix()); err != nil {
			return err
		}

		res, err := tx.q.ExecContext(ctx, tx.rebind(
			`INSERT INTO step_up_tokens (jti, user_id, expires_at) VALUES (?, ?, ?) ON CONFLICT (jti) DO NOTHING`),
			jti, userID, expiresAt.Unix())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		consumed = n == 1
		return nil
	})
	return consumed, err
}
