package db

import (
	"context"
	"fmt"
	"time"
)

// TryAcquireTickLock claims the single-row scheduler lease for the given
// holder. It succeeds when the lease is free, expired, or already held by
// the same holder (re-entry after a crash). Returns false when another live
// holder owns it.
func (db *DB) TryAcquireTickLock(ctx context.Context, holder string, now time.Time, lease time.Duration) (bool, error) {
	query := `
		UPDATE tick_lock
		SET holder = ?, locked_until = ?
		WHERE id = 1 AND (holder = '' OR holder = ? OR locked_until IS NULL OR locked_until <= ?)
	`
	res, err := db.ExecContext(ctx, query, holder, now.UTC().Add(lease), holder, now.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to acquire tick lock: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ReleaseTickLock frees the lease if this holder still owns it. Best-effort:
// an expired lease taken over by another instance is left alone.
func (db *DB) ReleaseTickLock(ctx context.Context, holder string) error {
	query := `UPDATE tick_lock SET holder = '', locked_until = NULL WHERE id = 1 AND holder = ?`
	if _, err := db.ExecContext(ctx, query, holder); err != nil {
		return fmt.Errorf("failed to release tick lock: %w", err)
	}
	return nil
}
