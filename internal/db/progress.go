package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ldi/marathon/pkg/models"
)

const progressColumns = `id, user_id, next_position, next_send_at, pending_post_id,
	active_post_id, active_started_at, active_until, summary_prompt_sent, updated_at`

// GetOrCreateProgress returns the user's progress record, creating one at
// position 1 with the given first send time if none exists.
func (db *DB) GetOrCreateProgress(ctx context.Context, userID int64, nextSendAt time.Time) (*models.Progress, error) {
	return getOrCreateProgress(ctx, db.DB, userID, nextSendAt)
}

func getOrCreateProgress(ctx context.Context, exec executor, userID int64, nextSendAt time.Time) (*models.Progress, error) {
	p, err := getProgress(ctx, exec, userID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	query := `
		INSERT INTO progress (user_id, next_position, next_send_at, updated_at)
		VALUES (?, 1, ?, ?)
		RETURNING ` + progressColumns
	p, err = scanProgress(exec.QueryRowContext(ctx, query, userID, nextSendAt.UTC(), time.Now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("failed to create progress: %w", err)
	}
	return p, nil
}

func (db *DB) GetProgress(ctx context.Context, userID int64) (*models.Progress, error) {
	p, err := getProgress(ctx, db.DB, userID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func getProgress(ctx context.Context, exec executor, userID int64) (*models.Progress, error) {
	query := `SELECT ` + progressColumns + ` FROM progress WHERE user_id = ?`
	p, err := scanProgress(exec.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return p, nil
}

func scanProgress(row *sql.Row) (*models.Progress, error) {
	p := &models.Progress{}
	var pendingPost, activePost sql.NullInt64
	var startedAt, until sql.NullTime
	var promptSent int
	err := row.Scan(
		&p.ID, &p.UserID, &p.NextPosition, &p.NextSendAt, &pendingPost,
		&activePost, &startedAt, &until, &promptSent, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if pendingPost.Valid {
		p.PendingPostID = &pendingPost.Int64
	}
	if activePost.Valid {
		p.ActivePostID = &activePost.Int64
	}
	if startedAt.Valid {
		t := startedAt.Time
		p.ActiveStartedAt = &t
	}
	if until.Valid {
		t := until.Time
		p.ActiveUntil = &t
	}
	p.SummaryPromptSent = promptSent == 1
	return p, nil
}

// ListOnboardedProgress returns progress records for users who completed
// onboarding, ordered by next_send_at ascending. The order is a scheduling
// nicety; each record is processed independently by the tick.
func (db *DB) ListOnboardedProgress(ctx context.Context) ([]*models.Progress, error) {
	query := `
		SELECT p.id, p.user_id, p.next_position, p.next_send_at, p.pending_post_id,
			p.active_post_id, p.active_started_at, p.active_until, p.summary_prompt_sent, p.updated_at
		FROM progress p
		JOIN users u ON u.id = p.user_id
		WHERE u.onboarded_at IS NOT NULL
		ORDER BY p.next_send_at ASC, p.id ASC
	`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var out []*models.Progress
	for rows.Next() {
		p := &models.Progress{}
		var pendingPost, activePost sql.NullInt64
		var startedAt, until sql.NullTime
		var promptSent int
		err := rows.Scan(
			&p.ID, &p.UserID, &p.NextPosition, &p.NextSendAt, &pendingPost,
			&activePost, &startedAt, &until, &promptSent, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		if pendingPost.Valid {
			p.PendingPostID = &pendingPost.Int64
		}
		if activePost.Valid {
			p.ActivePostID = &activePost.Int64
		}
		if startedAt.Valid {
			t := startedAt.Time
			p.ActiveStartedAt = &t
		}
		if until.Valid {
			t := until.Time
			p.ActiveUntil = &t
		}
		p.SummaryPromptSent = promptSent == 1
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// UpdateProgress persists all mutable fields of a progress record.
func (db *DB) UpdateProgress(ctx context.Context, p *models.Progress) error {
	return updateProgress(ctx, db.DB, p)
}

func updateProgress(ctx context.Context, exec executor, p *models.Progress) error {
	promptSent := 0
	if p.SummaryPromptSent {
		promptSent = 1
	}
	var startedAt, until any
	if p.ActiveStartedAt != nil {
		startedAt = p.ActiveStartedAt.UTC()
	}
	if p.ActiveUntil != nil {
		until = p.ActiveUntil.UTC()
	}

	query := `
		UPDATE progress
		SET next_position = ?, next_send_at = ?, pending_post_id = ?, active_post_id = ?,
			active_started_at = ?, active_until = ?, summary_prompt_sent = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := exec.ExecContext(ctx, query,
		p.NextPosition, p.NextSendAt.UTC(), p.PendingPostID, p.ActivePostID,
		startedAt, until, promptSent, time.Now().UTC(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

// ResetProgress rewinds a user to position 1 with the given first send time,
// clearing the pending/active item and the summary prompt flag.
func (db *DB) ResetProgress(ctx context.Context, userID int64, nextSendAt time.Time) error {
	return resetProgress(ctx, db.DB, userID, nextSendAt)
}

func resetProgress(ctx context.Context, exec executor, userID int64, nextSendAt time.Time) error {
	p, err := getOrCreateProgress(ctx, exec, userID, nextSendAt)
	if err != nil {
		return err
	}
	p.NextPosition = 1
	p.NextSendAt = nextSendAt.UTC()
	p.PendingPostID = nil
	p.ActivePostID = nil
	p.ActiveStartedAt = nil
	p.ActiveUntil = nil
	p.SummaryPromptSent = false
	return updateProgress(ctx, exec, p)
}
