package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ldi/marathon/pkg/models"
)

const (
	minWindowMinutes   = 1
	maxWindowMinutes   = 60 * 24 * 7
	minIntervalMinutes = 1
	maxIntervalMinutes = 60 * 24 * 365
	minMaxResponses    = 1
	maxMaxResponses    = 50
)

// GetSettings returns the singleton settings row, creating it with defaults
// on first access.
func (db *DB) GetSettings(ctx context.Context) (*models.Settings, error) {
	return getSettings(ctx, db.DB)
}

func getSettings(ctx context.Context, exec executor) (*models.Settings, error) {
	query := `
		SELECT greeting_text, response_window_minutes, send_interval_minutes, max_responses_per_task, updated_at
		FROM app_settings
		WHERE id = 1
	`
	s := &models.Settings{}
	err := exec.QueryRowContext(ctx, query).Scan(
		&s.GreetingText, &s.ResponseWindowMinutes, &s.SendIntervalMinutes, &s.MaxResponsesPerTask, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		insert := `
			INSERT INTO app_settings (id, updated_at)
			VALUES (1, ?)
			RETURNING greeting_text, response_window_minutes, send_interval_minutes, max_responses_per_task, updated_at
		`
		err = exec.QueryRowContext(ctx, insert, time.Now().UTC()).Scan(
			&s.GreetingText, &s.ResponseWindowMinutes, &s.SendIntervalMinutes, &s.MaxResponsesPerTask, &s.UpdatedAt,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return s, nil
}

func (db *DB) SetGreetingText(ctx context.Context, text string) error {
	return db.setSetting(ctx, `greeting_text`, text)
}

// SetResponseWindowMinutes updates the response window. Already-open runs
// keep the window they were opened with.
func (db *DB) SetResponseWindowMinutes(ctx context.Context, minutes int) error {
	return db.setSetting(ctx, `response_window_minutes`, clamp(minutes, minWindowMinutes, maxWindowMinutes))
}

func (db *DB) SetSendIntervalMinutes(ctx context.Context, minutes int) error {
	return db.setSetting(ctx, `send_interval_minutes`, clamp(minutes, minIntervalMinutes, maxIntervalMinutes))
}

func (db *DB) SetMaxResponsesPerTask(ctx context.Context, n int) error {
	return db.setSetting(ctx, `max_responses_per_task`, clamp(n, minMaxResponses, maxMaxResponses))
}

func (db *DB) setSetting(ctx context.Context, column string, value any) error {
	if _, err := getSettings(ctx, db.DB); err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE app_settings SET %s = ?, updated_at = ? WHERE id = 1`, column)
	if _, err := db.ExecContext(ctx, query, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
