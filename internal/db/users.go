package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ldi/marathon/pkg/models"
)

// UpsertUser returns the user with the given Telegram id, creating the row
// on first contact.
func (db *DB) UpsertUser(ctx context.Context, telegramID int64) (*models.User, error) {
	u, err := db.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}

	query := `
		INSERT INTO users (telegram_id, is_admin)
		VALUES (?, 0)
		RETURNING id, telegram_id, is_admin, full_name, region, email, onboarded_at, created_at
	`
	return scanUser(db.QueryRowContext(ctx, query, telegramID))
}

func (db *DB) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return getUserByTelegramID(ctx, db.DB, telegramID)
}

func getUserByTelegramID(ctx context.Context, exec executor, telegramID int64) (*models.User, error) {
	query := `
		SELECT id, telegram_id, is_admin, full_name, region, email, onboarded_at, created_at
		FROM users
		WHERE telegram_id = ?
	`
	u, err := scanUser(exec.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return getUser(ctx, db.DB, id)
}

func getUser(ctx context.Context, exec executor, id int64) (*models.User, error) {
	query := `
		SELECT id, telegram_id, is_admin, full_name, region, email, onboarded_at, created_at
		FROM users
		WHERE id = ?
	`
	u, err := scanUser(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var isAdmin int
	var onboardedAt sql.NullTime
	err := row.Scan(&u.ID, &u.TelegramID, &isAdmin, &u.FullName, &u.Region, &u.Email, &onboardedAt, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.IsAdmin = isAdmin == 1
	if onboardedAt.Valid {
		t := onboardedAt.Time
		u.OnboardedAt = &t
	}
	return u, nil
}

func (db *DB) SetAdminFlag(ctx context.Context, telegramID int64, isAdmin bool) error {
	flag := 0
	if isAdmin {
		flag = 1
	}
	_, err := db.ExecContext(ctx, `UPDATE users SET is_admin = ? WHERE telegram_id = ?`, flag, telegramID)
	if err != nil {
		return fmt.Errorf("failed to set admin flag: %w", err)
	}
	return nil
}

func (db *DB) SetFullName(ctx context.Context, userID int64, fullName string) error {
	return db.setUserField(ctx, userID, "full_name", fullName)
}

func (db *DB) SetRegion(ctx context.Context, userID int64, region string) error {
	return db.setUserField(ctx, userID, "region", region)
}

func (db *DB) SetEmail(ctx context.Context, userID int64, email string) error {
	return db.setUserField(ctx, userID, "email", email)
}

func (db *DB) setUserField(ctx context.Context, userID int64, column, value string) error {
	query := fmt.Sprintf(`UPDATE users SET %s = ? WHERE id = ?`, column)
	if _, err := db.ExecContext(ctx, query, value, userID); err != nil {
		return fmt.Errorf("failed to update user %s: %w", column, err)
	}
	return nil
}

// MarkOnboarded records onboarding completion once; a second call is a no-op
// so the completion timestamp never moves.
func (db *DB) MarkOnboarded(ctx context.Context, userID int64, at time.Time) error {
	query := `UPDATE users SET onboarded_at = ? WHERE id = ? AND onboarded_at IS NULL`
	if _, err := db.ExecContext(ctx, query, at.UTC(), userID); err != nil {
		return fmt.Errorf("failed to mark user onboarded: %w", err)
	}
	return nil
}

func (db *DB) ListUsers(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT id, telegram_id, is_admin, full_name, region, email, onboarded_at, created_at
		FROM users
		ORDER BY id ASC
	`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		var isAdmin int
		var onboardedAt sql.NullTime
		if err := rows.Scan(&u.ID, &u.TelegramID, &isAdmin, &u.FullName, &u.Region, &u.Email, &onboardedAt, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.IsAdmin = isAdmin == 1
		if onboardedAt.Valid {
			t := onboardedAt.Time
			u.OnboardedAt = &t
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return users, nil
}

func (db *DB) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// DeleteUserByTelegramID removes the user and, via cascading foreign keys,
// their progress, runs and responses.
func (db *DB) DeleteUserByTelegramID(ctx context.Context, telegramID int64) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM users WHERE telegram_id = ?`, telegramID)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}
