package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ldi/marathon/pkg/models"
)

const runColumns = `id, user_id, post_id, started_at, until, updated_at`

// CreateTaskRun opens a new engagement window for (user, post).
func (db *DB) CreateTaskRun(ctx context.Context, r *models.TaskRun) error {
	return createTaskRun(ctx, db.DB, r)
}

func createTaskRun(ctx context.Context, exec executor, r *models.TaskRun) error {
	query := `
		INSERT INTO task_runs (user_id, post_id, started_at, until, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`
	err := exec.QueryRowContext(ctx, query,
		r.UserID, r.PostID, r.StartedAt.UTC(), r.Until.UTC(), time.Now().UTC(),
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("failed to create task run: %w", err)
	}
	return nil
}

func (db *DB) GetRun(ctx context.Context, id int64) (*models.TaskRun, error) {
	return getRun(ctx, db.DB, id)
}

func getRun(ctx context.Context, exec executor, id int64) (*models.TaskRun, error) {
	query := `SELECT ` + runColumns + ` FROM task_runs WHERE id = ?`
	r, err := scanRun(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// LatestOpenRun returns the most recently opened run across all posts that
// is still open at now, or nil.
func (db *DB) LatestOpenRun(ctx context.Context, userID int64, now time.Time) (*models.TaskRun, error) {
	return latestOpenRun(ctx, db.DB, userID, now)
}

func latestOpenRun(ctx context.Context, exec executor, userID int64, now time.Time) (*models.TaskRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM task_runs
		WHERE user_id = ? AND until >= ?
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`
	r, err := scanRun(exec.QueryRowContext(ctx, query, userID, now.UTC()))
	if err != nil {
		return nil, fmt.Errorf("failed to get latest open run: %w", err)
	}
	return r, nil
}

// LatestOpenRunForPost returns the open run for (user, post) at now, or nil.
func (db *DB) LatestOpenRunForPost(ctx context.Context, userID, postID int64, now time.Time) (*models.TaskRun, error) {
	return latestOpenRunForPost(ctx, db.DB, userID, postID, now)
}

func latestOpenRunForPost(ctx context.Context, exec executor, userID, postID int64, now time.Time) (*models.TaskRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM task_runs
		WHERE user_id = ? AND post_id = ? AND until >= ?
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`
	r, err := scanRun(exec.QueryRowContext(ctx, query, userID, postID, now.UTC()))
	if err != nil {
		return nil, fmt.Errorf("failed to get open run for post: %w", err)
	}
	return r, nil
}

// LatestRunForPost returns the most recent run for (user, post) regardless
// of whether it is still open. The scheduler uses it to decide when the
// final task's window has passed.
func (db *DB) LatestRunForPost(ctx context.Context, userID, postID int64) (*models.TaskRun, error) {
	return latestRunForPost(ctx, db.DB, userID, postID)
}

func latestRunForPost(ctx context.Context, exec executor, userID, postID int64) (*models.TaskRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM task_runs
		WHERE user_id = ? AND post_id = ?
		ORDER BY until DESC, id DESC
		LIMIT 1
	`
	r, err := scanRun(exec.QueryRowContext(ctx, query, userID, postID))
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run for post: %w", err)
	}
	return r, nil
}

func scanRun(row *sql.Row) (*models.TaskRun, error) {
	r := &models.TaskRun{}
	err := row.Scan(&r.ID, &r.UserID, &r.PostID, &r.StartedAt, &r.Until, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// CloseRun moves the run's deadline strictly into the past so every
// subsequent "now" comparison treats it as closed. Runs are never deleted;
// the response history stays.
func (db *DB) CloseRun(ctx context.Context, runID int64, now time.Time) error {
	return closeRun(ctx, db.DB, runID, now)
}

func closeRun(ctx context.Context, exec executor, runID int64, now time.Time) error {
	closedUntil := now.UTC().Add(-time.Second)
	query := `UPDATE task_runs SET until = ?, updated_at = ? WHERE id = ?`
	if _, err := exec.ExecContext(ctx, query, closedUntil, time.Now().UTC(), runID); err != nil {
		return fmt.Errorf("failed to close run: %w", err)
	}
	return nil
}

// DeleteRunsForUser removes all runs and responses for a user. Used by the
// administrative reset so stale last-day runs cannot re-trigger the
// completion prompt.
func (db *DB) DeleteRunsForUser(ctx context.Context, userID int64) error {
	return deleteRunsForUser(ctx, db.DB, userID)
}

func deleteRunsForUser(ctx context.Context, exec executor, userID int64) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM responses WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete responses: %w", err)
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM task_runs WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete task runs: %w", err)
	}
	return nil
}

// AddResponse appends a response with the next dense sequence number for
// its run.
func (db *DB) AddResponse(ctx context.Context, r *models.Response) error {
	return addResponse(ctx, db.DB, r)
}

func addResponse(ctx context.Context, exec executor, r *models.Response) error {
	var maxSeq sql.NullInt64
	err := exec.QueryRowContext(ctx, `SELECT MAX(seq) FROM responses WHERE run_id = ?`, r.RunID).Scan(&maxSeq)
	if err != nil {
		return fmt.Errorf("failed to get max seq: %w", err)
	}
	r.Seq = int(maxSeq.Int64) + 1

	query := `
		INSERT INTO responses (run_id, user_id, post_id, seq, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id, created_at
	`
	err = exec.QueryRowContext(ctx, query,
		r.RunID, r.UserID, r.PostID, r.Seq, r.Text, time.Now().UTC(),
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add response: %w", err)
	}
	return nil
}

func (db *DB) CountResponsesForRun(ctx context.Context, runID int64) (int, error) {
	return countResponsesForRun(ctx, db.DB, runID)
}

func countResponsesForRun(ctx context.Context, exec executor, runID int64) (int, error) {
	var count int
	err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM responses WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count responses: %w", err)
	}
	return count, nil
}

// SummaryForUser returns one entry per post in catalog order, carrying the
// responses of the user's latest run for that post (earlier runs are
// history, not summary material).
func (db *DB) SummaryForUser(ctx context.Context, userID int64) ([]*models.PostSummary, error) {
	posts, err := db.ListPosts(ctx, 10000, 0)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}

	query := `
		SELECT r.post_id, r.seq, r.text, r.created_at, r.id, r.run_id
		FROM responses r
		JOIN task_runs tr ON tr.id = r.run_id
		WHERE r.user_id = ?
		  AND tr.id = (
			SELECT id FROM task_runs
			WHERE user_id = tr.user_id AND post_id = tr.post_id
			ORDER BY started_at DESC, id DESC
			LIMIT 1
		  )
		ORDER BY r.post_id ASC, r.seq ASC, r.id ASC
	`
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary responses: %w", err)
	}
	defer rows.Close()

	byPost := map[int64][]*models.Response{}
	for rows.Next() {
		r := &models.Response{UserID: userID}
		if err := rows.Scan(&r.PostID, &r.Seq, &r.Text, &r.CreatedAt, &r.ID, &r.RunID); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		byPost[r.PostID] = append(byPost[r.PostID], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	out := make([]*models.PostSummary, 0, len(posts))
	for _, p := range posts {
		out = append(out, &models.PostSummary{Post: p, Responses: byPost[p.ID]})
	}
	return out, nil
}
