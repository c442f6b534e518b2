package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ldi/marathon/pkg/models"
)

func (db *DB) CountPosts(ctx context.Context) (int, error) {
	return countPosts(ctx, db.DB)
}

func countPosts(ctx context.Context, exec executor) (int, error) {
	var count int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

func (db *DB) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	return getPost(ctx, db.DB, id)
}

func getPost(ctx context.Context, exec executor, id int64) (*models.Post, error) {
	query := `
		SELECT id, position, title, body_html, media_type, file_id, updated_at
		FROM posts
		WHERE id = ?
	`
	p, err := scanPost(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return p, nil
}

func (db *DB) GetPostByPosition(ctx context.Context, position int) (*models.Post, error) {
	return getPostByPosition(ctx, db.DB, position)
}

func getPostByPosition(ctx context.Context, exec executor, position int) (*models.Post, error) {
	query := `
		SELECT id, position, title, body_html, media_type, file_id, updated_at
		FROM posts
		WHERE position = ?
	`
	p, err := scanPost(exec.QueryRowContext(ctx, query, position))
	if err != nil {
		return nil, fmt.Errorf("failed to get post by position: %w", err)
	}
	return p, nil
}

func scanPost(row *sql.Row) (*models.Post, error) {
	p := &models.Post{}
	var mediaType, fileID sql.NullString
	err := row.Scan(&p.ID, &p.Position, &p.Title, &p.BodyHTML, &mediaType, &fileID, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if mediaType.Valid {
		p.MediaType = &mediaType.String
	}
	if fileID.Valid {
		p.FileID = &fileID.String
	}
	return p, nil
}

// ListPosts returns posts ordered by position.
func (db *DB) ListPosts(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	query := `
		SELECT id, position, title, body_html, media_type, file_id, updated_at
		FROM posts
		ORDER BY position ASC, id ASC
		LIMIT ? OFFSET ?
	`
	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		p := &models.Post{}
		var mediaType, fileID sql.NullString
		if err := rows.Scan(&p.ID, &p.Position, &p.Title, &p.BodyHTML, &mediaType, &fileID, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		if mediaType.Valid {
			p.MediaType = &mediaType.String
		}
		if fileID.Valid {
			p.FileID = &fileID.String
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return posts, nil
}

// CreatePost appends a post at position max+1 so the sequence stays dense.
func (db *DB) CreatePost(ctx context.Context, p *models.Post) error {
	return db.WithTx(ctx, func(tx *Tx) error {
		var maxPos sql.NullInt64
		if err := tx.tx.QueryRowContext(ctx, `SELECT MAX(position) FROM posts`).Scan(&maxPos); err != nil {
			return fmt.Errorf("failed to get max position: %w", err)
		}

		query := `
			INSERT INTO posts (position, title, body_html, media_type, file_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id, position, updated_at
		`
		err := tx.tx.QueryRowContext(ctx, query,
			maxPos.Int64+1, p.Title, p.BodyHTML, p.MediaType, p.FileID, time.Now().UTC(),
		).Scan(&p.ID, &p.Position, &p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create post: %w", err)
		}
		return nil
	})
}

// UpdatePost overwrites content fields; position is never touched here.
func (db *DB) UpdatePost(ctx context.Context, p *models.Post) error {
	query := `
		UPDATE posts
		SET title = ?, body_html = ?, media_type = ?, file_id = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query, p.Title, p.BodyHTML, p.MediaType, p.FileID, time.Now().UTC(), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("post not found: %d", p.ID)
	}
	return nil
}

// DeletePost removes a post and shifts everything after it down one
// position, keeping the 1..N sequence dense. The scheduler depends on
// density: next_position > COUNT(posts) is its only terminal signal.
func (db *DB) DeletePost(ctx context.Context, id int64) (bool, error) {
	deleted := false
	err := db.WithTx(ctx, func(tx *Tx) error {
		p, err := getPost(ctx, tx.tx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return nil
		}

		if _, err := tx.tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete post: %w", err)
		}
		_, err = tx.tx.ExecContext(ctx,
			`UPDATE posts SET position = position - 1, updated_at = ? WHERE position > ?`,
			time.Now().UTC(), p.Position,
		)
		if err != nil {
			return fmt.Errorf("failed to compact positions: %w", err)
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// MovePost swaps a post with its neighbor in the given direction ("up" or
// "down"). The swap is staged through position 0, which is outside 1..N, so
// the UNIQUE constraint never sees a transient duplicate.
func (db *DB) MovePost(ctx context.Context, id int64, direction string) (bool, error) {
	var delta int
	switch direction {
	case "up":
		delta = -1
	case "down":
		delta = 1
	default:
		return false, fmt.Errorf("unknown direction: %s", direction)
	}

	moved := false
	err := db.WithTx(ctx, func(tx *Tx) error {
		p, err := getPost(ctx, tx.tx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return nil
		}
		targetPos := p.Position + delta
		if targetPos < 1 {
			return nil
		}
		other, err := getPostByPosition(ctx, tx.tx, targetPos)
		if err != nil {
			return err
		}
		if other == nil {
			return nil
		}

		now := time.Now().UTC()
		steps := []struct {
			pos int
			id  int64
		}{
			{0, p.ID},
			{p.Position, other.ID},
			{targetPos, p.ID},
		}
		for _, s := range steps {
			if _, err := tx.tx.ExecContext(ctx,
				`UPDATE posts SET position = ?, updated_at = ? WHERE id = ?`, s.pos, now, s.id); err != nil {
				return fmt.Errorf("failed to swap positions: %w", err)
			}
		}
		moved = true
		return nil
	})
	return moved, err
}
