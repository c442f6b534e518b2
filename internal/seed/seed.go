// Package seed loads the task catalog from a JSON file at startup.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ldi/marathon/internal/db"
	"github.com/ldi/marathon/pkg/models"
)

type File struct {
	Timezone string `json:"timezone"`
	Posts    []Post `json:"posts"`
}

type Post struct {
	Title     string `json:"title"`
	BodyHTML  string `json:"text_html"`
	MediaType string `json:"media_type"`
	FileID    string `json:"file_id"`
}

// FromJSON upserts posts by position from the seed file. Without wipe,
// operator-created posts past the seed length survive restarts; with wipe
// the catalog is replaced wholesale. Entries with an empty title are
// skipped. Returns the number of newly created posts.
func FromJSON(ctx context.Context, store *db.DB, path string, wipe bool) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}
	var file File
	if err := json.Unmarshal(raw, &file); err != nil {
		return 0, fmt.Errorf("failed to parse seed file: %w", err)
	}

	if wipe {
		if err := wipeCatalog(ctx, store); err != nil {
			return 0, err
		}
	}

	created := 0
	position := 0
	for _, entry := range file.Posts {
		if entry.Title == "" {
			continue
		}
		position++

		existing, err := store.GetPostByPosition(ctx, position)
		if err != nil {
			return created, err
		}
		if existing != nil {
			existing.Title = entry.Title
			existing.BodyHTML = entry.BodyHTML
			existing.MediaType = optional(entry.MediaType)
			existing.FileID = optional(entry.FileID)
			if err := store.UpdatePost(ctx, existing); err != nil {
				return created, err
			}
			continue
		}

		post := &models.Post{
			Title:     entry.Title,
			BodyHTML:  entry.BodyHTML,
			MediaType: optional(entry.MediaType),
			FileID:    optional(entry.FileID),
		}
		if err := store.CreatePost(ctx, post); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func wipeCatalog(ctx context.Context, store *db.DB) error {
	posts, err := store.ListPosts(ctx, 10000, 0)
	if err != nil {
		return err
	}
	// Delete from the tail so no compaction shuffling happens underneath.
	for i := len(posts) - 1; i >= 0; i-- {
		if _, err := store.DeletePost(ctx, posts[i].ID); err != nil {
			return err
		}
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
