package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ldi/marathon/internal/db"
	"github.com/ldi/marathon/pkg/models"
)

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init database: %v", err)
	}
	return store
}

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "posts.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write seed file: %v", err)
	}
	return path
}

func TestFromJSONCreatesCatalog(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()
	path := writeSeedFile(t, `{
		"timezone": "Europe/Moscow",
		"posts": [
			{"title": "Day one", "text_html": "<b>go</b>", "media_type": "photo", "file_id": "abc"},
			{"title": "", "text_html": "skipped"},
			{"title": "Day two", "text_html": "more"}
		]
	}`)

	created, err := FromJSON(ctx, store, path, false)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if created != 2 {
		t.Errorf("Expected 2 created posts, got %d", created)
	}

	posts, err := store.ListPosts(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Failed to list posts: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("Expected 2 posts (empty title skipped), got %d", len(posts))
	}
	if posts[0].Title != "Day one" || posts[1].Title != "Day two" {
		t.Errorf("Unexpected titles: %q, %q", posts[0].Title, posts[1].Title)
	}
	if posts[0].MediaType == nil || *posts[0].MediaType != "photo" {
		t.Errorf("Expected photo media, got %+v", posts[0].MediaType)
	}
	if posts[1].MediaType != nil {
		t.Errorf("Expected no media on second post, got %+v", posts[1].MediaType)
	}
}

func TestFromJSONUpdatesInPlace(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()

	first := writeSeedFile(t, `{"posts": [{"title": "Old title", "text_html": "old"}]}`)
	if _, err := FromJSON(ctx, store, first, false); err != nil {
		t.Fatalf("First seed failed: %v", err)
	}

	// An operator-created post past the seed length must survive a re-seed.
	extra := &models.Post{Title: "Operator extra", BodyHTML: "extra"}
	if err := store.CreatePost(ctx, extra); err != nil {
		t.Fatalf("Failed to create extra post: %v", err)
	}

	second := writeSeedFile(t, `{"posts": [{"title": "New title", "text_html": "new"}]}`)
	created, err := FromJSON(ctx, store, second, false)
	if err != nil {
		t.Fatalf("Second seed failed: %v", err)
	}
	if created != 0 {
		t.Errorf("Expected 0 created on re-seed, got %d", created)
	}

	posts, err := store.ListPosts(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Failed to list posts: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("Expected 2 posts after re-seed, got %d", len(posts))
	}
	if posts[0].Title != "New title" {
		t.Errorf("Expected updated title, got %q", posts[0].Title)
	}
	if posts[1].Title != "Operator extra" {
		t.Errorf("Expected operator post kept, got %q", posts[1].Title)
	}
}

func TestFromJSONWipe(t *testing.T) {
	store := newTestDB(t)
	ctx := context.Background()

	extra := &models.Post{Title: "Operator extra", BodyHTML: "extra"}
	if err := store.CreatePost(ctx, extra); err != nil {
		t.Fatalf("Failed to create extra post: %v", err)
	}

	path := writeSeedFile(t, `{"posts": [{"title": "Only task", "text_html": "x"}]}`)
	created, err := FromJSON(ctx, store, path, true)
	if err != nil {
		t.Fatalf("Wipe seed failed: %v", err)
	}
	if created != 1 {
		t.Errorf("Expected 1 created post, got %d", created)
	}

	posts, err := store.ListPosts(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Failed to list posts: %v", err)
	}
	if len(posts) != 1 || posts[0].Title != "Only task" {
		t.Errorf("Expected catalog replaced wholesale, got %+v", posts)
	}
}

func TestFromJSONMissingFile(t *testing.T) {
	store := newTestDB(t)

	if _, err := FromJSON(context.Background(), store, "/nonexistent/posts.json", false); err == nil {
		t.Error("Expected error for missing seed file")
	}
}
