package db

import (
	"context"
	"testing"

	"github.com/ldi/marathon/pkg/models"
)

func seedPosts(t *testing.T, db *DB, titles ...string) []*models.Post {
	t.Helper()
	ctx := context.Background()
	out := make([]*models.Post, 0, len(titles))
	for _, title := range titles {
		p := &models.Post{Title: title, BodyHTML: "<b>" + title + "</b>"}
		if err := db.CreatePost(ctx, p); err != nil {
			t.Fatalf("Failed to create post %q: %v", title, err)
		}
		out = append(out, p)
	}
	return out
}

func TestCreatePostAssignsDensePositions(t *testing.T) {
	db := newTestDB(t)
	posts := seedPosts(t, db, "one", "two", "three")

	for i, p := range posts {
		if p.Position != i+1 {
			t.Errorf("Expected position %d, got %d", i+1, p.Position)
		}
		if p.ID == 0 {
			t.Errorf("Expected ID to be set for post %d", i)
		}
	}

	count, err := db.CountPosts(context.Background())
	if err != nil {
		t.Fatalf("Failed to count posts: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 posts, got %d", count)
	}
}

func TestDeletePostCompactsPositions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	posts := seedPosts(t, db, "one", "two", "three", "four")

	deleted, err := db.DeletePost(ctx, posts[1].ID)
	if err != nil {
		t.Fatalf("Failed to delete post: %v", err)
	}
	if !deleted {
		t.Fatal("Expected delete to report true")
	}

	remaining, err := db.ListPosts(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Failed to list posts: %v", err)
	}
	if len(remaining) != 3 {
		t.Fatalf("Expected 3 posts, got %d", len(remaining))
	}
	wantTitles := []string{"one", "three", "four"}
	for i, p := range remaining {
		if p.Position != i+1 {
			t.Errorf("Expected dense position %d, got %d", i+1, p.Position)
		}
		if p.Title != wantTitles[i] {
			t.Errorf("Expected title %q at position %d, got %q", wantTitles[i], i+1, p.Title)
		}
	}

	deleted, err = db.DeletePost(ctx, posts[1].ID)
	if err != nil {
		t.Fatalf("Second delete failed: %v", err)
	}
	if deleted {
		t.Error("Expected delete of missing post to report false")
	}
}

func TestMovePostSwapsNeighbors(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	posts := seedPosts(t, db, "one", "two", "three")

	moved, err := db.MovePost(ctx, posts[2].ID, "up")
	if err != nil {
		t.Fatalf("Failed to move post: %v", err)
	}
	if !moved {
		t.Fatal("Expected move to report true")
	}

	got, err := db.ListPosts(ctx, 10, 0)
	if err != nil {
		t.Fatalf("Failed to list posts: %v", err)
	}
	wantTitles := []string{"one", "three", "two"}
	for i, p := range got {
		if p.Title != wantTitles[i] {
			t.Errorf("Expected %q at position %d, got %q", wantTitles[i], i+1, p.Title)
		}
	}
}

func TestMovePostAtEdges(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	posts := seedPosts(t, db, "one", "two")

	moved, err := db.MovePost(ctx, posts[0].ID, "up")
	if err != nil {
		t.Fatalf("Move up at top failed: %v", err)
	}
	if moved {
		t.Error("Expected move up at top to be a no-op")
	}

	moved, err = db.MovePost(ctx, posts[1].ID, "down")
	if err != nil {
		t.Fatalf("Move down at bottom failed: %v", err)
	}
	if moved {
		t.Error("Expected move down at bottom to be a no-op")
	}

	if _, err := db.MovePost(ctx, posts[0].ID, "sideways"); err == nil {
		t.Error("Expected error for unknown direction")
	}
}

func TestGetPostByPosition(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedPosts(t, db, "one", "two")

	p, err := db.GetPostByPosition(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to get post by position: %v", err)
	}
	if p == nil || p.Title != "two" {
		t.Errorf("Expected post 'two', got %+v", p)
	}

	p, err = db.GetPostByPosition(ctx, 5)
	if err != nil {
		t.Fatalf("Lookup of missing position failed: %v", err)
	}
	if p != nil {
		t.Errorf("Expected nil for missing position, got %+v", p)
	}
}
