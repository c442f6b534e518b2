package db

import (
	"context"
	"testing"
	"time"

	"github.com/ldi/marathon/pkg/models"
)

func onboardedUser(t *testing.T, db *DB, telegramID int64, at time.Time) *models.User {
	t.Helper()
	ctx := context.Background()
	u, err := db.UpsertUser(ctx, telegramID)
	if err != nil {
		t.Fatalf("Failed to upsert user: %v", err)
	}
	if err := db.MarkOnboarded(ctx, u.ID, at); err != nil {
		t.Fatalf("Failed to mark onboarded: %v", err)
	}
	u.OnboardedAt = &at
	return u
}

func TestGetOrCreateProgress(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	u, err := db.UpsertUser(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to upsert user: %v", err)
	}

	p1, err := db.GetOrCreateProgress(ctx, u.ID, now)
	if err != nil {
		t.Fatalf("Failed to create progress: %v", err)
	}
	if p1.NextPosition != 1 {
		t.Errorf("Expected fresh pointer at 1, got %d", p1.NextPosition)
	}
	if !p1.NextSendAt.Equal(now) {
		t.Errorf("Expected next_send_at %v, got %v", now, p1.NextSendAt)
	}

	// Second call returns the same row, ignoring the new time.
	p2, err := db.GetOrCreateProgress(ctx, u.ID, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Second get-or-create failed: %v", err)
	}
	if p2.ID != p1.ID {
		t.Errorf("Expected same progress row, got IDs %d and %d", p1.ID, p2.ID)
	}
	if !p2.NextSendAt.Equal(now) {
		t.Errorf("Expected next_send_at unchanged, got %v", p2.NextSendAt)
	}
}

func TestListOnboardedProgress(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	early := onboardedUser(t, db, 1, now)
	late := onboardedUser(t, db, 2, now)

	// A user who never finished onboarding must not appear.
	stranger, err := db.UpsertUser(ctx, 3)
	if err != nil {
		t.Fatalf("Failed to upsert user: %v", err)
	}
	if _, err := db.GetOrCreateProgress(ctx, stranger.ID, now); err != nil {
		t.Fatalf("Failed to create progress: %v", err)
	}

	if _, err := db.GetOrCreateProgress(ctx, early.ID, now); err != nil {
		t.Fatalf("Failed to create progress: %v", err)
	}
	if _, err := db.GetOrCreateProgress(ctx, late.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("Failed to create progress: %v", err)
	}

	got, err := db.ListOnboardedProgress(ctx)
	if err != nil {
		t.Fatalf("Failed to list progress: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 progress rows, got %d", len(got))
	}
	if got[0].UserID != early.ID || got[1].UserID != late.ID {
		t.Errorf("Expected ordering by next_send_at, got users %d, %d", got[0].UserID, got[1].UserID)
	}
}

func TestResetProgress(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	u := onboardedUser(t, db, 42, now)
	posts := seedPosts(t, db, "one")

	prog, err := db.GetOrCreateProgress(ctx, u.ID, now)
	if err != nil {
		t.Fatalf("Failed to create progress: %v", err)
	}
	prog.NextPosition = 5
	prog.PendingPostID = &posts[0].ID
	prog.SummaryPromptSent = true
	if err := db.UpdateProgress(ctx, prog); err != nil {
		t.Fatalf("Failed to update progress: %v", err)
	}

	restart := now.Add(time.Minute)
	if err := db.ResetProgress(ctx, u.ID, restart); err != nil {
		t.Fatalf("Failed to reset progress: %v", err)
	}

	got, err := db.GetProgress(ctx, u.ID)
	if err != nil {
		t.Fatalf("Failed to get progress: %v", err)
	}
	if got.NextPosition != 1 {
		t.Errorf("Expected pointer back at 1, got %d", got.NextPosition)
	}
	if got.PendingPostID != nil || got.ActivePostID != nil {
		t.Error("Expected pending/active cleared after reset")
	}
	if got.SummaryPromptSent {
		t.Error("Expected summary flag cleared after reset")
	}
	if !got.NextSendAt.Equal(restart) {
		t.Errorf("Expected next_send_at %v, got %v", restart, got.NextSendAt)
	}
}
