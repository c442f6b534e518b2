package db

import (
	"context"
	"testing"
	"time"
)

func TestTickLockMutualExclusion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	got, err := db.TryAcquireTickLock(ctx, "instance-a", now, time.Minute)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if !got {
		t.Fatal("Expected first acquire to succeed")
	}

	got, err = db.TryAcquireTickLock(ctx, "instance-b", now.Add(time.Second), time.Minute)
	if err != nil {
		t.Fatalf("Contended acquire failed: %v", err)
	}
	if got {
		t.Error("Expected contended acquire to fail while lease held")
	}

	// The holder itself may re-enter (lease refresh).
	got, err = db.TryAcquireTickLock(ctx, "instance-a", now.Add(time.Second), time.Minute)
	if err != nil {
		t.Fatalf("Re-acquire failed: %v", err)
	}
	if !got {
		t.Error("Expected holder to re-acquire its own lease")
	}
}

func TestTickLockLeaseExpiry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	if _, err := db.TryAcquireTickLock(ctx, "instance-a", now, time.Minute); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	// A crashed holder's lease is taken over once it expires.
	got, err := db.TryAcquireTickLock(ctx, "instance-b", now.Add(2*time.Minute), time.Minute)
	if err != nil {
		t.Fatalf("Takeover acquire failed: %v", err)
	}
	if !got {
		t.Error("Expected expired lease to be taken over")
	}
}

func TestTickLockRelease(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	if _, err := db.TryAcquireTickLock(ctx, "instance-a", now, time.Minute); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	// Releasing under the wrong holder is a no-op.
	if err := db.ReleaseTickLock(ctx, "instance-b"); err != nil {
		t.Fatalf("Foreign release failed: %v", err)
	}
	got, err := db.TryAcquireTickLock(ctx, "instance-b", now.Add(time.Second), time.Minute)
	if err != nil {
		t.Fatalf("Acquire after foreign release failed: %v", err)
	}
	if got {
		t.Error("Expected foreign release to not free the lease")
	}

	if err := db.ReleaseTickLock(ctx, "instance-a"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	got, err = db.TryAcquireTickLock(ctx, "instance-b", now.Add(2*time.Second), time.Minute)
	if err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	if !got {
		t.Error("Expected acquire to succeed after release")
	}
}
