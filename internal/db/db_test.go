package db

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init database: %v", err)
	}
	return db
}

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("Expected journal_mode wal, got %s", mode)
	}

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("Failed to query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("Expected foreign_keys enabled (1), got %d", fk)
	}
}

func TestInitIdempotent(t *testing.T) {
	db := newTestDB(t)

	// Running the schema again must not fail or wipe data.
	ctx := context.Background()
	if _, err := db.UpsertUser(ctx, 100); err != nil {
		t.Fatalf("Failed to upsert user: %v", err)
	}
	if err := db.Init(ctx); err != nil {
		t.Fatalf("Second init failed: %v", err)
	}
	u, err := db.GetUserByTelegramID(ctx, 100)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if u == nil {
		t.Fatal("Expected user to survive re-init")
	}
}

func TestWithTxRollback(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	wantErr := fmt.Errorf("boom")
	err := db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.tx.ExecContext(ctx, "INSERT INTO users (telegram_id) VALUES (1)"); err != nil {
			return err
		}
		return wantErr
	})
	if err == nil {
		t.Fatal("Expected error from transaction")
	}

	count, err := db.CountUsers(ctx)
	if err != nil {
		t.Fatalf("Failed to count users: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected rollback to discard insert, got %d users", count)
	}
}

func TestWithTxCommit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.tx.ExecContext(ctx, "INSERT INTO users (telegram_id) VALUES (1)")
		return err
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	count, err := db.CountUsers(ctx)
	if err != nil {
		t.Fatalf("Failed to count users: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 user after commit, got %d", count)
	}
}
