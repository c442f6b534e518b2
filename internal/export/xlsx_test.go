package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ldi/marathon/internal/db"
	"github.com/ldi/marathon/pkg/models"
)

func TestBuildWorkbook(t *testing.T) {
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Failed to init database: %v", err)
	}

	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	u, err := store.UpsertUser(ctx, 42)
	if err != nil {
		t.Fatalf("Failed to upsert user: %v", err)
	}
	if err := store.SetFullName(ctx, u.ID, "Jo Smith"); err != nil {
		t.Fatalf("Failed to set name: %v", err)
	}

	post := &models.Post{Title: "First task", BodyHTML: "x"}
	if err := store.CreatePost(ctx, post); err != nil {
		t.Fatalf("Failed to create post: %v", err)
	}
	run := &models.TaskRun{UserID: u.ID, PostID: post.ID, StartedAt: now, Until: now.Add(time.Hour)}
	if err := store.CreateTaskRun(ctx, run); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}
	for _, text := range []string{"first answer", "second answer"} {
		resp := &models.Response{RunID: run.ID, UserID: u.ID, PostID: post.ID, Text: text}
		if err := store.AddResponse(ctx, resp); err != nil {
			t.Fatalf("Failed to add response: %v", err)
		}
	}

	data, err := BuildWorkbook(ctx, store)
	if err != nil {
		t.Fatalf("Failed to build workbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("Failed to read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Telegram ID" {
		t.Errorf("Unexpected header: %v", rows[0])
	}
	if rows[1][1] != "Jo Smith" || rows[1][5] != "First task" || rows[1][7] != "first answer" {
		t.Errorf("Unexpected first data row: %v", rows[1])
	}
	if rows[2][7] != "second answer" {
		t.Errorf("Unexpected second data row: %v", rows[2])
	}
}

func TestBuildWorkbookEmpty(t *testing.T) {
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Failed to init database: %v", err)
	}

	data, err := BuildWorkbook(ctx, store)
	if err != nil {
		t.Fatalf("Failed to build empty workbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("Failed to read rows: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected header only, got %d rows", len(rows))
	}
}
