package models

import (
	"testing"
	"time"
)

func TestProgressState(t *testing.T) {
	postID := int64(7)
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	p := &Progress{NextPosition: 1, NextSendAt: now}
	if got := p.State(5); got != ProgressStateIdle {
		t.Errorf("Expected idle, got %s", got)
	}

	p.PendingPostID = &postID
	if got := p.State(5); got != ProgressStatePending {
		t.Errorf("Expected pending, got %s", got)
	}

	// Active wins over a (transient) pending reference: the user can never
	// observe both at once.
	p.ActivePostID = &postID
	if got := p.State(5); got != ProgressStateActive {
		t.Errorf("Expected active, got %s", got)
	}

	p.PendingPostID = nil
	p.ActivePostID = nil
	p.NextPosition = 6
	if got := p.State(5); got != ProgressStateCompleted {
		t.Errorf("Expected completed, got %s", got)
	}
}

func TestProgressDue(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	p := &Progress{NextPosition: 3, NextSendAt: now}
	if !p.Due(5, now) {
		t.Error("Expected due at exactly next_send_at")
	}
	if p.Due(5, now.Add(-time.Second)) {
		t.Error("Expected not due before next_send_at")
	}
	if p.Due(2, now) {
		t.Error("Expected not due past the catalog end")
	}
}

func TestTaskRunOpen(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	r := &TaskRun{Until: now}
	if !r.Open(now) {
		t.Error("Expected run open at exactly until")
	}
	if r.Open(now.Add(time.Second)) {
		t.Error("Expected run closed after until")
	}
	if !r.Open(now.Add(-time.Hour)) {
		t.Error("Expected run open before until")
	}
}
