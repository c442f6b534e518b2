package engine

import (
	"context"

	"github.com/ldi/marathon/internal/db"
	"github.com/ldi/marathon/pkg/models"
)

// DueStatus reports the outcome of an on-demand delivery attempt.
type DueStatus string

const (
	DueSent           DueStatus = "sent"
	DueAlreadyPending DueStatus = "already_pending"
	DueAlreadyActive  DueStatus = "already_active"
	DueTooEarly       DueStatus = "too_early"
	DueCompleted      DueStatus = "completed"
	DueMissingPost    DueStatus = "missing_post"
	DueNotOnboarded   DueStatus = "not_onboarded"
)

// NotifyFunc delivers a task notification. It runs outside any transaction;
// state only advances after it returns nil.
type NotifyFunc func(post *models.Post) error

// PushDueTask delivers the user's next task immediately if it is due,
// honoring the same transitions as the scheduler tick. Used for the
// one-time push right after onboarding. A user at position 1 gets the first
// task regardless of next_send_at so onboarding flows straight into the
// program. Returns the already-notified post for DueAlreadyPending so the
// caller can repeat the prompt.
func (e *Engine) PushDueTask(ctx context.Context, user *models.User, notify NotifyFunc) (DueStatus, *models.Post, error) {
	if !user.Onboarded() {
		return DueNotOnboarded, nil, nil
	}

	now := e.now()
	nowMin := FloorToMinute(now)

	prog, err := e.store.GetOrCreateProgress(ctx, user.ID, nowMin)
	if err != nil {
		return "", nil, err
	}

	// First task fast path: ignore a future next_send_at left over from
	// record creation.
	if prog.NextPosition == 1 && prog.NextSendAt.After(nowMin) {
		prog.NextSendAt = nowMin
		if err := e.store.UpdateProgress(ctx, prog); err != nil {
			return "", nil, err
		}
	}

	taskCount, err := e.store.CountPosts(ctx)
	if err != nil {
		return "", nil, err
	}

	switch prog.State(taskCount) {
	case models.ProgressStatePending:
		post, err := e.store.GetPost(ctx, *prog.PendingPostID)
		if err != nil {
			return "", nil, err
		}
		return DueAlreadyPending, post, nil
	case models.ProgressStateActive:
		return DueAlreadyActive, nil, nil
	case models.ProgressStateCompleted:
		return DueCompleted, nil, nil
	}
	if !prog.Due(taskCount, nowMin) {
		return DueTooEarly, nil, nil
	}

	post, err := e.store.GetPostByPosition(ctx, prog.NextPosition)
	if err != nil {
		return "", nil, err
	}
	if post == nil {
		return DueMissingPost, nil, nil
	}

	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		return "", nil, err
	}

	// Deliver first, advance after: a failed send leaves the pointer where
	// it was so the scheduler retries.
	if err := notify(post); err != nil {
		return "", nil, err
	}

	expected := prog.NextPosition
	err = e.store.WithTx(ctx, func(tx *db.Tx) error {
		cur, err := tx.Progress(ctx, user.ID)
		if err != nil {
			return err
		}
		if cur == nil || cur.NextPosition != expected {
			// A concurrent tick already advanced this user; the
			// notification it sent wins.
			return nil
		}
		cur.PendingPostID = &post.ID
		cur.NextPosition++
		cur.NextSendAt = nowMin.Add(settings.SendInterval())
		return tx.UpdateProgress(ctx, cur)
	})
	if err != nil {
		return "", nil, err
	}
	return DueSent, post, nil
}
