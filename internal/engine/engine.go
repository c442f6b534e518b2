// Package engine implements the per-user progress state machine: opening a
// task's response window, recording responses, closing runs and resetting a
// user. Both direct user actions and the scheduler tick go through these
// transitions, so there is exactly one authoritative representation of where
// a user is in the program.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/ldi/marathon/internal/db"
	"github.com/ldi/marathon/pkg/models"
)

var (
	// ErrRunNotFound means the referenced run does not exist or belongs to
	// another user.
	ErrRunNotFound = errors.New("run not found")
	// ErrLimitReached means the run already holds the configured maximum
	// number of responses. The run is force-closed as a side effect.
	ErrLimitReached = errors.New("response limit reached")
	// ErrPostNotFound means the referenced catalog entry does not exist.
	ErrPostNotFound = errors.New("post not found")
)

// Clock supplies the current time. Injected so transitions and tests are
// deterministic; all comparisons and persisted values derive from one
// sampled "now" per operation.
type Clock func() time.Time

type Engine struct {
	store *db.DB
	clock Clock
}

func New(store *db.DB, clock Clock) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{store: store, clock: clock}
}

// now normalizes the sampled time to UTC with second precision, the
// canonical representation for every persisted scheduling timestamp.
func (e *Engine) now() time.Time {
	return e.clock().UTC().Truncate(time.Second)
}

// FloorToMinute truncates to minute precision, the granularity of the send
// cadence.
func FloorToMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// OpenResult describes an opened (or re-opened) response window.
type OpenResult struct {
	Run           *models.TaskRun
	Post          *models.Post
	WindowMinutes int
	MaxResponses  int
	Reopened      bool
}

// OpenTask opens the response window for (user, post). Re-opening a still
// open run is idempotent: the existing deadline is kept, the timer is not
// reset. The window duration is read from settings at open time and copied
// into the run, so later settings changes never move an open deadline.
func (e *Engine) OpenTask(ctx context.Context, userID, postID int64) (*OpenResult, error) {
	now := e.now()
	var result *OpenResult

	err := e.store.WithTx(ctx, func(tx *db.Tx) error {
		post, err := tx.Post(ctx, postID)
		if err != nil {
			return err
		}
		if post == nil {
			return ErrPostNotFound
		}

		settings, err := tx.Settings(ctx)
		if err != nil {
			return err
		}

		prog, err := tx.GetOrCreateProgress(ctx, userID, now)
		if err != nil {
			return err
		}

		run, err := tx.LatestOpenRunForPost(ctx, userID, postID, now)
		if err != nil {
			return err
		}
		reopened := run != nil
		if run == nil {
			run = &models.TaskRun{
				UserID:    userID,
				PostID:    postID,
				StartedAt: now,
				Until:     now.Add(settings.ResponseWindow()),
			}
			if err := tx.CreateTaskRun(ctx, run); err != nil {
				return err
			}
		}

		if prog.PendingPostID != nil && *prog.PendingPostID == postID {
			prog.PendingPostID = nil
		}
		prog.ActivePostID = &post.ID
		started := run.StartedAt
		until := run.Until
		prog.ActiveStartedAt = &started
		prog.ActiveUntil = &until
		if err := tx.UpdateProgress(ctx, prog); err != nil {
			return err
		}

		result = &OpenResult{
			Run:           run,
			Post:          post,
			WindowMinutes: settings.ResponseWindowMinutes,
			MaxResponses:  settings.MaxResponsesPerTask,
			Reopened:      reopened,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CloseRunExplicit closes the open run for (user, post) early, clears the
// matching active/pending fields and schedules the next delivery one
// interval from now. A missing open run is a no-op: closing is idempotent.
func (e *Engine) CloseRunExplicit(ctx context.Context, userID, postID int64) (bool, error) {
	now := e.now()
	closed := false

	err := e.store.WithTx(ctx, func(tx *db.Tx) error {
		run, err := tx.LatestOpenRunForPost(ctx, userID, postID, now)
		if err != nil {
			return err
		}
		if run == nil {
			return nil
		}

		if err := tx.CloseRun(ctx, run.ID, now); err != nil {
			return err
		}

		settings, err := tx.Settings(ctx)
		if err != nil {
			return err
		}
		prog, err := tx.Progress(ctx, userID)
		if err != nil {
			return err
		}
		if prog != nil {
			if prog.ActivePostID != nil && *prog.ActivePostID == postID {
				prog.ActivePostID = nil
				prog.ActiveStartedAt = nil
				prog.ActiveUntil = nil
			}
			prog.PendingPostID = nil
			prog.NextSendAt = FloorToMinute(now).Add(settings.SendInterval())
			if err := tx.UpdateProgress(ctx, prog); err != nil {
				return err
			}
		}
		closed = true
		return nil
	})
	return closed, err
}

// ResetUser restarts the program for one user: response history is wiped
// and the pointer returns to position 1. The grace offset delays the first
// delivery slightly so an operator reset does not race the next tick.
func (e *Engine) ResetUser(ctx context.Context, userID int64, grace time.Duration) error {
	now := e.now()
	return e.store.WithTx(ctx, func(tx *db.Tx) error {
		if err := tx.DeleteRunsForUser(ctx, userID); err != nil {
			return err
		}
		return tx.ResetProgress(ctx, userID, now.Add(grace))
	})
}
