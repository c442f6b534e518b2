package engine

import (
	"context"

	"github.com/ldi/marathon/internal/db"
	"github.com/ldi/marathon/pkg/models"
)

// ResolveRun routes a free-text message to a target run. Priority: a run
// for the post the message explicitly references (reply-to), then the most
// recently opened run that is still open. Returns nil when no run accepts
// the message — chatter outside an active window is expected and silently
// dropped by the caller.
func (e *Engine) ResolveRun(ctx context.Context, userID int64, replyPosition *int) (*models.TaskRun, error) {
	now := e.now()

	if replyPosition != nil {
		post, err := e.store.GetPostByPosition(ctx, *replyPosition)
		if err != nil {
			return nil, err
		}
		if post != nil {
			run, err := e.store.LatestOpenRunForPost(ctx, userID, post.ID, now)
			if err != nil {
				return nil, err
			}
			if run != nil {
				return run, nil
			}
		}
	}

	return e.store.LatestOpenRun(ctx, userID, now)
}

// RecordResult describes a recorded response.
type RecordResult struct {
	Response  *models.Response
	Remaining int
	Closed    bool
}

// RecordResponse appends a response to the run. When the run is already at
// the configured maximum it is force-closed (defensive) and ErrLimitReached
// is returned without recording. Reaching the maximum with this response
// closes the run in the same transaction, clears the user's current item
// and schedules the next delivery one interval from the minute-floored now.
func (e *Engine) RecordResponse(ctx context.Context, userID, runID int64, text string) (*RecordResult, error) {
	now := e.now()
	var result *RecordResult
	var opErr error

	err := e.store.WithTx(ctx, func(tx *db.Tx) error {
		run, err := tx.Run(ctx, runID)
		if err != nil {
			return err
		}
		if run == nil || run.UserID != userID {
			opErr = ErrRunNotFound
			return nil
		}

		settings, err := tx.Settings(ctx)
		if err != nil {
			return err
		}

		count, err := tx.CountResponsesForRun(ctx, run.ID)
		if err != nil {
			return err
		}
		if count >= settings.MaxResponsesPerTask {
			// The limit was already hit; make sure the run reads as closed
			// and keep the defensive close even though we report an error.
			if err := tx.CloseRun(ctx, run.ID, now); err != nil {
				return err
			}
			opErr = ErrLimitReached
			return nil
		}

		resp := &models.Response{
			RunID:  run.ID,
			UserID: userID,
			PostID: run.PostID,
			Text:   text,
		}
		if err := tx.AddResponse(ctx, resp); err != nil {
			return err
		}

		newCount := count + 1
		result = &RecordResult{
			Response:  resp,
			Remaining: settings.MaxResponsesPerTask - newCount,
		}
		if newCount < settings.MaxResponsesPerTask {
			return nil
		}

		// Last allowed response: close the run and schedule the next task
		// from the close time.
		if err := tx.CloseRun(ctx, run.ID, now); err != nil {
			return err
		}
		prog, err := tx.Progress(ctx, userID)
		if err != nil {
			return err
		}
		if prog != nil {
			prog.ActivePostID = nil
			prog.ActiveStartedAt = nil
			prog.ActiveUntil = nil
			prog.PendingPostID = nil
			prog.NextSendAt = FloorToMinute(now).Add(settings.SendInterval())
			if err := tx.UpdateProgress(ctx, prog); err != nil {
				return err
			}
		}
		result.Closed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}
	return result, nil
}
