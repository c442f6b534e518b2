package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/ldi/marathon/pkg/models"
)

// Tx binds the store's query helpers to one open transaction. Engine
// operations run entirely through a Tx so each operation reads settings and
// mutates state under a single snapshot.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Settings(ctx context.Context) (*models.Settings, error) {
	return getSettings(ctx, t.tx)
}

func (t *Tx) User(ctx context.Context, id int64) (*models.User, error) {
	return getUser(ctx, t.tx, id)
}

func (t *Tx) Post(ctx context.Context, id int64) (*models.Post, error) {
	return getPost(ctx, t.tx, id)
}

func (t *Tx) PostByPosition(ctx context.Context, position int) (*models.Post, error) {
	return getPostByPosition(ctx, t.tx, position)
}

func (t *Tx) CountPosts(ctx context.Context) (int, error) {
	return countPosts(ctx, t.tx)
}

func (t *Tx) Progress(ctx context.Context, userID int64) (*models.Progress, error) {
	return getProgress(ctx, t.tx, userID)
}

func (t *Tx) GetOrCreateProgress(ctx context.Context, userID int64, nextSendAt time.Time) (*models.Progress, error) {
	return getOrCreateProgress(ctx, t.tx, userID, nextSendAt)
}

func (t *Tx) UpdateProgress(ctx context.Context, p *models.Progress) error {
	return updateProgress(ctx, t.tx, p)
}

func (t *Tx) ResetProgress(ctx context.Context, userID int64, nextSendAt time.Time) error {
	return resetProgress(ctx, t.tx, userID, nextSendAt)
}

func (t *Tx) CreateTaskRun(ctx context.Context, r *models.TaskRun) error {
	return createTaskRun(ctx, t.tx, r)
}

func (t *Tx) Run(ctx context.Context, id int64) (*models.TaskRun, error) {
	return getRun(ctx, t.tx, id)
}

func (t *Tx) LatestOpenRun(ctx context.Context, userID int64, now time.Time) (*models.TaskRun, error) {
	return latestOpenRun(ctx, t.tx, userID, now)
}

func (t *Tx) LatestOpenRunForPost(ctx context.Context, userID, postID int64, now time.Time) (*models.TaskRun, error) {
	return latestOpenRunForPost(ctx, t.tx, userID, postID, now)
}

func (t *Tx) LatestRunForPost(ctx context.Context, userID, postID int64) (*models.TaskRun, error) {
	return latestRunForPost(ctx, t.tx, userID, postID)
}

func (t *Tx) CloseRun(ctx context.Context, runID int64, now time.Time) error {
	return closeRun(ctx, t.tx, runID, now)
}

func (t *Tx) DeleteRunsForUser(ctx context.Context, userID int64) error {
	return deleteRunsForUser(ctx, t.tx, userID)
}

func (t *Tx) AddResponse(ctx context.Context, r *models.Response) error {
	return addResponse(ctx, t.tx, r)
}

func (t *Tx) CountResponsesForRun(ctx context.Context, runID int64) (int, error) {
	return countResponsesForRun(ctx, t.tx, runID)
}
