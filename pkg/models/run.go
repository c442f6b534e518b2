package models

import "time"

// TaskRun is one instance of a user's engagement window with a post.
// A run is open while Until is in the future; closing sets Until into the
// past, it is never deleted, so the response history survives.
type TaskRun struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	PostID    int64     `json:"post_id"`
	StartedAt time.Time `json:"started_at"`
	Until     time.Time `json:"until"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open reports whether the run still accepts responses at now.
func (r *TaskRun) Open(now time.Time) bool {
	return !r.Until.Before(now)
}

// Response is one user message attached to a run. Seq is 1-based and dense
// within the run; responses are immutable once created.
type Response struct {
	ID        int64     `json:"id"`
	RunID     int64     `json:"run_id"`
	UserID    int64     `json:"user_id"`
	PostID    int64     `json:"post_id"`
	Seq       int       `json:"seq"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// PostSummary pairs a post with the responses of the user's latest run for
// it, for the end-of-program summary view.
type PostSummary struct {
	Post      *Post       `json:"post"`
	Responses []*Response `json:"responses"`
}
