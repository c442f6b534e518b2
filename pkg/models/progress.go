package models

import "time"

type ProgressState string

const (
	ProgressStateIdle      ProgressState = "idle"
	ProgressStatePending   ProgressState = "pending"
	ProgressStateActive    ProgressState = "active"
	ProgressStateCompleted ProgressState = "completed"
)

// Progress tracks one user's position in the program: the pointer to the
// next post to deliver, the earliest time it may be sent, and the current
// pending/active item. At most one of PendingPostID/ActivePostID is set
// at any instant.
type Progress struct {
	ID                int64      `json:"id"`
	UserID            int64      `json:"user_id"`
	NextPosition      int        `json:"next_position"`
	NextSendAt        time.Time  `json:"next_send_at"`
	PendingPostID     *int64     `json:"pending_post_id"`
	ActivePostID      *int64     `json:"active_post_id"`
	ActiveStartedAt   *time.Time `json:"active_started_at"`
	ActiveUntil       *time.Time `json:"active_until"`
	SummaryPromptSent bool       `json:"summary_prompt_sent"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// State collapses the nullable fields into a single tagged state so callers
// cannot observe a pending and an active item at the same time. taskCount is
// the current catalog size; a pointer past it is the terminal state.
func (p *Progress) State(taskCount int) ProgressState {
	switch {
	case p.ActivePostID != nil:
		return ProgressStateActive
	case p.PendingPostID != nil:
		return ProgressStatePending
	case p.NextPosition > taskCount:
		return ProgressStateCompleted
	default:
		return ProgressStateIdle
	}
}

// Due reports whether the next task may be delivered at now.
func (p *Progress) Due(taskCount int, now time.Time) bool {
	return p.NextPosition <= taskCount && !p.NextSendAt.After(now)
}
