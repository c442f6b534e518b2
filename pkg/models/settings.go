package models

import "time"

// Settings are the program-wide knobs the operator panel tunes. The engine
// and the scheduler read them once per operation/tick; an already-open run
// keeps the window it was opened with.
type Settings struct {
	GreetingText          string    `json:"greeting_text"`
	ResponseWindowMinutes int       `json:"response_window_minutes"`
	SendIntervalMinutes   int       `json:"send_interval_minutes"`
	MaxResponsesPerTask   int       `json:"max_responses_per_task"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// ResponseWindow returns the response window as a duration.
func (s *Settings) ResponseWindow() time.Duration {
	return time.Duration(s.ResponseWindowMinutes) * time.Minute
}

// SendInterval returns the delivery cadence as a duration.
func (s *Settings) SendInterval() time.Duration {
	return time.Duration(s.SendIntervalMinutes) * time.Minute
}
