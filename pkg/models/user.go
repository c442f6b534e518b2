package models

import "time"

type User struct {
	ID          int64      `json:"id"`
	TelegramID  int64      `json:"telegram_id"`
	IsAdmin     bool       `json:"is_admin"`
	FullName    string     `json:"full_name"`
	Region      string     `json:"region"`
	Email       string     `json:"email"`
	OnboardedAt *time.Time `json:"onboarded_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Onboarded reports whether the user has finished onboarding and may
// receive scheduled tasks.
func (u *User) Onboarded() bool {
	return u.OnboardedAt != nil
}
