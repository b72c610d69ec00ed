package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the authenticated account as reported by the auth service.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email,omitempty"`
}

// Session is the authenticated identity of the current user.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is expired, or will be within margin.
// A zero ExpiresAt never expires.
func (s *Session) Expired(now time.Time, margin time.Duration) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(s.ExpiresAt)
}
