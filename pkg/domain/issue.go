package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an issue.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusClosed     Status = "Closed"
)

// DefaultStatus is preselected in the creation form.
const DefaultStatus = StatusOpen

// Statuses lists the valid statuses in selector order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusClosed}

// ValidStatus returns true if s is a known issue status.
func ValidStatus(s Status) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// ParseStatus matches a status case-insensitively, ignoring surrounding space.
func ParseStatus(raw string) (Status, bool) {
	raw = strings.TrimSpace(raw)
	for _, v := range Statuses {
		if strings.EqualFold(string(v), raw) {
			return v, true
		}
	}
	return "", false
}

// Next returns the status after s in selector order, wrapping around.
func (s Status) Next() Status {
	return s.shift(1)
}

// Prev returns the status before s in selector order, wrapping around.
func (s Status) Prev() Status {
	return s.shift(-1)
}

func (s Status) shift(delta int) Status {
	for i, v := range Statuses {
		if v == s {
			n := len(Statuses)
			return Statuses[((i+delta)%n+n)%n]
		}
	}
	return DefaultStatus
}

// Issue is a unit of trackable work owned by a single user.
type Issue struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewIssue is the insert payload for an issue. The backend assigns the
// identifier and creation timestamp.
type NewIssue struct {
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
}

// Validate checks the fields the client can verify before any remote call.
func (n NewIssue) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return &ValidationError{Field: "title", Message: "Title is required"}
	}
	if !ValidStatus(n.Status) {
		return &ValidationError{Field: "status", Message: "Unknown status " + `"` + string(n.Status) + `"`}
	}
	return nil
}
