package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestValidStatus(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		valid  bool
	}{
		{"open", StatusOpen, true},
		{"in progress", StatusInProgress, true},
		{"closed", StatusClosed, true},
		{"empty", "", false},
		{"lowercase", "open", false},
		{"unknown", "Blocked", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidStatus(tt.status); got != tt.valid {
				t.Errorf("ValidStatus(%q) = %v, want %v", tt.status, got, tt.valid)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw    string
		want   Status
		wantOK bool
	}{
		{"Open", StatusOpen, true},
		{"  in progress ", StatusInProgress, true},
		{"CLOSED", StatusClosed, true},
		{"done", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseStatus(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseStatus(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestStatusCycle(t *testing.T) {
	if got := StatusOpen.Next(); got != StatusInProgress {
		t.Errorf("Open.Next() = %q, want In Progress", got)
	}
	if got := StatusClosed.Next(); got != StatusOpen {
		t.Errorf("Closed.Next() = %q, want Open (wrap)", got)
	}
	if got := StatusOpen.Prev(); got != StatusClosed {
		t.Errorf("Open.Prev() = %q, want Closed (wrap)", got)
	}
	if got := Status("bogus").Next(); got != DefaultStatus {
		t.Errorf("unknown.Next() = %q, want %q", got, DefaultStatus)
	}
}

func TestNewIssueValidate(t *testing.T) {
	tests := []struct {
		name      string
		in        NewIssue
		wantField string
	}{
		{"ok", NewIssue{Title: "Fix bug", Status: StatusOpen}, ""},
		{"empty title", NewIssue{Title: "", Status: StatusOpen}, "title"},
		{"blank title", NewIssue{Title: "   ", Status: StatusOpen}, "title"},
		{"bad status", NewIssue{Title: "x", Status: "Later"}, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		s      *Session
		margin time.Duration
		want   bool
	}{
		{"nil", nil, 0, true},
		{"no expiry", &Session{}, time.Hour, false},
		{"future", &Session{ExpiresAt: now.Add(time.Hour)}, 0, false},
		{"inside margin", &Session{ExpiresAt: now.Add(30 * time.Second)}, time.Minute, true},
		{"past", &Session{ExpiresAt: now.Add(-time.Second)}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.Expired(now, tt.margin); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeHTTPErr struct{ msg string }

func (e *fakeHTTPErr) Error() string          { return "HTTP 400: " + e.msg }
func (e *fakeHTTPErr) ServiceMessage() string { return e.msg }

func TestRemoteErrorsCarryServiceMessage(t *testing.T) {
	base := fmt.Errorf("client.SignIn: %w", &fakeHTTPErr{msg: "Invalid login credentials"})

	authErr := NewRemoteAuthError("login", base)
	if authErr.Error() != "Invalid login credentials" {
		t.Errorf("auth message = %q", authErr.Error())
	}
	var target *fakeHTTPErr
	if !errors.As(authErr, &target) {
		t.Error("expected RemoteAuthError to unwrap to the transport error")
	}

	if got := NewRemoteFetchError(errors.New("dial tcp: refused")).Error(); got != "dial tcp: refused" {
		t.Errorf("fetch message = %q, want raw error text", got)
	}
	if got := NewRemoteMutationError("delete", base).Op; got != "delete" {
		t.Errorf("mutation op = %q", got)
	}
	if ServiceMessage(nil) != "" {
		t.Error("ServiceMessage(nil) should be empty")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", &ValidationError{Field: "title", Message: "Title is required"}, "Title is required"},
		{"wrapped validation", fmt.Errorf("issues.Create: %w", &ValidationError{Message: "Title is required"}), "Title is required"},
		{"no session", ErrNoSession, "You are not logged in"},
		{"remote", NewRemoteAuthError("signup", &fakeHTTPErr{msg: "User already registered"}), "User already registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
