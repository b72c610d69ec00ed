package domain

import (
	"errors"
)

var (
	// ErrNoSession is returned by issue operations when nobody is signed in.
	ErrNoSession = errors.New("no active session")
	// ErrNotConfirmed is returned when a delete was declined.
	ErrNotConfirmed = errors.New("delete not confirmed")
	// ErrInFlight is returned when an auth request is already running.
	ErrInFlight = errors.New("another request is in progress")
)

// ValidationError is a required-field or enum failure detected locally,
// before any remote call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// RemoteAuthError is a sign up, log in or log out rejected by the auth service.
type RemoteAuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *RemoteAuthError) Error() string { return e.Message }
func (e *RemoteAuthError) Unwrap() error { return e.Err }

// RemoteFetchError is a failed issue list query.
type RemoteFetchError struct {
	Message string
	Err     error
}

func (e *RemoteFetchError) Error() string { return e.Message }
func (e *RemoteFetchError) Unwrap() error { return e.Err }

// RemoteMutationError is a rejected insert, update or delete.
type RemoteMutationError struct {
	Op      string
	Message string
	Err     error
}

func (e *RemoteMutationError) Error() string { return e.Message }
func (e *RemoteMutationError) Unwrap() error { return e.Err }

// serviceMessenger is implemented by transport errors that carry the
// backend's own error text.
type serviceMessenger interface {
	ServiceMessage() string
}

// ServiceMessage returns the backend-provided message inside err, falling
// back to err's own text.
func ServiceMessage(err error) string {
	if err == nil {
		return ""
	}
	var sm serviceMessenger
	if errors.As(err, &sm) {
		if msg := sm.ServiceMessage(); msg != "" {
			return msg
		}
	}
	return err.Error()
}

// NewRemoteAuthError wraps an auth transport failure for op.
func NewRemoteAuthError(op string, err error) *RemoteAuthError {
	return &RemoteAuthError{Op: op, Message: ServiceMessage(err), Err: err}
}

// NewRemoteFetchError wraps a list query failure.
func NewRemoteFetchError(err error) *RemoteFetchError {
	return &RemoteFetchError{Message: ServiceMessage(err), Err: err}
}

// NewRemoteMutationError wraps an insert/update/delete failure for op.
func NewRemoteMutationError(op string, err error) *RemoteMutationError {
	return &RemoteMutationError{Op: op, Message: ServiceMessage(err), Err: err}
}

// UserMessage returns the text shown to the user for err: the service
// message verbatim for remote failures, local text otherwise.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSession):
		return "You are not logged in"
	case errors.Is(err, ErrInFlight):
		return "Please wait, a request is already running"
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return ServiceMessage(err)
}
