package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// HTTPError represents a non-2xx HTTP response from the backend.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// ServiceMessage returns the backend's own error text.
func (e *HTTPError) ServiceMessage() string {
	return e.Message
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

// apiError covers both error shapes: the auth API sends msg or
// error/error_description, the table API sends message with a string code.
type apiError struct {
	Msg              string          `json:"msg"`
	ErrorDescription string          `json:"error_description"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorCode        string          `json:"error_code"`
	Code             json.RawMessage `json:"code"`
}

func parseHTTPError(status int, body []byte) *HTTPError {
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) != nil {
		return &HTTPError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}

	msg := firstNonEmpty(apiErr.Msg, apiErr.ErrorDescription, apiErr.Message, apiErr.Error)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	code := apiErr.ErrorCode
	if code == "" && len(apiErr.Code) > 0 {
		code = strings.Trim(string(apiErr.Code), `"`)
	}
	return &HTTPError{StatusCode: status, Code: code, Message: msg}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
