package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrUnauthorized is returned when the backend rejects the bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSessionExpired is returned when a token refresh fails terminally:
	// the refresh token is missing, expired, or rejected. Tokens are cleared
	// before this error is returned.
	ErrSessionExpired = errors.New("session expired")
)

// APIError is a non-2xx response from the backend with its decoded payload.
type APIError struct {
	// Status is the HTTP status code.
	Status int
	// Detail is the server-provided message, when present.
	Detail string
	// Fields holds field-level validation errors keyed by field name.
	Fields map[string][]string
	// RequestID is the client-generated ID of the failing request.
	RequestID string
}

// Error returns a human-readable description of the API error.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, http.StatusText(e.Status), e.Detail)
	}
	if len(e.Fields) > 0 {
		return fmt.Sprintf("api: %d %s: %s", e.Status, http.StatusText(e.Status), e.firstFieldMessage())
	}
	return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
}

// Is reports whether this error matches the target error.
// It supports errors.Is(err, ErrUnauthorized) for 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

func (e *APIError) firstFieldMessage() string {
	for _, msgs := range e.Fields {
		if len(msgs) > 0 {
			return msgs[0]
		}
	}
	return ""
}

// FieldError returns the first server message for any of the named fields,
// in the order given, or "" when none is present.
func (e *APIError) FieldError(fields ...string) string {
	for _, f := range fields {
		if msgs, ok := e.Fields[f]; ok && len(msgs) > 0 {
			return msgs[0]
		}
	}
	return ""
}

// Message returns the most useful human-readable message: the detail if set,
// else the first field error, else the status text.
func (e *APIError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if m := e.firstFieldMessage(); m != "" {
		return m
	}
	return http.StatusText(e.Status)
}

// parseAPIError decodes a backend error body. The backend responds either
// with {"detail": "..."} or with a map of field name to message list.
func parseAPIError(status int, body []byte, requestID string) *APIError {
	apiErr := &APIError{Status: status, RequestID: requestID}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		apiErr.Detail = strings.TrimSpace(string(body))
		return apiErr
	}

	for key, raw := range payload {
		if key == "detail" || key == "error" || key == "message" {
			var s string
			if json.Unmarshal(raw, &s) == nil {
				apiErr.Detail = s
			}
			continue
		}
		var msgs []string
		if json.Unmarshal(raw, &msgs) == nil {
			if apiErr.Fields == nil {
				apiErr.Fields = make(map[string][]string)
			}
			apiErr.Fields[key] = msgs
			continue
		}
		var single string
		if json.Unmarshal(raw, &single) == nil {
			if apiErr.Fields == nil {
				apiErr.Fields = make(map[string][]string)
			}
			apiErr.Fields[key] = []string{single}
		}
	}
	return apiErr
}

// IsAuthRejected reports whether err means the backend rejected the caller's
// credentials or session (as opposed to a transport or server fault).
// Hydration relies on this distinction: an auth rejection resets the session,
// anything else keeps the optimistic state.
func IsAuthRejected(err error) bool {
	if errors.Is(err, ErrSessionExpired) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
	}
	return false
}
