package places

import (
	"fmt"
	"net/http"
)

// UpstreamError reports a failed call to the places provider. HTTPStatus is
// zero when no response was received.
type UpstreamError struct {
	Operation  string
	HTTPStatus int
	Status     string
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("places %s failed", e.Operation)
	if e.HTTPStatus != 0 {
		msg += fmt.Sprintf(" (http %d)", e.HTTPStatus)
	}
	if e.Status != "" {
		msg += ": " + e.Status
	}
	if e.Message != "" {
		msg += " - " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ClientMessage is the diagnostic text safe to hand back to API callers.
func (e *UpstreamError) ClientMessage() string {
	if e.Status == "" {
		if e.HTTPStatus != 0 {
			return fmt.Sprintf("Google API error: HTTP %d", e.HTTPStatus)
		}
		return "Google API unavailable"
	}
	if e.Message == "" {
		return "Google API error: " + e.Status
	}
	return fmt.Sprintf("Google API error: %s - %s", e.Status, e.Message)
}

// PropagatedStatus returns the upstream HTTP status when it is an error status,
// otherwise fallback.
func (e *UpstreamError) PropagatedStatus(fallback int) int {
	if e.HTTPStatus >= http.StatusBadRequest {
		return e.HTTPStatus
	}
	return fallback
}
