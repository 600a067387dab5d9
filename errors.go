package statsclient

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthenticated is returned by authenticated calls made while no token is held.
	// No network call is made.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrNetworkFailure wraps transport failures. The session is left untouched.
	ErrNetworkFailure = errors.New("network failure")
	// ErrExpiredSession is returned when the backend reports the token as expired or
	// invalid. The session has been cleared.
	ErrExpiredSession = errors.New("session expired")
	// ErrPermissionDenied is returned for 401/403 responses that do not indicate expiry.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidation is returned when input is rejected before any network call.
	ErrValidation = errors.New("validation failed")
	// ErrMalformedResponse is returned when a response body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrRequestFailed is returned for non-2xx statuses outside the auth path and for
	// bodies carrying success:false.
	ErrRequestFailed = errors.New("request failed")
	// ErrLoginFailed is returned when the backend rejects a login.
	ErrLoginFailed = errors.New("login failed")
	// ErrClientNotReady is returned by methods on a nil or closed Client.
	ErrClientNotReady = errors.New("client not ready")
	// ErrSessionPersist is returned when login or logout took effect in memory but the
	// session could not be written to its persister.
	ErrSessionPersist = errors.New("session persistence failed")
)

// APIError carries the backend's answer for a failed call. It unwraps to one of the
// sentinel errors above.
type APIError struct {
	Status    int
	Message   string
	RequestID string
	// Rotated reports whether the failed response still rotated the token.
	Rotated bool

	kind error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.kind.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// ValidationError names the input field rejected before a call reached the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newAPIError(kind error, status int, message, requestID string, rotated bool) *APIError {
	return &APIError{
		Status:    status,
		Message:   message,
		RequestID: requestID,
		Rotated:   rotated,
		kind:      kind,
	}
}
