// Package apierror defines the typed failures raised on the request path and
// the {status, text} envelope they are normalized into.
//
// Every failure carries a discriminated Kind. The gin error boundary matches
// on the kind exactly once, at the edge of the request, instead of
// inspecting error names or messages.
package apierror

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a request-path failure.
type Kind int

// Failure kinds.
const (
	// KindInternal is any failure not covered by a more specific kind.
	KindInternal Kind = iota
	// KindAuthentication is a missing, malformed, invalid or expired token.
	KindAuthentication
	// KindAuthorization is a valid identity lacking the required scope.
	KindAuthorization
	// KindUpstreamTransport means no response was received from upstream.
	KindUpstreamTransport
	// KindUpstreamStatus means upstream answered with a non-success status.
	KindUpstreamStatus
	// KindStaleIdentity means the token no longer matches the record on file.
	KindStaleIdentity
)

// String returns the kind name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindUpstreamTransport:
		return "upstream_transport"
	case KindUpstreamStatus:
		return "upstream_status"
	case KindStaleIdentity:
		return "stale_identity"
	default:
		return "internal"
	}
}

// Client-facing texts that are part of the wire contract.
const (
	// ReauthMessage is returned when the caller must sign in again.
	ReauthMessage = "Should Authorized Again."
	// InvalidTokenText is the plain-text body of a 401 outside the status path.
	InvalidTokenText = "invalid token..."
)

// Sentinel errors, one per kind, usable with errors.Is.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrUpstreamTransport = errors.New("upstream unreachable")
	ErrUpstreamStatus    = errors.New("upstream error status")
	ErrStaleIdentity     = errors.New("stale identity")
	ErrInternal          = errors.New("internal error")
)

var kindSentinels = map[Kind]error{
	KindInternal:          ErrInternal,
	KindAuthentication:    ErrUnauthorized,
	KindAuthorization:     ErrForbidden,
	KindUpstreamTransport: ErrUpstreamTransport,
	KindUpstreamStatus:    ErrUpstreamStatus,
	KindStaleIdentity:     ErrStaleIdentity,
}

// Error is a typed request-path failure.
type Error struct {
	// Kind discriminates the failure.
	Kind Kind
	// Status is the HTTP status the failure maps to.
	Status int
	// Text is the client-facing description.
	Text string
	// URL is the upstream URL involved, if any.
	URL string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Text)
	if e.URL != "" {
		msg += " [" + e.URL + "]"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for this kind, or another
// *Error of the same kind.
func (e *Error) Is(target error) bool {
	if sentinel, ok := kindSentinels[e.Kind]; ok && target == sentinel {
		return true
	}
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// Unauthorized builds an authentication failure.
func Unauthorized(cause error) *Error {
	return &Error{
		Kind:   KindAuthentication,
		Status: http.StatusUnauthorized,
		Text:   InvalidTokenText,
		Cause:  cause,
	}
}

// Forbidden builds an authorization failure with the given status; a zero
// status means 403.
func Forbidden(status int, text string, cause error) *Error {
	if status == 0 {
		status = http.StatusForbidden
	}
	return &Error{
		Kind:   KindAuthorization,
		Status: status,
		Text:   text,
		Cause:  cause,
	}
}

// StaleIdentity builds the re-authentication failure.
func StaleIdentity(reason string) *Error {
	return &Error{
		Kind:   KindStaleIdentity,
		Status: http.StatusUnauthorized,
		Text:   ReauthMessage,
		Cause:  errors.New(reason),
	}
}

// Transport builds a failure for a call that produced no response. The
// status is 504 for timeouts and 502 otherwise.
func Transport(url string, cause error) *Error {
	status := http.StatusBadGateway
	text := "upstream request failed"
	if IsTimeout(cause) {
		status = http.StatusGatewayTimeout
		text = "upstream timeout"
	}
	return &Error{
		Kind:   KindUpstreamTransport,
		Status: status,
		Text:   text,
		URL:    url,
		Cause:  cause,
	}
}

// Unavailable builds a transport failure for a call that was never sent,
// e.g. because a circuit breaker is open.
func Unavailable(url string, cause error) *Error {
	return &Error{
		Kind:   KindUpstreamTransport,
		Status: http.StatusServiceUnavailable,
		Text:   "upstream unavailable",
		URL:    url,
		Cause:  cause,
	}
}

// InvalidResponse builds a failure for a success response whose body could
// not be used.
func InvalidResponse(url string, cause error) *Error {
	return &Error{
		Kind:   KindUpstreamTransport,
		Status: http.StatusBadGateway,
		Text:   "invalid upstream response",
		URL:    url,
		Cause:  cause,
	}
}

// UpstreamStatus builds a failure for a non-success upstream response. The
// upstream status and body are echoed.
func UpstreamStatus(url string, status int, body string) *Error {
	if body == "" {
		body = http.StatusText(status)
	}
	return &Error{
		Kind:   KindUpstreamStatus,
		Status: status,
		Text:   body,
		URL:    url,
	}
}

// Internal wraps any other failure.
func Internal(cause error) *Error {
	text := "internal error"
	if cause != nil {
		text = cause.Error()
	}
	return &Error{
		Kind:   KindInternal,
		Status: http.StatusInternalServerError,
		Text:   text,
		Cause:  cause,
	}
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// KindOf returns the kind of err, KindInternal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns err as an *Error, wrapping untyped errors as internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
