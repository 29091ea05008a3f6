package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrMissingCode     = fmt.Errorf("missing authorization code")
	ErrExchangeFailed  = fmt.Errorf("token exchange failed")
	ErrSessionExpired  = fmt.Errorf("session expired")
	ErrInvalidState    = fmt.Errorf("invalid state parameter")
	ErrCallbackHandled = fmt.Errorf("callback already processed")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrDecodeResponse     = fmt.Errorf("failed to decode response")
	ErrRunNotFound        = fmt.Errorf("run not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// AuthErrorKind classifies an [AuthError].
type AuthErrorKind int

const (
	MissingCode AuthErrorKind = iota
	ExchangeFailed
	SessionExpired
)

func (k AuthErrorKind) String() string {
	switch k {
	case MissingCode:
		return "missing_code"
	case ExchangeFailed:
		return "exchange_failed"
	case SessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

func (k AuthErrorKind) sentinel() error {
	switch k {
	case MissingCode:
		return ErrMissingCode
	case ExchangeFailed:
		return ErrExchangeFailed
	default:
		return ErrSessionExpired
	}
}

// AuthError is returned by the auth manager when a session cannot produce a valid credential.
//
// Status is only meaningful for [ExchangeFailed] and holds the token endpoint's HTTP status
// (zero when the request never got a response).
type AuthError struct {
	Kind   AuthErrorKind
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Kind == ExchangeFailed && e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches the kind's sentinel (e.g. [ErrSessionExpired]) or another *AuthError of the same kind.
// A target with a zero Status matches any status.
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if errors.As(target, &t) {
		return t.Kind == e.Kind && (t.Status == 0 || t.Status == e.Status)
	}
	return target == e.Kind.sentinel()
}

// RequestError is a non-2xx response from the catalog API.
type RequestError struct {
	Method string
	URL    string
	Status int
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%v: %s %s returned status %d", ErrAPIRequest, e.Method, e.URL, e.Status)
}

// Is matches [ErrAPIRequest] or another *RequestError with the same status.
func (e *RequestError) Is(target error) bool {
	if target == ErrAPIRequest {
		return true
	}
	var t *RequestError
	if errors.As(target, &t) {
		return t.Status == 0 || t.Status == e.Status
	}
	return false
}

// ErrorKind returns a short, URL-safe label for err that the front-end can show.
func ErrorKind(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind.String()
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("request_failed_%d", reqErr.Status)
	}
	return "internal"
}
