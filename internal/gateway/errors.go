package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies the outcome of a failed call.
type Kind int

const (
	// KindNetworkFailure means no response was received.
	KindNetworkFailure Kind = iota + 1
	// KindAuthorizationExpired is an HTTP 401.
	KindAuthorizationExpired
	// KindServerFault is any HTTP 5xx.
	KindServerFault
	// KindValidation is any other HTTP 4xx.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetworkFailure:
		return "network_failure"
	case KindAuthorizationExpired:
		return "authorization_expired"
	case KindServerFault:
		return "server_fault"
	case KindValidation:
		return "validation_error"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against a classified *Error.
var (
	ErrNetworkFailure       = errors.New("network failure")
	ErrAuthorizationExpired = errors.New("authorization expired")
	ErrServerFault          = errors.New("server fault")
	ErrValidation           = errors.New("validation error")
)

// Error is the single error type returned by the Gateway.
type Error struct {
	Kind   Kind
	Status int    // zero for network failures
	Detail string // server-supplied detail, if any
	Method string
	Path   string
	Err    error // transport error, or why a 2xx reply was unusable
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetworkFailure:
		return e.Kind == KindNetworkFailure
	case ErrAuthorizationExpired:
		return e.Kind == KindAuthorizationExpired
	case ErrServerFault:
		return e.Kind == KindServerFault
	case ErrValidation:
		return e.Kind == KindValidation
	}
	return false
}

var (
	errMissingToken = errors.New("login reply has no access_token")
	errUnsuccessful = errors.New("service reported failure")
)

// malformed classifies a 2xx reply the client cannot use as a server fault.
func malformed(method, path string, status int, detail string, cause error) *Error {
	return &Error{
		Kind:   KindServerFault,
		Status: status,
		Detail: detail,
		Method: method,
		Path:   path,
		Err:    cause,
	}
}

// Detail returns the server-supplied detail carried by err, or fallback if
// there is none.
func Detail(err error, fallback string) string {
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.Detail != "" {
		return gwErr.Detail
	}
	return fallback
}

// Retryable reports whether re-issuing the same call could succeed.
// Transient failures (no response, server fault) are retryable; expired
// authorization and validation errors are not. The Gateway never retries on
// its own; this only informs what the caller offers the user.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNetworkFailure) || errors.Is(err, ErrServerFault)
}

// classify maps a non-2xx status and body to an *Error.
func classify(method, path string, status int, body []byte) *Error {
	e := &Error{Status: status, Method: method, Path: path}
	switch {
	case status == 401:
		e.Kind = KindAuthorizationExpired
	case status >= 500:
		e.Kind = KindServerFault
	default:
		e.Kind = KindValidation
	}
	e.Detail = parseDetail(body)
	return e
}

// parseDetail extracts the "detail" field. The service sends either a string
// or, for request validation failures, a list of {msg, ...} objects.
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 {
		return items[0].Msg
	}
	return ""
}
