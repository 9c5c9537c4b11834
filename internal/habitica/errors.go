package habitica

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfig is returned when the client is missing credentials.
	ErrInvalidConfig = errors.New("invalid habitica configuration")

	// ErrUnknown marks failures where Habitica gave no usable detail.
	ErrUnknown = errors.New("unknown error from habitica")
)

// ErrorKind classifies an APIError.
type ErrorKind string

const (
	// KindTransport covers connection, timeout and cancellation failures.
	KindTransport ErrorKind = "transport"
	// KindStatus is a non-success answer with a readable error body.
	KindStatus ErrorKind = "status"
	// KindDecode is a response whose body could not be decoded.
	KindDecode ErrorKind = "decode"
	// KindUnknown is a non-success answer without any detail.
	KindUnknown ErrorKind = "unknown"
)

// APIError is returned by every Client call that fails.
type APIError struct {
	Kind       ErrorKind
	Op         string
	StatusCode int

	// Code is the short error name Habitica sends, e.g. "NotAuthorized".
	Code string

	// Message is the human readable message from the error body when one
	// could be decoded, otherwise the raw transport or status text.
	Message string

	Err error
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "habitica %s: %s error", e.Op, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " %s", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrUnknown) match KindUnknown errors.
func (e *APIError) Is(target error) bool {
	return target == ErrUnknown && e.Kind == KindUnknown
}

// errorBody is the JSON Habitica sends with failed requests.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}
