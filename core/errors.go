package core

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrPermissionDenied is returned when the acting principal may not perform an operation.
// It never carries field details.
var ErrPermissionDenied = errors.New("permission denied")

// FieldError is used to indicate an error with a specific field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError holds every field failure of a payload, in evaluation order.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return fmt.Sprintf("validation failed: %d field error(s)", len(err.Fields))
		}
		return ""
	}
	return err.Err.Error()
}

func (err *ValidationError) Add(field, msg string) {
	err.Fields = append(err.Fields, FieldError{Field: field, Error: msg})
}

func (err ValidationError) HasErrors() bool { return len(err.Fields) > 0 }

// Map groups messages per field, keeping their order.
func (err ValidationError) Map() map[string][]string {
	m := make(map[string][]string, len(err.Fields))
	for _, f := range err.Fields {
		m[f.Field] = append(m[f.Field], f.Error)
	}
	return m
}

// RateLimitError is returned when a rate limit policy rejects a request.
type RateLimitError struct {
	Policy     string
	Limit      int
	RetryAfter time.Duration
}

func (err *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit %q exceeded, retry after %s", err.Policy, err.RetryAfter)
}

// RetryAfterSeconds rounds the wait up to whole seconds, as sent in the Retry-After header.
func (err *RateLimitError) RetryAfterSeconds() int {
	secs := int(err.RetryAfter / time.Second)
	if err.RetryAfter%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// LookupError wraps a failed read from a collaborator store (existence checks, settings).
type LookupError struct {
	Op  string
	Err error
}

func NewLookupError(op string, err error) error {
	return &LookupError{Op: op, Err: err}
}

func (err *LookupError) Error() string {
	return "lookup failed: " + err.Op + ": " + err.Err.Error()
}

func (err *LookupError) Unwrap() error { return err.Err }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
