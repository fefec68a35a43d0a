package domain

import "fmt"

// Error is the domain-specific error type used throughout the core. It
// carries a stable Code so callers (the pool, handlers) can branch on
// failure kind without string matching.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Common domain error codes.
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvariantViolated = "INVARIANT_VIOLATED"
)

// NewError creates a new domain Error.
func NewError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// TimeoutError is the synthetic error published when a timing_out
// expression's on_timeout handler is the literal "error" (spec.md §4.6,
// §7). Its stack trace is intentionally a placeholder: it marks a
// flow-level timeout, not a crash.
type TimeoutError struct {
	// Message is the timeout duration attribute's raw value (e.g. "1s").
	Message string
	// Payload carries everything needed to resume: tree, fei, parent_id,
	// workitem, variables.
	Payload map[string]any
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("TimeoutError: %s", e.Message)
}

// StackTrace is deliberately empty/placeholder: a TimeoutError is a flow
// event, not a crash, and implementers must preserve that distinction.
func (e *TimeoutError) StackTrace() []string {
	return []string{"---"}
}
