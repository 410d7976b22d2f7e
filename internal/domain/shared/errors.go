package shared

import "fmt"

// DomainError is a business rule violation identified by a stable code.
// errors.Is compares codes only, so a sentinel matches every detailed
// variant built from it with Withf.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && e.Code == t.Code
}

// Withf returns an error with e's code and a formatted message
func (e *DomainError) Withf(format string, args ...any) *DomainError {
	return NewDomainError(e.Code, fmt.Sprintf(format, args...))
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
)
