package serrors

import "fmt"

// BaseError is a structured error carrying a stable machine-readable code
// alongside the human-readable message. Codes are part of the API surface and
// must not change between releases.
type BaseError struct {
	Code    string
	Message string
	Details map[string]string
}

func NewError(code, message string) *BaseError {
	return &BaseError{
		Code:    code,
		Message: message,
	}
}

func (e *BaseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithDetails returns a copy of the error annotated with request-scoped
// details. The receiver is not mutated so package-level sentinel errors stay
// safe to share.
func (e *BaseError) WithDetails(details map[string]string) *BaseError {
	clone := &BaseError{
		Code:    e.Code,
		Message: e.Message,
		Details: make(map[string]string, len(e.Details)+len(details)),
	}
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	for k, v := range details {
		clone.Details[k] = v
	}
	return clone
}

// Is matches errors by code so wrapped and detailed copies of a sentinel
// compare equal under errors.Is.
func (e *BaseError) Is(target error) bool {
	other, ok := target.(*BaseError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}
