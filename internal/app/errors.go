package app

import "fmt"

// DomainError is a caller-visible failure: a validation problem, a bad
// credential, a missing node, a dangling parent reference. mapError renders
// it as {code, error, details?} with its own status; anything that is not a
// DomainError (or a recognized store sentinel) is logged and collapses to a
// generic 500 so internals never leak into responses.
type DomainError struct {
	Status  int
	Code    string // stable machine-readable code, e.g. VALIDATION_ERROR, OTP_EXPIRED
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
