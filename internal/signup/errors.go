package signup

import "errors"

// ErrorCode classifies step failures for the API layer. Every code maps to
// a user-facing message; none of them escape past the step handler.
type ErrorCode string

const (
	CodeSecurity    ErrorCode = "security"
	CodeValidation  ErrorCode = "validation"
	CodeNotFound    ErrorCode = "not_found"
	CodeIntegration ErrorCode = "integration"
)

// StepError is the only error type wizard steps return.
type StepError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *StepError) Error() string {
	return e.Message
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func securityError() *StepError {
	return &StepError{Code: CodeSecurity, Message: "Security check failed. Please refresh the page and try again."}
}

func validationError(message string) *StepError {
	return &StepError{Code: CodeValidation, Message: message}
}

func notFoundError() *StepError {
	return &StepError{Code: CodeNotFound, Message: "We could not find your signup. Please start over."}
}

// integrationError passes the adapter's message through verbatim, as the
// failure policy requires.
func integrationError(err error) *StepError {
	return &StepError{Code: CodeIntegration, Message: err.Error(), Err: err}
}

// CodeOf extracts the step error code, defaulting to integration for
// unclassified errors.
func CodeOf(err error) ErrorCode {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Code
	}
	return CodeIntegration
}
