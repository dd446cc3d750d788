package pos

import "errors"

// ErrorKind classifies integration failures so callers can branch on
// structure instead of matching message text.
type ErrorKind string

const (
	KindInvalid       ErrorKind = "invalid"
	KindNotFound      ErrorKind = "not_found"
	KindAlreadyExists ErrorKind = "already_exists"
	KindDeclined      ErrorKind = "declined"
	KindUnavailable   ErrorKind = "unavailable"
)

// Error is the domain error every integration operation returns on failure.
// Message is human-readable and is what the wizard surfaces to the caller.
// CustomerID is set on KindAlreadyExists so the existing customer can be
// re-resolved without another lookup.
type Error struct {
	Kind       ErrorKind
	Message    string
	CustomerID string
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AlreadyExists reports whether err is the already-exists domain error and
// returns the existing customer id when it is.
func AlreadyExists(err error) (string, bool) {
	var posErr *Error
	if errors.As(err, &posErr) && posErr.Kind == KindAlreadyExists {
		return posErr.CustomerID, true
	}
	return "", false
}

// Kind returns the error kind, or empty string for non-domain errors.
func Kind(err error) ErrorKind {
	var posErr *Error
	if errors.As(err, &posErr) {
		return posErr.Kind
	}
	return ""
}
