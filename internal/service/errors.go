package service

import "errors"

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrMisconfigured = errors.New("service misconfigured")
	ErrVerification  = errors.New("payment verification failed")
	ErrInfected      = errors.New("file rejected by malware scan")
	ErrDependency    = errors.New("dependency unavailable")
)

// UserError carries a message that is safe to show to the caller.
type UserError struct {
	Kind    error
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Kind
}

func userError(kind error, message string) error {
	return &UserError{Kind: kind, Message: message}
}

func isDependency(err error) bool {
	return errors.Is(err, ErrDependency)
}
