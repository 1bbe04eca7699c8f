package service

import "errors"

// Error kinds. The HTTP layer maps each one to a status code.
var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("authentication failed")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrUpload         = errors.New("upload failed")
)

// Error pairs a kind with a client facing detail and an optional cause.
type Error struct {
	Kind   error
	Detail string
	Cause  error
}

func NewError(kind error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func wrapError(kind error, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Detail + ": " + e.Cause.Error()
	}
	return e.Detail
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}
