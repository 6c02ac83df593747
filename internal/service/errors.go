package service

import (
	"errors"
	"fmt"
)

// ValidationReason says which registration rule rejected the input.
type ValidationReason int

const (
	// EmptyPassword means the password was empty or whitespace only.
	EmptyPassword ValidationReason = iota + 1
	// PasswordMismatch means password and confirmation differ.
	PasswordMismatch
	// EmptyUsername means the username was empty or whitespace only.
	EmptyUsername
	// InvalidEmail means the email is not a bare address.
	InvalidEmail
	// PasswordTooLong means the password exceeds what the hasher accepts.
	PasswordTooLong
)

func (r ValidationReason) String() string {
	switch r {
	case EmptyPassword:
		return "empty password"
	case PasswordMismatch:
		return "passwords do not match"
	case EmptyUsername:
		return "empty username"
	case InvalidEmail:
		return "invalid email"
	case PasswordTooLong:
		return "password too long"
	default:
		return fmt.Sprintf("ValidationReason(%d)", int(r))
	}
}

// ValidationError is returned by Register when the request is malformed.
// The caller can resubmit corrected input.
type ValidationError struct {
	Reason ValidationReason
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason.String()
}

// ErrInvalidCredentials is returned by Login for an unknown account and for
// a wrong password alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrStorageUnavailable marks failures of the account store. They are
// transient from the caller's point of view and safe to retry.
var ErrStorageUnavailable = errors.New("storage unavailable")

// StorageError wraps an account store failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + ErrStorageUnavailable.Error() + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStorageUnavailable) hold for every StorageError.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}
