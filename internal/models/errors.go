package models

import (
	"errors"
	"strings"
)

// ErrAccountNotFound is returned by account stores when no record matches.
var ErrAccountNotFound = errors.New("account not found")

// Field names an identity field that collided with an existing account.
type Field string

const (
	// FieldUsername is the username of an account.
	FieldUsername Field = "username"
	// FieldEmail is the email of an account.
	FieldEmail Field = "email"
)

// ConflictError reports that an account with the same username or email
// already exists. Fields is empty when the caller must not learn which
// identifier collided.
type ConflictError struct {
	Fields []Field
}

func (e *ConflictError) Error() string {
	if len(e.Fields) == 0 {
		return "account already exists"
	}
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return "account already exists: duplicate " + strings.Join(names, ", ")
}

// Has reports whether f is among the conflicting fields.
func (e *ConflictError) Has(f Field) bool {
	for _, got := range e.Fields {
		if got == f {
			return true
		}
	}
	return false
}
