// Package models defines the core data structures for accounts and their
// stored credentials.
package models

import (
	"strings"
	"time"
)

// AccountIdentity is the pair of identifiers that must be unique across all
// accounts.
type AccountIdentity struct {
	// Username is the login name as the user typed it.
	Username string
	// Email is the address as the user typed it.
	Email string
	// NormalizedUsername is the key the store enforces uniqueness on.
	// Whether it is case-folded is decided by configuration.
	NormalizedUsername string
	// NormalizedEmail is the lower-cased email; email uniqueness is always
	// case-insensitive.
	NormalizedEmail string
}

// CredentialRecord is a persisted account. It is owned by the account store
// and never leaves the credential engine.
type CredentialRecord struct {
	// ID is assigned by the store on creation and used only for addressing.
	ID int64
	// Identity holds the unique identifiers of the account.
	Identity AccountIdentity
	// PasswordHash is the encoded output of a salted one-way hash.
	PasswordHash []byte
	// CreatedAt is set by the store on creation.
	CreatedAt time.Time
}

// Account is the public view of an account returned to callers.
type Account struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Account returns the public identity of the record.
func (r *CredentialRecord) Account() *Account {
	return &Account{
		Username: r.Identity.Username,
		Email:    r.Identity.Email,
	}
}

// NormalizeEmail returns the form of an email address used for uniqueness
// checks and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername returns the form of a username used for uniqueness checks
// and lookups.
func NormalizeUsername(username string, caseSensitive bool) string {
	username = strings.TrimSpace(username)
	if caseSensitive {
		return username
	}
	return strings.ToLower(username)
}
