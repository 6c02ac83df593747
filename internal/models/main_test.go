package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.com "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "Alice", NormalizeUsername(" Alice ", true))
	assert.Equal(t, "alice", NormalizeUsername(" Alice ", false))
}

func TestCredentialRecord_Account(t *testing.T) {
	rec := &CredentialRecord{
		ID:           7,
		Identity:     AccountIdentity{Username: "alice", Email: "a@x.com"},
		PasswordHash: []byte("$2a$12$hash"),
	}

	assert.Equal(t, &Account{Username: "alice", Email: "a@x.com"}, rec.Account())
}

func TestConflictError(t *testing.T) {
	err := &ConflictError{Fields: []Field{FieldUsername, FieldEmail}}
	assert.Equal(t, "account already exists: duplicate username, email", err.Error())
	assert.True(t, err.Has(FieldEmail))

	hidden := &ConflictError{}
	assert.Equal(t, "account already exists", hidden.Error())
	assert.False(t, hidden.Has(FieldEmail))
}
