package models

import (
	"bytes"
	"crypto/subtle"
	"fmt"

	"go.uber.org/zap/zapcore"
)

// SecretMarker replaces a password wherever one would be printed, so a leak
// is easy to grep for in logs.
const SecretMarker = "<!SECRET_REDACTED!>"

// Password is a plaintext password.
//
// It must never be persisted or logged. The type redacts itself when
// formatted, marshalled or added to a zap log entry, and its bytes can be
// wiped once the password has been hashed or verified.
type Password struct {
	plain []byte
}

// NewPassword copies raw into a new Password.
func NewPassword(raw string) Password {
	return Password{plain: []byte(raw)}
}

// Bytes returns the plaintext. The slice is shared with p; callers must not
// retain it past Wipe.
func (p Password) Bytes() []byte {
	return p.plain
}

// Len returns the length of the plaintext in bytes.
func (p Password) Len() int {
	return len(p.plain)
}

// IsBlank reports whether the password is empty or whitespace only.
func (p Password) IsBlank() bool {
	return len(bytes.TrimSpace(p.plain)) == 0
}

// Equal compares two passwords byte for byte in constant time.
func (p Password) Equal(other Password) bool {
	return subtle.ConstantTimeCompare(p.plain, other.plain) == 1
}

// Wipe zeroes the plaintext.
func (p Password) Wipe() {
	clear(p.plain)
}

func (p Password) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(SecretMarker))
}

func (p Password) MarshalText() ([]byte, error) {
	return []byte(SecretMarker), nil
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (p Password) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("password", SecretMarker)
	return nil
}
