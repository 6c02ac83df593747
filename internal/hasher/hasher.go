// Package hasher provides salted, one-way password hashing with
// constant-time verification.
package hasher

import (
	"errors"
	"fmt"
)

// Supported algorithm names.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")
	// ErrPasswordTooLong is returned when a password exceeds MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrInvalidHash is returned by Verify when the stored hash cannot be parsed.
	ErrInvalidHash = errors.New("invalid password hash")
)

// Hasher hashes passwords and verifies plaintext against stored hashes.
// The salt is generated per call and embedded in the returned hash.
type Hasher interface {
	// Hash returns the encoded hash of password.
	Hash(password []byte) ([]byte, error)
	// Verify reports whether password matches hash. A malformed hash
	// yields an error wrapping ErrInvalidHash.
	Verify(hash, password []byte) (bool, error)
	// MaxPasswordBytes is the longest password Hash accepts.
	MaxPasswordBytes() int
}

// Options configures the hasher returned by New.
type Options struct {
	// Algorithm is AlgorithmBcrypt or AlgorithmArgon2id. Empty means bcrypt.
	Algorithm string
	// BcryptCost is the bcrypt work factor. Zero means DefaultBcryptCost.
	BcryptCost int
	// Argon2 holds argon2id parameters. Zero value means DefaultArgon2Params.
	Argon2 Argon2Params
}

// New returns the hasher selected by opts.
func New(opts Options) (Hasher, error) {
	switch opts.Algorithm {
	case "", AlgorithmBcrypt:
		return NewBcrypt(opts.BcryptCost)
	case AlgorithmArgon2id:
		return NewArgon2id(opts.Argon2), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", opts.Algorithm)
	}
}
