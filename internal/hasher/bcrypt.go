package hasher

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 12

// bcrypt ignores everything after the 72nd byte, so longer input is rejected
// rather than silently truncated.
const bcryptMaxPasswordBytes = 72

// Bcrypt hashes passwords with bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt creates a bcrypt hasher with the given cost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Hash returns the modular-crypt encoded bcrypt hash of password.
func (b *Bcrypt) Hash(password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if len(password) > bcryptMaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword(password, b.cost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}
	return hash, nil
}

// Verify compares password against a bcrypt hash in constant time. A
// password longer than bcrypt accepts never matches, although the
// comparison still runs.
func (b *Bcrypt) Verify(hash, password []byte) (bool, error) {
	tooLong := len(password) > bcryptMaxPasswordBytes
	if tooLong {
		password = password[:bcryptMaxPasswordBytes]
	}
	err := bcrypt.CompareHashAndPassword(hash, password)
	switch {
	case err == nil:
		return !tooLong, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
}

// MaxPasswordBytes returns the bcrypt input limit.
func (b *Bcrypt) MaxPasswordBytes() int {
	return bcryptMaxPasswordBytes
}
