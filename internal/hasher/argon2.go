package hasher

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	argon2SaltLen = 16
	argon2KeyLen  = 32

	// Generous enough for passphrases, small enough that nobody hashes
	// megabytes of input.
	argon2MaxPasswordBytes = 512

	// Upper bounds on the costs read back from a stored hash.
	argon2MaxMemoryKiB  = 256 * 1024
	argon2MaxIterations = 16
)

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	// MemoryKiB is the memory cost in KiB.
	MemoryKiB uint32
	// Iterations is the time cost.
	Iterations uint32
	// Parallelism is the number of lanes.
	Parallelism uint8
}

// DefaultArgon2Params follow the OWASP recommendation for argon2id.
var DefaultArgon2Params = Argon2Params{
	MemoryKiB:   64 * 1024,
	Iterations:  1,
	Parallelism: 4,
}

// Argon2id hashes passwords with argon2id and encodes them in PHC format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
type Argon2id struct {
	params Argon2Params
}

// NewArgon2id creates an argon2id hasher. A zero Argon2Params selects
// DefaultArgon2Params.
func NewArgon2id(params Argon2Params) *Argon2id {
	if params == (Argon2Params{}) {
		params = DefaultArgon2Params
	}
	return &Argon2id{params: params}
}

// Hash returns the PHC-encoded argon2id hash of password.
func (a *Argon2id) Hash(password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if len(password) > argon2MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey(password, salt, a.params.Iterations, a.params.MemoryKiB, a.params.Parallelism, argon2KeyLen)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		a.params.MemoryKiB,
		a.params.Iterations,
		a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return []byte(encoded), nil
}

// Verify recomputes the hash with the parameters and salt stored in hash and
// compares the result in constant time.
func (a *Argon2id) Verify(hash, password []byte) (bool, error) {
	parts := bytes.Split(hash, []byte("$"))
	if len(parts) != 6 || len(parts[0]) != 0 {
		return false, fmt.Errorf("%w: wrong number of segments", ErrInvalidHash)
	}
	if string(parts[1]) != "argon2id" {
		return false, fmt.Errorf("%w: unsupported variant %q", ErrInvalidHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(string(parts[2]), "v=%d", &version); err != nil {
		return false, fmt.Errorf("%w: version: %v", ErrInvalidHash, err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("%w: unsupported version %d", ErrInvalidHash, version)
	}

	var memory, iterations, parallelism uint32
	if _, err := fmt.Sscanf(string(parts[3]), "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("%w: parameters: %v", ErrInvalidHash, err)
	}
	if parallelism == 0 || parallelism > 255 || iterations == 0 || iterations > argon2MaxIterations || memory > argon2MaxMemoryKiB {
		return false, fmt.Errorf("%w: parameters out of range", ErrInvalidHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(string(parts[4]))
	if err != nil {
		return false, fmt.Errorf("%w: salt: %v", ErrInvalidHash, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(string(parts[5]))
	if err != nil {
		return false, fmt.Errorf("%w: key: %v", ErrInvalidHash, err)
	}
	if len(want) == 0 || len(want) > 1024 {
		return false, fmt.Errorf("%w: key length %d", ErrInvalidHash, len(want))
	}

	got := argon2.IDKey(password, salt, iterations, memory, uint8(parallelism), uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// MaxPasswordBytes returns the longest password accepted by Hash.
func (a *Argon2id) MaxPasswordBytes() int {
	return argon2MaxPasswordBytes
}
