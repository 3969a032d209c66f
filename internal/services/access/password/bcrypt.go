// Package password hashes and verifies user secrets with bcrypt.
package password

import (
	"errors"
	"fmt"

	apperrors "github.com/louisbranch/roadwork/internal/platform/errors"
	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch reports a secret that does not match the stored hash.
var ErrMismatch = errors.New("password does not match hash")

// Bcrypt hashes secrets with a fixed, process-wide cost.
//
// The zero value uses bcrypt.DefaultCost. Bcrypt is safe for concurrent use.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a hasher with the given cost, clamped to bcrypt's bounds.
// A cost of zero selects bcrypt.DefaultCost.
func NewBcrypt(cost int) Bcrypt {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return Bcrypt{cost: cost}
}

// Cost returns the work factor used for new hashes.
func (b Bcrypt) Cost() int {
	if b.cost == 0 {
		return bcrypt.DefaultCost
	}
	return b.cost
}

// Hash returns a salted bcrypt hash of secret. Secrets over 72 bytes are
// rejected with CodePasswordTooLong.
func (b Bcrypt) Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), b.Cost())
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperrors.Wrap(apperrors.CodePasswordTooLong, "hash password", err)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Compare returns nil when secret matches hash, ErrMismatch when it does not,
// and any other error when the hash itself cannot be evaluated.
func (b Bcrypt) Compare(hash string, secret string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrMismatch
	default:
		return fmt.Errorf("compare password hash: %w", err)
	}
}
