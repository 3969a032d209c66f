package authz

import (
	"context"
	"errors"

	apperrors "github.com/louisbranch/roadwork/internal/platform/errors"
	"github.com/louisbranch/roadwork/internal/platform/logging"
	"github.com/louisbranch/roadwork/internal/services/access/password"
	"github.com/louisbranch/roadwork/internal/services/access/storage"
	"github.com/louisbranch/roadwork/internal/services/access/user"
	"go.uber.org/zap"
)

// Hasher hashes new secrets and checks presented ones against stored hashes.
//
// Compare must return password.ErrMismatch for a wrong secret; any other
// error is treated as a hasher malfunction.
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(hash string, secret string) error
}

// Verifier checks a username and secret against the stored hash.
type Verifier struct {
	users  storage.UserStore
	hasher Hasher
	logger *zap.Logger
}

// NewVerifier builds a verifier over users.
func NewVerifier(users storage.UserStore, hasher Hasher, logger *zap.Logger) *Verifier {
	return &Verifier{
		users:  users,
		hasher: hasher,
		logger: logging.OrNop(logger),
	}
}

// Verify returns the stored user when secret matches its hash.
//
// Unknown users, wrong secrets and unreadable hashes all yield false with a
// nil error. Only storage failures are returned as errors.
func (v *Verifier) Verify(ctx context.Context, username string, secret string) (user.User, bool, error) {
	found, ok, err := v.users.FindUser(ctx, username)
	if err != nil {
		if isInvalidName(err) {
			return user.User{}, false, nil
		}
		if apperrors.HasCode(err, apperrors.CodeStorage) {
			return user.User{}, false, err
		}
		return user.User{}, false, apperrors.Wrap(apperrors.CodeStorage, "find user", err)
	}
	if !ok {
		return user.User{}, false, nil
	}

	if err := v.hasher.Compare(found.PasswordHash, secret); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			v.logger.Error("credential verifier malfunction",
				zap.String("username", found.Username),
				zap.Error(err),
			)
		}
		return user.User{}, false, nil
	}
	return found, true, nil
}

func isInvalidName(err error) bool {
	switch apperrors.GetCode(err) {
	case apperrors.CodeUsernameEmpty, apperrors.CodeNameInvalid:
		return true
	default:
		return false
	}
}
