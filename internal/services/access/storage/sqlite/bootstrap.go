package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/roadwork/internal/services/access/user"
	"go.uber.org/zap"
)

// bootstrapAdmin provisions the default administrator, its team, and the
// link between them in one transaction.
func (s *Store) bootstrapAdmin(ctx context.Context, hasher Hasher) error {
	hash, err := hasher.Hash(user.DefaultAdminPassword)
	if err != nil {
		return fmt.Errorf("hash default password: %w", err)
	}

	err = s.inTx(ctx, "bootstrap admin", func(tx *sql.Tx) error {
		if err := insertTeam(ctx, tx, user.DefaultAdminTeam); err != nil {
			return err
		}
		if err := insertUser(ctx, tx, user.User{
			Username:     user.DefaultAdminUsername,
			PasswordHash: hash,
			Admin:        true,
		}); err != nil {
			return err
		}
		return insertMembership(ctx, tx, user.DefaultAdminUsername, user.DefaultAdminTeam)
	})
	if err != nil {
		return err
	}

	s.logger.Info("default administrator provisioned",
		zap.String("username", user.DefaultAdminUsername),
		zap.String("team", user.DefaultAdminTeam),
	)
	return nil
}
