package sqlite

import (
	"context"
	"database/sql"

	"github.com/louisbranch/roadwork/internal/services/access/storage"
	"github.com/louisbranch/roadwork/internal/services/access/user"
	"go.uber.org/zap"
)

// LinkUserTeam adds username to team. Both sides must already exist.
func (s *Store) LinkUserTeam(ctx context.Context, username string, team string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDB(); err != nil {
		return err
	}
	username, team, err := normalizeMembership(username, team)
	if err != nil {
		return err
	}

	return s.inTx(ctx, "link user team", func(tx *sql.Tx) error {
		ok, err := rowExists(ctx, tx, `SELECT 1 FROM "user" WHERE username = ?`, username)
		if err != nil {
			return storageFailure("check user", err)
		}
		if !ok {
			return storage.NotFound(storage.KindUser, username)
		}
		ok, err = rowExists(ctx, tx, `SELECT 1 FROM team WHERE name = ?`, team)
		if err != nil {
			return storageFailure("check team", err)
		}
		if !ok {
			return storage.NotFound(storage.KindTeam, team)
		}
		return insertMembership(ctx, tx, username, team)
	})
}

// UnlinkUserTeam removes a single membership.
func (s *Store) UnlinkUserTeam(ctx context.Context, username string, team string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDB(); err != nil {
		return err
	}
	username, team, err := normalizeMembership(username, team)
	if err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM user_team WHERE username = ? AND team = ?`,
		username, team,
	)
	if err != nil {
		return storageFailure("unlink user team", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storageFailure("unlink user team", err)
	}
	if affected == 0 {
		return storage.NotFound(storage.KindMembership, storage.MembershipName(username, team))
	}
	return nil
}

// FindUserTeams lists the teams of username in lexicographic order. Storage
// failures are logged and reported as no teams, which downstream checks read
// as "not a member".
func (s *Store) FindUserTeams(ctx context.Context, username string) []string {
	if err := s.ensureDB(); err != nil {
		s.logger.Warn("find user teams degraded", zap.String("username", username), zap.Error(err))
		return []string{}
	}
	teams, err := queryNames(ctx, s.sqlDB,
		`SELECT team FROM user_team WHERE username = ? ORDER BY team`,
		username,
	)
	if err != nil {
		s.logger.Warn("find user teams degraded", zap.String("username", username), zap.Error(err))
		return []string{}
	}
	return teams
}

func insertMembership(ctx context.Context, target execContexter, username string, team string) error {
	_, err := target.ExecContext(ctx,
		`INSERT INTO user_team (username, team) VALUES (?, ?)`,
		username, team,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return storage.AlreadyExists(storage.KindMembership, storage.MembershipName(username, team))
		case isForeignKeyViolation(err):
			return storage.NotFound(storage.KindMembership, storage.MembershipName(username, team))
		}
		return storageFailure("link user team", err)
	}
	return nil
}

func normalizeMembership(username string, team string) (string, string, error) {
	username, err := user.NormalizeUsername(username)
	if err != nil {
		return "", "", err
	}
	team, err = user.NormalizeTeamName(team)
	if err != nil {
		return "", "", err
	}
	return username, team, nil
}
