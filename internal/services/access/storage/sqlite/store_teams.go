package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/roadwork/internal/services/access/storage"
	"github.com/louisbranch/roadwork/internal/services/access/user"
)

// InsertTeam stores a new team.
func (s *Store) InsertTeam(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDB(); err != nil {
		return err
	}
	name, err := user.NormalizeTeamName(name)
	if err != nil {
		return err
	}
	return insertTeam(ctx, s.sqlDB, name)
}

// DeleteTeam removes an empty team. The member count and the delete share a
// transaction so a concurrent link cannot slip in between them.
func (s *Store) DeleteTeam(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDB(); err != nil {
		return err
	}
	name, err := user.NormalizeTeamName(name)
	if err != nil {
		return err
	}

	return s.inTx(ctx, "delete team", func(tx *sql.Tx) error {
		var members int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM user_team WHERE team = ?`, name,
		).Scan(&members); err != nil {
			return storageFailure("count team members", err)
		}
		if members > 0 {
			return fmt.Errorf("team %q has %d members: %w", name, members, storage.ErrTeamNotEmpty)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM team WHERE name = ?`, name)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("team %q: %w", name, storage.ErrTeamNotEmpty)
			}
			return storageFailure("delete team", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return storageFailure("delete team", err)
		}
		if affected == 0 {
			return storage.NotFound(storage.KindTeam, name)
		}
		return nil
	})
}

// ListTeams returns every team name in lexicographic order.
func (s *Store) ListTeams(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	names, err := queryNames(ctx, s.sqlDB, `SELECT name FROM team ORDER BY name`)
	if err != nil {
		return nil, storageFailure("list teams", err)
	}
	return names, nil
}

func insertTeam(ctx context.Context, target execContexter, name string) error {
	if _, err := target.ExecContext(ctx, `INSERT INTO team (name) VALUES (?)`, name); err != nil {
		if isUniqueViolation(err) {
			return storage.AlreadyExists(storage.KindTeam, name)
		}
		return storageFailure("insert team", err)
	}
	return nil
}
