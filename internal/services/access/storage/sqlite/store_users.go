package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/roadwork/internal/services/access/storage"
	"github.com/louisbranch/roadwork/internal/services/access/user"
)

// FindUser loads a user and its teams. A missing user is not an error.
func (s *Store) FindUser(ctx context.Context, username string) (user.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, false, err
	}
	if err := s.ensureDB(); err != nil {
		return user.User{}, false, err
	}
	username, err := user.NormalizeUsername(username)
	if err != nil {
		return user.User{}, false, err
	}

	var found user.User
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT username, password_hash, admin FROM "user" WHERE username = ?`,
		username,
	).Scan(&found.Username, &found.PasswordHash, &found.Admin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, false, nil
		}
		return user.User{}, false, storageFailure("find user", err)
	}

	found.Teams = s.FindUserTeams(ctx, found.Username)
	return found, true, nil
}

// InsertUser stores a new user. Memberships are not touched.
func (s *Store) InsertUser(ctx context.Context, u user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDB(); err != nil {
		return err
	}
	username, err := user.NormalizeUsername(u.Username)
	if err != nil {
		return err
	}
	if strings.TrimSpace(u.PasswordHash) == "" {
		return fmt.Errorf("password hash is required")
	}
	u.Username = username

	return insertUser(ctx, s.sqlDB, u)
}

// DeleteUser removes every membership of username and then the user row in
// one transaction; a failure at either step leaves both intact.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDB(); err != nil {
		return err
	}
	username, err := user.NormalizeUsername(username)
	if err != nil {
		return err
	}

	return s.inTx(ctx, "delete user", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_team WHERE username = ?`, username); err != nil {
			return storageFailure("delete user memberships", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM "user" WHERE username = ?`, username)
		if err != nil {
			return storageFailure("delete user", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return storageFailure("delete user", err)
		}
		if affected == 0 {
			return storage.NotFound(storage.KindUser, username)
		}
		return nil
	})
}

// UpdatePassword replaces the stored hash for username.
func (s *Store) UpdatePassword(ctx context.Context, username string, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ensureDB(); err != nil {
		return err
	}
	username, err := user.NormalizeUsername(username)
	if err != nil {
		return err
	}
	if strings.TrimSpace(passwordHash) == "" {
		return fmt.Errorf("password hash is required")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE "user" SET password_hash = ? WHERE username = ?`,
		passwordHash, username,
	)
	if err != nil {
		return storageFailure("update password", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storageFailure("update password", err)
	}
	if affected == 0 {
		return storage.NotFound(storage.KindUser, username)
	}
	return nil
}

// ListUsers returns every username in lexicographic order.
func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	names, err := queryNames(ctx, s.sqlDB, `SELECT username FROM "user" ORDER BY username`)
	if err != nil {
		return nil, storageFailure("list users", err)
	}
	return names, nil
}

func insertUser(ctx context.Context, target execContexter, u user.User) error {
	_, err := target.ExecContext(ctx,
		`INSERT INTO "user" (username, password_hash, admin) VALUES (?, ?, ?)`,
		u.Username, u.PasswordHash, u.Admin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.AlreadyExists(storage.KindUser, u.Username)
		}
		return storageFailure("insert user", err)
	}
	return nil
}

func queryNames(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}
