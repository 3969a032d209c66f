package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/louisbranch/roadwork/internal/platform/errors"
	"github.com/louisbranch/roadwork/internal/platform/logging"
	sqlitemigrate "github.com/louisbranch/roadwork/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/roadwork/internal/services/access/password"
	"github.com/louisbranch/roadwork/internal/services/access/storage"
	"github.com/louisbranch/roadwork/internal/services/access/storage/sqlite/migrations"
	"go.uber.org/zap"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Hasher produces the stored hash for the bootstrap administrator secret.
type Hasher interface {
	Hash(secret string) (string, error)
}

// Options configures Open.
type Options struct {
	// Logger receives bootstrap and degraded-read diagnostics.
	Logger *zap.Logger
	// Hasher hashes the bootstrap secret. Defaults to bcrypt at default cost.
	Hasher Hasher
}

// Store implements access persistence over SQLite.
//
// A Store is safe for concurrent use; the handle is shared by every component
// for the lifetime of the process.
type Store struct {
	sqlDB        *sql.DB
	logger       *zap.Logger
	bootstrapped bool
}

type execContexter interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryRowContexter interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens the access store at path, applies bundled migrations, and, when
// the file did not exist beforehand, provisions the default administrator.
//
// An existing file is never re-bootstrapped, even if the administrator row has
// since been removed.
func Open(path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	logger := logging.OrNop(opts.Logger)
	hasher := opts.Hasher
	if hasher == nil {
		hasher = password.Bcrypt{}
	}

	cleanPath := filepath.Clean(path)
	fresh, err := isMissing(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat storage path: %w", err)
	}
	if fresh {
		if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	dsn := cleanPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{
		sqlDB:  sqlDB,
		logger: logger,
	}
	// A fresh file that fails to initialize is removed so the next start
	// retries the bootstrap instead of skipping it.
	fail := func(err error) (*Store, error) {
		_ = sqlDB.Close()
		if fresh {
			removeDatabaseFiles(cleanPath)
		}
		return nil, err
	}

	ctx := context.Background()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fail(fmt.Errorf("ping sqlite db: %w", err))
	}

	applied, err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, "")
	if err != nil {
		return fail(fmt.Errorf("run migrations: %w", err))
	}
	if len(applied) > 0 {
		logger.Info("database schema applied", zap.String("path", cleanPath), zap.Strings("migrations", applied))
	}

	if !fresh {
		logger.Info("bootstrap skipped: store exists", zap.String("path", cleanPath))
		return store, nil
	}
	if err := store.bootstrapAdmin(ctx, hasher); err != nil {
		return fail(fmt.Errorf("bootstrap admin: %w", err))
	}
	store.bootstrapped = true
	return store, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// DB returns the raw database handle.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// Bootstrapped reports whether this Open created the schema and the default
// administrator.
func (s *Store) Bootstrapped() bool {
	return s != nil && s.bootstrapped
}

func (s *Store) ensureDB() error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// inTx runs fn inside a write transaction and commits when fn succeeds.
func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storageFailure(op+": start transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageFailure(op+": commit", err)
	}
	return nil
}

func storageFailure(message string, err error) error {
	return apperrors.Wrap(apperrors.CodeStorage, message, err)
}

func rowExists(ctx context.Context, q queryRowContexter, query string, args ...any) (bool, error) {
	var found int
	err := q.QueryRowContext(ctx, query, args...).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isMissing(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	return false, err
}

func removeDatabaseFiles(path string) {
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		_ = os.Remove(path + suffix)
	}
}

func sqliteCode(err error) int {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	switch sqliteCode(err) {
	case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if sqliteCode(err) == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

var _ storage.Store = (*Store)(nil)
