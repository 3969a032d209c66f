package storage

import (
	"context"
	"fmt"

	apperrors "github.com/louisbranch/roadwork/internal/platform/errors"
	"github.com/louisbranch/roadwork/internal/services/access/user"
)

var (
	// ErrNotFound indicates a requested record of any kind is missing.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")
	// ErrUserExists indicates a duplicate username on insert.
	ErrUserExists = apperrors.WithMetadata(apperrors.CodeAlreadyExists, "user already exists", kindMetadata(KindUser))
	// ErrTeamExists indicates a duplicate team name on insert.
	ErrTeamExists = apperrors.WithMetadata(apperrors.CodeAlreadyExists, "team already exists", kindMetadata(KindTeam))
	// ErrMembershipExists indicates the user is already linked to the team.
	ErrMembershipExists = apperrors.WithMetadata(apperrors.CodeAlreadyExists, "membership already exists", kindMetadata(KindMembership))
	// ErrTeamNotEmpty indicates a team deletion while memberships reference it.
	ErrTeamNotEmpty = apperrors.New(apperrors.CodeTeamNotEmpty, "team not empty")
)

// Record kinds carried in error metadata.
const (
	KindUser       = "user"
	KindTeam       = "team"
	KindMembership = "membership"
)

// NotFound reports a missing record of kind named name. It matches ErrNotFound.
func NotFound(kind string, name string) error {
	return apperrors.WithMetadata(apperrors.CodeNotFound, fmt.Sprintf("%s %q not found", kind, name), map[string]string{
		apperrors.MetadataKind: kind,
		apperrors.MetadataName: name,
	})
}

// AlreadyExists reports a duplicate record of kind named name. It matches the
// Err*Exists sentinel of the same kind.
func AlreadyExists(kind string, name string) error {
	return apperrors.WithMetadata(apperrors.CodeAlreadyExists, fmt.Sprintf("%s %q already exists", kind, name), map[string]string{
		apperrors.MetadataKind: kind,
		apperrors.MetadataName: name,
	})
}

// MembershipName renders a membership for error metadata.
func MembershipName(username string, team string) string {
	return username + "@" + team
}

func kindMetadata(kind string) map[string]string {
	return map[string]string{apperrors.MetadataKind: kind}
}

// UserStore persists user records.
type UserStore interface {
	// FindUser loads a user and its teams. A missing user is (User{}, false, nil).
	FindUser(ctx context.Context, username string) (user.User, bool, error)
	InsertUser(ctx context.Context, u user.User) error
	// DeleteUser removes the user's memberships and then the user, atomically.
	DeleteUser(ctx context.Context, username string) error
	UpdatePassword(ctx context.Context, username string, passwordHash string) error
	// ListUsers returns usernames in lexicographic order.
	ListUsers(ctx context.Context) ([]string, error)
}

// TeamStore persists team records.
type TeamStore interface {
	InsertTeam(ctx context.Context, name string) error
	// DeleteTeam fails with ErrTeamNotEmpty while any membership references name.
	DeleteTeam(ctx context.Context, name string) error
	// ListTeams returns team names in lexicographic order.
	ListTeams(ctx context.Context) ([]string, error)
}

// MembershipStore persists user-team links.
type MembershipStore interface {
	LinkUserTeam(ctx context.Context, username string, team string) error
	UnlinkUserTeam(ctx context.Context, username string, team string) error
	// FindUserTeams is best-effort: storage failures degrade to an empty set.
	FindUserTeams(ctx context.Context, username string) []string
}

// Store combines every persistence contract of the access service.
type Store interface {
	UserStore
	TeamStore
	MembershipStore
}
