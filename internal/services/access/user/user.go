package user

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/louisbranch/roadwork/internal/platform/errors"
)

// Bootstrap administrator created the first time a store is initialized.
//
// DefaultAdminPassword is also the secret IsAdmin refuses outright, so an
// administrator account cannot act until its password has been rotated.
const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin"
	DefaultAdminTeam     = "admin"
)

const (
	// MinPasswordLength is the shortest secret accepted for rotation or provisioning.
	MinPasswordLength = 8
	// MaxPasswordBytes is the longest secret bcrypt can hash.
	MaxPasswordBytes = 72
	// MaxNameLength bounds usernames and team names.
	MaxNameLength = 64

	redactedHash = "?????"
)

var (
	// ErrEmptyUsername indicates a missing username.
	ErrEmptyUsername = apperrors.New(apperrors.CodeUsernameEmpty, "username is required")
	// ErrEmptyTeamName indicates a missing team name.
	ErrEmptyTeamName = apperrors.New(apperrors.CodeTeamNameEmpty, "team name is required")
	// ErrInvalidName indicates a name that cannot be stored or routed.
	ErrInvalidName = apperrors.New(apperrors.CodeNameInvalid, "name must be at most 64 printable characters without '/'")
	// ErrPasswordTooShort indicates a secret below MinPasswordLength.
	ErrPasswordTooShort = apperrors.New(apperrors.CodePasswordTooShort, "password must be at least 8 characters")
	// ErrPasswordTooLong indicates a secret longer than MaxPasswordBytes.
	ErrPasswordTooLong = apperrors.New(apperrors.CodePasswordTooLong, "password must be at most 72 bytes")
)

// User is an identity record with its materialized team memberships.
type User struct {
	Username     string   `json:"username"`
	PasswordHash string   `json:"password_hash,omitempty"`
	Teams        []string `json:"teams"`
	Admin        bool     `json:"admin"`
}

// Sanitized returns a copy safe to hand across the service boundary: the
// password hash is dropped and teams are copied and sorted.
func (u User) Sanitized() User {
	teams := make([]string, len(u.Teams))
	copy(teams, u.Teams)
	sort.Strings(teams)
	return User{
		Username: u.Username,
		Teams:    teams,
		Admin:    u.Admin,
	}
}

// HasTeam reports whether team is one of the user's memberships.
func (u User) HasTeam(team string) bool {
	for _, t := range u.Teams {
		if t == team {
			return true
		}
	}
	return false
}

// String never includes the password hash.
func (u User) String() string {
	return "User{username: " + u.Username + ", password_hash: " + redactedHash +
		", teams: [" + strings.Join(u.Teams, " ") + "], admin: " + boolString(u.Admin) + "}"
}

// NormalizeUsername trims surrounding whitespace and validates the result.
// Usernames are case-sensitive.
func NormalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", ErrEmptyUsername
	}
	if err := validateName(username); err != nil {
		return "", err
	}
	return username, nil
}

// NormalizeTeamName trims surrounding whitespace and validates the result.
func NormalizeTeamName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyTeamName
	}
	if err := validateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// ValidatePassword enforces the secret length bounds: at least
// MinPasswordLength characters and at most MaxPasswordBytes bytes. Secrets are
// never trimmed; surrounding whitespace is part of the secret.
func ValidatePassword(secret string) error {
	if utf8.RuneCountInString(secret) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(secret) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

func validateName(name string) error {
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrInvalidName
	}
	for _, r := range name {
		if r == '/' || unicode.IsControl(r) {
			return ErrInvalidName
		}
	}
	return nil
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
