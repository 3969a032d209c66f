package authz

import (
	"context"

	"github.com/louisbranch/roadwork/internal/platform/logging"
	"github.com/louisbranch/roadwork/internal/services/access/storage"
	"github.com/louisbranch/roadwork/internal/services/access/user"
	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/louisbranch/roadwork/internal/services/access/authz"

// NewUser describes an account to provision.
type NewUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
}

// Service answers authorization questions and performs account mutations.
//
// Every check round-trips to the store; nothing is cached.
type Service struct {
	store    storage.Store
	hasher   Hasher
	verifier *Verifier
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewService wires a service over store and hasher.
func NewService(store storage.Store, hasher Hasher, logger *zap.Logger) *Service {
	logger = logging.OrNop(logger)
	return &Service{
		store:    store,
		hasher:   hasher,
		verifier: NewVerifier(store, hasher, logger),
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// Verifier exposes the credential verifier used by the service.
func (s *Service) Verifier() *Verifier {
	return s.verifier
}

// IsAdmin reports whether the credentials belong to an administrator.
//
// The bootstrap secret is refused before any lookup so the default account
// cannot administer until its password is rotated.
func (s *Service) IsAdmin(ctx context.Context, username string, secret string) (allowed bool, err error) {
	ctx, span := s.start(ctx, "IsAdmin")
	defer func() { endSpan(span, err) }()

	if secret == user.DefaultAdminPassword {
		s.logger.Warn("default password not rotated", zap.String("username", username))
		return false, nil
	}
	found, ok, err := s.verifier.Verify(ctx, username, secret)
	if err != nil || !ok {
		return false, err
	}
	return found.Admin, nil
}

// HasTeam reports whether the credentials are valid and the user belongs to team.
func (s *Service) HasTeam(ctx context.Context, username string, secret string, team string) (allowed bool, err error) {
	ctx, span := s.start(ctx, "HasTeam")
	defer func() { endSpan(span, err) }()

	team, nameErr := user.NormalizeTeamName(team)
	if nameErr != nil {
		return false, nil
	}
	found, ok, err := s.verifier.Verify(ctx, username, secret)
	if err != nil || !ok {
		return false, err
	}
	return found.HasTeam(team), nil
}

// GetAuthenticatedUser returns the sanitized user when the credentials are valid.
func (s *Service) GetAuthenticatedUser(ctx context.Context, username string, secret string) (_ user.User, _ bool, err error) {
	ctx, span := s.start(ctx, "GetAuthenticatedUser")
	defer func() { endSpan(span, err) }()

	found, ok, err := s.verifier.Verify(ctx, username, secret)
	if err != nil || !ok {
		return user.User{}, false, err
	}
	return found.Sanitized(), true, nil
}

// Authenticate is GetAuthenticatedUser under its transport-facing name.
func (s *Service) Authenticate(ctx context.Context, username string, secret string) (user.User, bool, error) {
	return s.GetAuthenticatedUser(ctx, username, secret)
}

// Authorize checks administrator rights when requiredTeam is empty and team
// membership otherwise.
func (s *Service) Authorize(ctx context.Context, username string, secret string, requiredTeam string) (bool, error) {
	if requiredTeam == "" {
		return s.IsAdmin(ctx, username, secret)
	}
	return s.HasTeam(ctx, username, secret, requiredTeam)
}

// ChangePassword stores a new hash for username. Callers authenticate and
// validate the secret first.
func (s *Service) ChangePassword(ctx context.Context, username string, newSecret string) (err error) {
	ctx, span := s.start(ctx, "ChangePassword")
	defer func() { endSpan(span, err) }()

	hash, err := s.hasher.Hash(newSecret)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, username, hash); err != nil {
		return err
	}
	s.logger.Info("password changed", zap.String("username", username))
	return nil
}

// RotatePassword validates newSecret and then changes it.
func (s *Service) RotatePassword(ctx context.Context, username string, newSecret string) error {
	if err := user.ValidatePassword(newSecret); err != nil {
		return err
	}
	return s.ChangePassword(ctx, username, newSecret)
}

// ProvisionUser creates an account with a hashed secret and no memberships.
func (s *Service) ProvisionUser(ctx context.Context, input NewUser) (err error) {
	ctx, span := s.start(ctx, "ProvisionUser")
	defer func() { endSpan(span, err) }()

	username, err := user.NormalizeUsername(input.Username)
	if err != nil {
		return err
	}
	if err := user.ValidatePassword(input.Password); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return err
	}
	if err := s.store.InsertUser(ctx, user.User{
		Username:     username,
		PasswordHash: hash,
		Admin:        input.Admin,
	}); err != nil {
		return err
	}
	s.logger.Info("user provisioned", zap.String("username", username), zap.Bool("admin", input.Admin))
	return nil
}

// ProvisionTeam creates an empty team.
func (s *Service) ProvisionTeam(ctx context.Context, name string) (err error) {
	ctx, span := s.start(ctx, "ProvisionTeam")
	defer func() { endSpan(span, err) }()

	if err := s.store.InsertTeam(ctx, name); err != nil {
		return err
	}
	s.logger.Info("team provisioned", zap.String("team", name))
	return nil
}

// RemoveUser deletes a user together with its memberships.
func (s *Service) RemoveUser(ctx context.Context, username string) (err error) {
	ctx, span := s.start(ctx, "RemoveUser")
	defer func() { endSpan(span, err) }()

	if err := s.store.DeleteUser(ctx, username); err != nil {
		return err
	}
	s.logger.Info("user removed", zap.String("username", username))
	return nil
}

// RemoveTeam deletes a team that has no members.
func (s *Service) RemoveTeam(ctx context.Context, name string) (err error) {
	ctx, span := s.start(ctx, "RemoveTeam")
	defer func() { endSpan(span, err) }()

	if err := s.store.DeleteTeam(ctx, name); err != nil {
		return err
	}
	s.logger.Info("team removed", zap.String("team", name))
	return nil
}

// LinkUserTeam adds username to team.
func (s *Service) LinkUserTeam(ctx context.Context, username string, team string) (err error) {
	ctx, span := s.start(ctx, "LinkUserTeam")
	defer func() { endSpan(span, err) }()

	if err := s.store.LinkUserTeam(ctx, username, team); err != nil {
		return err
	}
	s.logger.Info("user linked to team", zap.String("username", username), zap.String("team", team))
	return nil
}

// UnlinkUserTeam removes username from team.
func (s *Service) UnlinkUserTeam(ctx context.Context, username string, team string) (err error) {
	ctx, span := s.start(ctx, "UnlinkUserTeam")
	defer func() { endSpan(span, err) }()

	if err := s.store.UnlinkUserTeam(ctx, username, team); err != nil {
		return err
	}
	s.logger.Info("user unlinked from team", zap.String("username", username), zap.String("team", team))
	return nil
}

// ListUsers returns every username in lexicographic order.
func (s *Service) ListUsers(ctx context.Context) (_ []string, err error) {
	ctx, span := s.start(ctx, "ListUsers")
	defer func() { endSpan(span, err) }()

	return s.store.ListUsers(ctx)
}

// ListTeams returns every team name in lexicographic order.
func (s *Service) ListTeams(ctx context.Context) (_ []string, err error) {
	ctx, span := s.start(ctx, "ListTeams")
	defer func() { endSpan(span, err) }()

	return s.store.ListTeams(ctx)
}

func (s *Service) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "access."+op)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}
