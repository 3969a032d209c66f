package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/louisbranch/roadwork/internal/platform/logging"
	"github.com/louisbranch/roadwork/internal/platform/requestctx"
	"github.com/louisbranch/roadwork/internal/services/access/authz"
	"github.com/louisbranch/roadwork/internal/services/access/user"
	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 10

// Service is the access behaviour the HTTP surface depends on.
type Service interface {
	IsAdmin(ctx context.Context, username string, secret string) (bool, error)
	HasTeam(ctx context.Context, username string, secret string, team string) (bool, error)
	GetAuthenticatedUser(ctx context.Context, username string, secret string) (user.User, bool, error)
	ChangePassword(ctx context.Context, username string, newSecret string) error
	RotatePassword(ctx context.Context, username string, newSecret string) error
	ProvisionUser(ctx context.Context, input authz.NewUser) error
	ProvisionTeam(ctx context.Context, name string) error
	RemoveUser(ctx context.Context, username string) error
	RemoveTeam(ctx context.Context, name string) error
	LinkUserTeam(ctx context.Context, username string, team string) error
	UnlinkUserTeam(ctx context.Context, username string, team string) error
	ListUsers(ctx context.Context) ([]string, error)
	ListTeams(ctx context.Context) ([]string, error)
}

// Handler routes HTTP requests to the access service.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler builds the HTTP handler, including request-ID and access-log
// middleware.
func NewHandler(service Service, logger *zap.Logger) http.Handler {
	h := &Handler{
		service: service,
		logger:  logging.OrNop(logger),
	}
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return withRequestLogging(h.logger, mux)
}

// RegisterRoutes registers every access route on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/teams", h.requireAdmin(h.handleListTeams))
	mux.HandleFunc("POST /admin/team/{team}", h.requireAdmin(h.handleCreateTeam))
	mux.HandleFunc("DELETE /admin/team/{team}", h.requireAdmin(h.handleDeleteTeam))
	mux.HandleFunc("GET /admin/users", h.requireAdmin(h.handleListUsers))
	mux.HandleFunc("POST /admin/user", h.requireAdmin(h.handleCreateUser))
	mux.HandleFunc("DELETE /admin/user/{user}", h.requireAdmin(h.handleDeleteUser))
	mux.HandleFunc("POST /admin/user/{user}/new_password", h.requireAdmin(h.handleSetPassword))
	mux.HandleFunc("GET /admin/link/user/{user}/team/{team}", h.requireAdmin(h.handleLink))
	mux.HandleFunc("POST /admin/link/user/{user}/team/{team}", h.requireAdmin(h.handleLink))
	mux.HandleFunc("DELETE /admin/link/user/{user}/team/{team}", h.requireAdmin(h.handleUnlink))

	mux.HandleFunc("POST /user/change_password", h.handleChangePassword)
	mux.HandleFunc("GET /user/info", h.handleUserInfo)
	mux.HandleFunc("GET /user/test_connection/{team}", h.handleTestConnection)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

// requireAdmin runs next only for administrator credentials.
func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, secret, ok := r.BasicAuth()
		if !ok {
			h.writeUnauthorized(w)
			return
		}
		allowed, err := h.service.IsAdmin(r.Context(), username, secret)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if !allowed {
			h.writeUnauthorized(w)
			return
		}
		next(w, withCaller(w, r, username))
	}
}

func (h *Handler) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.service.ListTeams(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (h *Handler) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ProvisionTeam(r.Context(), r.PathValue("team")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveTeam(r.Context(), r.PathValue("team")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var input authz.NewUser
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be a user object")
		return
	}
	if err := h.service.ProvisionUser(r.Context(), input); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveUser(r.Context(), r.PathValue("user")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	secret, err := readSecret(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must contain the new password")
		return
	}
	if err := h.service.RotatePassword(r.Context(), r.PathValue("user"), secret); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLink(w http.ResponseWriter, r *http.Request) {
	if err := h.service.LinkUserTeam(r.Context(), r.PathValue("user"), r.PathValue("team")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnlink(w http.ResponseWriter, r *http.Request) {
	if err := h.service.UnlinkUserTeam(r.Context(), r.PathValue("user"), r.PathValue("team")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleChangePassword re-verifies the caller before storing a new secret.
func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	r, caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	secret, err := readSecret(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must contain the new password")
		return
	}
	if err := h.service.RotatePassword(r.Context(), caller.Username, secret); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	_, caller, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, caller)
}

func (h *Handler) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	username, secret, ok := r.BasicAuth()
	if !ok {
		h.writeUnauthorized(w)
		return
	}
	allowed, err := h.service.HasTeam(r.Context(), username, secret, r.PathValue("team"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !allowed {
		h.writeUnauthorized(w)
		return
	}
	withCaller(w, r, username)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

// authenticate resolves the caller from basic auth, writing a 401 or error
// response when it cannot. The returned request carries the caller's name.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (*http.Request, user.User, bool) {
	username, secret, ok := r.BasicAuth()
	if !ok {
		h.writeUnauthorized(w)
		return r, user.User{}, false
	}
	caller, ok, err := h.service.GetAuthenticatedUser(r.Context(), username, secret)
	if err != nil {
		h.writeError(w, r, err)
		return r, user.User{}, false
	}
	if !ok {
		h.writeUnauthorized(w)
		return r, user.User{}, false
	}
	return withCaller(w, r, caller.Username), caller, true
}

// withCaller records a verified username on the request context and on the
// access log entry.
func withCaller(w http.ResponseWriter, r *http.Request, username string) *http.Request {
	if rec, ok := w.(*statusRecorder); ok {
		rec.username = username
	}
	return r.WithContext(requestctx.WithUsername(r.Context(), username))
}

func readSecret(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
