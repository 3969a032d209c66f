package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/louisbranch/roadwork/internal/platform/errors"
	"github.com/louisbranch/roadwork/internal/services/access/authz"
	"github.com/louisbranch/roadwork/internal/services/access/password"
	accesssqlite "github.com/louisbranch/roadwork/internal/services/access/storage/sqlite"
	"github.com/louisbranch/roadwork/internal/services/access/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

const adminSecret = "rotated-admin"

type testEnv struct {
	server  *httptest.Server
	service *authz.Service
	logs    *observer.ObservedLogs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	hasher := password.NewBcrypt(bcrypt.MinCost)
	store, err := accesssqlite.Open(filepath.Join(t.TempDir(), "users"), accesssqlite.Options{Hasher: hasher})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	service := authz.NewService(store, hasher, nil)
	require.NoError(t, service.ChangePassword(context.Background(), user.DefaultAdminUsername, adminSecret))

	core, logs := observer.New(zapcore.InfoLevel)
	server := httptest.NewServer(NewHandler(service, zap.New(core)))
	t.Cleanup(server.Close)
	return &testEnv{server: server, service: service, logs: logs}
}

func (e *testEnv) do(t *testing.T, method, path, username, secret, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if username != "" || secret != "" {
		req.SetBasicAuth(username, secret)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) admin(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	return e.do(t, method, path, user.DefaultAdminUsername, adminSecret, body)
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAdminRoutesRequireAdministrator(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/admin/teams", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")

	resp = env.do(t, http.MethodGet, "/admin/teams", "admin", "admin", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/admin/teams", "ghost", "whatever", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decodeBody[errorResponse](t, resp)
	assert.Equal(t, string(apperrors.CodeCredentialInvalid), body.Error)
	assert.Equal(t, unauthorizedMessage, body.Message)

	resp = env.admin(t, http.MethodGet, "/admin/teams", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"admin"}, decodeBody[[]string](t, resp))
}

func TestAdminProvisioningFlow(t *testing.T) {
	env := newTestEnv(t)

	resp := env.admin(t, http.MethodPost, "/admin/team/infra", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.admin(t, http.MethodPost, "/admin/team/infra", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.admin(t, http.MethodPost, "/admin/user", `{"username":"alice","password":"pw123456","admin":false}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.admin(t, http.MethodPost, "/admin/user", `{"username":"alice","password":"pw123456"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.admin(t, http.MethodGet, "/admin/link/user/alice/team/infra", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.admin(t, http.MethodPost, "/admin/link/user/alice/team/infra", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = env.admin(t, http.MethodPost, "/admin/link/user/alice/team/ghosts", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.admin(t, http.MethodGet, "/admin/users", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"admin", "alice"}, decodeBody[[]string](t, resp))

	resp = env.do(t, http.MethodGet, "/user/test_connection/infra", "alice", "pw123456", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(text))

	resp = env.admin(t, http.MethodDelete, "/admin/team/infra", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, string(apperrors.CodeTeamNotEmpty), decodeBody[errorResponse](t, resp).Error)

	resp = env.admin(t, http.MethodDelete, "/admin/link/user/alice/team/infra", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.admin(t, http.MethodDelete, "/admin/team/infra", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.admin(t, http.MethodDelete, "/admin/user/alice", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.admin(t, http.MethodDelete, "/admin/user/alice", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateUserRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	resp := env.admin(t, http.MethodPost, "/admin/user", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.admin(t, http.MethodPost, "/admin/user", `{"username":"bob","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(apperrors.CodePasswordTooShort), decodeBody[errorResponse](t, resp).Error)

	resp = env.admin(t, http.MethodPost, "/admin/user", `{"username":"","password":"longenough"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminSetsUserPassword(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.service.ProvisionUser(context.Background(), authz.NewUser{Username: "bob", Password: "firstpass"}))

	resp := env.admin(t, http.MethodPost, "/admin/user/bob/new_password", "tiny")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.admin(t, http.MethodPost, "/admin/user/bob/new_password", "secondpass")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/user/info", "bob", "secondpass", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.admin(t, http.MethodPost, "/admin/user/ghost/new_password", "whatever1")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUserChangePassword(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.service.ProvisionUser(context.Background(), authz.NewUser{Username: "carol", Password: "carolpass"}))

	resp := env.do(t, http.MethodPost, "/user/change_password", "carol", "wrongpass", "newcarolpass")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/user/change_password", "carol", "carolpass", "short")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/user/change_password", "carol", "carolpass", "newcarolpass")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/user/info", "carol", "carolpass", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/user/info", "carol", "newcarolpass", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOverlongSecretIsBadRequest(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.service.ProvisionUser(context.Background(), authz.NewUser{Username: "erin", Password: "erinpass"}))
	overlong := strings.Repeat("x", user.MaxPasswordBytes+1)

	resp := env.do(t, http.MethodPost, "/user/change_password", "erin", "erinpass", overlong)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(apperrors.CodePasswordTooLong), decodeBody[errorResponse](t, resp).Error)

	resp = env.admin(t, http.MethodPost, "/admin/user", `{"username":"frank","password":"`+overlong+`"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.admin(t, http.MethodPost, "/admin/user/erin/new_password", overlong)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Zero(t, env.logs.FilterMessage("request failed").Len())
}

func TestUserInfoOmitsHash(t *testing.T) {
	env := newTestEnv(t)

	resp := env.admin(t, http.MethodGet, "/user/info", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password_hash")
	assert.NotContains(t, string(raw), "$2a$")

	var info user.User
	require.NoError(t, json.Unmarshal(raw, &info))
	assert.Equal(t, "admin", info.Username)
	assert.True(t, info.Admin)
	assert.Equal(t, []string{"admin"}, info.Teams)
}

func TestTestConnectionDeniesNonMembers(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.service.ProvisionUser(context.Background(), authz.NewUser{Username: "dave", Password: "davepass"}))

	resp := env.do(t, http.MethodGet, "/user/test_connection/admin", "dave", "davepass", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/user/test_connection/admin", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequestIDAndAccessLog(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/healthz", "", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	requestID := resp.Header.Get(RequestIDHeader)
	assert.NotEmpty(t, requestID)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "trace-me")
	resp2, err := env.server.Client().Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, "trace-me", resp2.Header.Get(RequestIDHeader))

	entries := env.logs.FilterMessage("http request").All()
	require.Len(t, entries, 2)
	fields := entries[1].ContextMap()
	assert.Equal(t, "trace-me", fields["request_id"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Equal(t, "/healthz", fields["path"])
}

func TestAccessLogRecordsVerifiedCaller(t *testing.T) {
	env := newTestEnv(t)

	resp := env.admin(t, http.MethodGet, "/admin/teams", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/admin/teams", user.DefaultAdminUsername, "wrong-secret", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = env.admin(t, http.MethodGet, "/user/info", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entries := env.logs.FilterMessage("http request").All()
	require.Len(t, entries, 3)
	assert.Equal(t, user.DefaultAdminUsername, entries[0].ContextMap()["username"])
	assert.Equal(t, "", entries[1].ContextMap()["username"], "rejected credentials are not attributed")
	assert.Equal(t, user.DefaultAdminUsername, entries[2].ContextMap()["username"])
}

func TestConflictCarriesRecordMetadata(t *testing.T) {
	env := newTestEnv(t)

	resp := env.admin(t, http.MethodPost, "/admin/team/admin", "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeBody[errorResponse](t, resp)
	assert.Equal(t, string(apperrors.CodeAlreadyExists), body.Error)
	assert.Equal(t, map[string]string{
		apperrors.MetadataKind: "team",
		apperrors.MetadataName: "admin",
	}, body.Metadata)

	resp = env.admin(t, http.MethodDelete, "/admin/user/ghost", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body = decodeBody[errorResponse](t, resp)
	assert.Equal(t, "user", body.Metadata[apperrors.MetadataKind])
	assert.Equal(t, "ghost", body.Metadata[apperrors.MetadataName])
}

func TestUnknownMethodIsRejected(t *testing.T) {
	env := newTestEnv(t)

	resp := env.admin(t, http.MethodPut, "/admin/teams", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStorageFailureIsOpaque(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := NewHandler(failingService{err: apperrors.Wrap(apperrors.CodeStorage, "list teams", errors.New("disk on fire"))}, zap.New(core))

	req := httptest.NewRequest(http.MethodGet, "/admin/teams", nil)
	req.SetBasicAuth("root", "rootpass")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
	failures := logs.FilterMessage("request failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "root", failures[0].ContextMap()["username"])
}

type failingService struct {
	Service
	err error
}

func (f failingService) IsAdmin(context.Context, string, string) (bool, error) {
	return true, nil
}

func (f failingService) ListTeams(context.Context) ([]string, error) {
	return nil, f.err
}
