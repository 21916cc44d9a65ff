package session_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-desk/internal/auth"
	"github.com/odyssey-erp/odyssey-desk/internal/session"
	"github.com/odyssey-erp/odyssey-desk/internal/shared"
)

func newRouter(h *harness) http.Handler {
	handler := session.NewHandler(nil, h.session)
	r := chi.NewRouter()
	handler.MountPublic(r)
	handler.MountAccount(r)
	return r
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerLogin(t *testing.T) {
	h := newHarness(t)
	router := newRouter(h)

	rec := do(t, router, http.MethodPost, "/auth/login", `{"username":"tina","password":"secret"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		User        auth.User `json:"user"`
		Role        string    `json:"role"`
		Active      bool      `json:"active"`
		Permissions []string  `json:"permissions"`
		ViewScope   string    `json:"view_scope"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "tina", body.User.Username)
	assert.Equal(t, "technician", body.Role)
	assert.True(t, body.Active)
	assert.Contains(t, body.Permissions, "tasks.view")
	assert.Equal(t, "department", body.ViewScope)
}

func TestHandlerLoginFailures(t *testing.T) {
	h := newHarness(t)
	router := newRouter(h)

	rec := do(t, router, http.MethodPost, "/auth/login", `{"username":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.accounts.loginErr = &auth.ValidationError{Fields: map[string]string{"password": "is required"}}
	rec = do(t, router, http.MethodPost, "/auth/login", `{"username":"tina"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"password":"is required"`)

	h.accounts.loginErr = shared.ErrInvalidCredentials
	rec = do(t, router, http.MethodPost, "/auth/login", `{"username":"tina","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password")
	assert.Equal(t, session.StateBootstrapping, h.session.State())
}

func TestHandlerLogout(t *testing.T) {
	h := newHarness(t)
	router := newRouter(h)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/auth/login", `{"username":"tina","password":"secret"}`).Code)

	rec := do(t, router, http.MethodPost, "/auth/logout", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, session.StateAnonymous, h.session.State())
}

func TestHandlerNotifications(t *testing.T) {
	h := newHarness(t)
	router := newRouter(h)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/auth/login", `{"username":"tina","password":"secret"}`).Code)

	rec := do(t, router, http.MethodGet, "/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unread":1`)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/notifications/abc/read", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodPost, "/notifications/2/read", "").Code)
	assert.Zero(t, h.session.UnreadCount())
	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodPost, "/notifications/read-all", "").Code)
}

func TestHandlerProfileAndPassword(t *testing.T) {
	h := newHarness(t)
	router := newRouter(h)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/auth/login", `{"username":"tina","password":"secret"}`).Code)

	rec := do(t, router, http.MethodPatch, "/auth/me", `{"first_name":"Tina"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"first_name":"Tina"`)

	h.accounts.changeErr = &auth.ValidationError{Fields: map[string]string{"new_password": "must be at least 8 characters"}}
	rec = do(t, router, http.MethodPost, "/auth/password", `{"old_password":"a","new_password":"b","confirm_password":"b"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "new_password")

	h.accounts.changeErr = nil
	rec = do(t, router, http.MethodPost, "/auth/password", `{"old_password":"a","new_password":"longer-pass","confirm_password":"longer-pass"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
