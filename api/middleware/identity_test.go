package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tindahan/marketplace-backend/pkg/enums"
	pkgerrors "github.com/tindahan/marketplace-backend/pkg/errors"
)

func TestIdentityRequiresUserID(t *testing.T) {
	called := false
	h := Identity(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/orders/u1", nil))

	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.False(t, called)

	var payload struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.False(t, payload.Success)
	assert.Equal(t, string(pkgerrors.CodeUnauthorized), payload.Error.Code)
}

func TestIdentityCarriesUserAndRole(t *testing.T) {
	cases := map[string]enums.ActorRole{
		"admin":  enums.ActorRoleAdmin,
		"ADMIN":  enums.ActorRoleAdmin,
		"seller": enums.ActorRoleUser,
		"":       enums.ActorRoleUser,
	}
	for header, want := range cases {
		var gotUser string
		var gotRole enums.ActorRole
		h := Identity(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser = UserIDFromContext(r.Context())
			gotRole = RoleFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/orders/u1", nil)
		req.Header.Set("x-user-id", " u1 ")
		req.Header.Set("x-user-role", header)
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "u1", gotUser)
		assert.Equal(t, want, gotRole, "role header %q", header)
	}
}

func TestRequireRoleAdmin(t *testing.T) {
	h := RequireRole(enums.ActorRoleAdmin, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/orders/x/force-status", nil)
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req.WithContext(WithRole(req.Context(), enums.ActorRoleUser)))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req.WithContext(WithRole(req.Context(), enums.ActorRoleAdmin)))
	assert.Equal(t, http.StatusNoContent, resp.Code)
}

func TestRecovererRendersInternalError(t *testing.T) {
	h := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Body.String(), string(pkgerrors.CodeInternal))
	assert.NotContains(t, resp.Body.String(), "boom")
}

func TestRequestIDEchoesOrMints(t *testing.T) {
	var seen string
	h := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-42")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, "req-42", resp.Header().Get("X-Request-Id"))

	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	seen = resp.Header().Get("X-Request-Id")
	assert.Len(t, seen, 36)
}
