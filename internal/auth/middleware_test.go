package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/savaki/sso-frontend/internal/openid"
	"github.com/stretchr/testify/assert"
)

func TestRequireAuth(t *testing.T) {
	f := newFixture(t, nil)

	var seen Profile
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ProfileFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("redirects documents to login", func(t *testing.T) {
		req := httptest.NewRequest("GET", "https://app.example/Account/Profile?x=1", nil)
		req = req.WithContext(openid.WithPathBase(req.Context(), "/app"))
		rec := httptest.NewRecorder()

		f.controller.RequireAuth(true)(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/app/Account/Login?returnUrl=%2FAccount%2FProfile%3Fx%3D1", rec.Header().Get("Location"))
	})

	t.Run("rejects api calls", func(t *testing.T) {
		req := httptest.NewRequest("GET", "https://app.example/Account/Profile", nil)
		rec := httptest.NewRecorder()

		f.controller.RequireAuth(false)(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
	})

	t.Run("passes profile through", func(t *testing.T) {
		req := httptest.NewRequest("GET", "https://app.example/Account/Profile", nil)
		for _, c := range f.signedIn(t) {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()

		f.controller.RequireAuth(true)(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "auth0|1", seen.Sub)
	})
}
