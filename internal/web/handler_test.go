package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/savaki/sso-frontend/internal/auth"
	"github.com/savaki/sso-frontend/internal/catalog"
	"github.com/savaki/sso-frontend/internal/openid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type stubDiscoverer struct{}

func (stubDiscoverer) Discover(context.Context, openid.ProviderOptions) (openid.Provider, error) {
	return stubProvider{}, nil
}

type stubProvider struct{}

func (stubProvider) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{AuthURL: "https://acme.example/authorize", TokenURL: "https://acme.example/oauth/token"}
}

func (stubProvider) VerifyIDToken(context.Context, string) (openid.Claims, error) {
	return openid.Claims{}, nil
}

const vcap = `{"p-identity":[{"name":"sso","label":"p-identity","credentials":{"auth_domain":"acme.example","client_id":"abc123","client_secret":"top-secret"}}]}`

func newRouter(t *testing.T, vcapJSON, pathBase string) (http.Handler, *auth.SessionStore) {
	return newProxiedRouter(t, vcapJSON, pathBase, false)
}

func newProxiedRouter(t *testing.T, vcapJSON, pathBase string, trustProxy bool) (http.Handler, *auth.SessionStore) {
	sessions, err := auth.NewSessionStore(context.Background(), auth.SessionStoreInput{
		SessionKeys: [][]byte{[]byte("0123456789abcdef0123456789abcdef")},
		IsLocalDev:  true,
	})
	require.NoError(t, err)

	source := catalog.EnvSource{Lookup: func(string) (string, bool) { return vcapJSON, vcapJSON != "" }}
	registry := openid.NewRegistry(openid.DefaultDefaults())
	controller := auth.NewController(auth.ControllerInput{
		Resolver: catalog.NewResolver(source),
		Registry: registry,
		OIDC:     openid.NewHandler(registry, stubDiscoverer{}, sessions.Store()),
		Sessions: sessions,
	})

	return NewHandler(controller, sessions).Routes(zerolog.Nop(), pathBase, trustProxy), sessions
}

func TestRoutes_Pages(t *testing.T) {
	router, _ := newRouter(t, vcap, "")

	for _, path := range []string{"/", "/Home/Index", "/Home/Privacy", "/Home/Error"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", "https://app.example"+path, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
			assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
		})
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "https://app.example/Home/AccessDenied", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Insufficient permissions.")
}

func TestRoutes_Login(t *testing.T) {
	t.Run("redirects to provider under path base", func(t *testing.T) {
		router, _ := newRouter(t, vcap, "/app")

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "https://app.example/app/Account/Login?returnUrl=%2Fsecure", nil))

		require.Equal(t, http.StatusFound, rec.Code)
		location, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "acme.example", location.Host)
		assert.Equal(t, "https://app.example/app/callback", location.Query().Get("redirect_uri"))
	})

	t.Run("ambiguous catalog renders error page", func(t *testing.T) {
		ambiguous := `{"p-identity":[
			{"name":"a","credentials":{"auth_domain":"a.example","client_id":"a","client_secret":"top-secret"}},
			{"name":"b","credentials":{"auth_domain":"b.example","client_id":"b","client_secret":"top-secret"}}
		]}`
		router, _ := newRouter(t, ambiguous, "")

		req := httptest.NewRequest("GET", "https://app.example/Account/Login", nil)
		req.Header.Set("X-Request-Id", "req-123")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "req-123")
		assert.NotContains(t, rec.Body.String(), "top-secret")
		assert.Empty(t, rec.Header().Get("Location"))
	})

	t.Run("missing catalog renders error page", func(t *testing.T) {
		router, _ := newRouter(t, "", "")

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "https://app.example/Account/Login", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRoutes_Callback(t *testing.T) {
	router, _ := newRouter(t, vcap, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "https://app.example/callback?code=x&state=y", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRoutes_Logout(t *testing.T) {
	t.Run("anonymous is sent to login", func(t *testing.T) {
		router, _ := newRouter(t, vcap, "")

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "https://app.example/Account/Logout", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/Account/Login?returnUrl=%2F", rec.Header().Get("Location"))
	})

	t.Run("authenticated is sent to provider", func(t *testing.T) {
		router, sessions := newRouter(t, vcap, "")

		signIn := httptest.NewRecorder()
		require.NoError(t, sessions.SignIn(signIn, httptest.NewRequest("GET", "https://app.example/", nil), auth.Profile{Sub: "auth0|1"}, ""))

		req := httptest.NewRequest("POST", "https://app.example/Account/Logout", nil)
		for _, c := range signIn.Result().Cookies() {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://acme.example/v2/logout?client_id=abc123&returnTo=https%3A%2F%2Fapp.example%2F", rec.Header().Get("Location"))
	})
}

func TestRoutes_LogoutRejectsGet(t *testing.T) {
	router, sessions := newRouter(t, vcap, "")

	signIn := httptest.NewRecorder()
	require.NoError(t, sessions.SignIn(signIn, httptest.NewRequest("GET", "https://app.example/", nil), auth.Profile{Sub: "auth0|1"}, ""))

	req := httptest.NewRequest("GET", "https://app.example/Account/Logout", nil)
	for _, c := range signIn.Result().Cookies() {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
	assert.Empty(t, rec.Result().Cookies())
}

func TestRoutes_ForwardedProto(t *testing.T) {
	for _, tt := range []struct {
		name       string
		trustProxy bool
		want       string
	}{
		{name: "trusted", trustProxy: true, want: "https://app.example/callback"},
		{name: "untrusted", trustProxy: false, want: "http://app.example/callback"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newProxiedRouter(t, vcap, "", tt.trustProxy)

			req := httptest.NewRequest("GET", "http://app.example/Account/Login", nil)
			req.Header.Set("X-Forwarded-Proto", "https")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusFound, rec.Code)
			location, err := url.Parse(rec.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, location.Query().Get("redirect_uri"))
		})
	}
}

func TestRoutes_Profile(t *testing.T) {
	router, sessions := newRouter(t, vcap, "")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "https://app.example/Account/Profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	signIn := httptest.NewRecorder()
	require.NoError(t, sessions.SignIn(signIn, httptest.NewRequest("GET", "https://app.example/", nil), auth.Profile{Sub: "auth0|1", Email: "me@example.com"}, ""))

	req := httptest.NewRequest("GET", "https://app.example/Account/Profile", nil)
	for _, c := range signIn.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sub":"auth0|1","name":"","email":"me@example.com","iss":""}`, rec.Body.String())
}

func TestPathBaseMiddleware(t *testing.T) {
	var path, base string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		base = openid.PathBase(r.Context())
	})
	handler := PathBaseMiddleware("/app/")(next)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/app", nil))
	assert.Equal(t, "/", path)
	assert.Equal(t, "/app", base)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/app/Home/Privacy", nil))
	assert.Equal(t, "/Home/Privacy", path)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/application", nil))
	assert.Equal(t, "/application", path)
	assert.Equal(t, "", base)
}
