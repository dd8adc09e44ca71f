package openid

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogoutURL(t *testing.T) {
	tests := []struct {
		name          string
		target        string
		pathBase      string
		trustProxy    bool
		header        map[string]string
		postLogoutURI string
		want          string
	}{
		{
			name:   "no post-logout uri",
			target: "https://app.example/app/Account/Logout",
			want:   "https://acme.example/v2/logout?client_id=abc123",
		},
		{
			name:          "relative uri is absolutized with path base",
			target:        "https://app.example/app/Account/Logout",
			pathBase:      "/app",
			postLogoutURI: "/after-logout",
			want:          "https://acme.example/v2/logout?client_id=abc123&returnTo=https%3A%2F%2Fapp.example%2Fapp%2Fafter-logout",
		},
		{
			name:          "absolute uri used as is",
			target:        "https://app.example/app/Account/Logout",
			pathBase:      "/app",
			postLogoutURI: "https://other.example/done",
			want:          "https://acme.example/v2/logout?client_id=abc123&returnTo=https%3A%2F%2Fother.example%2Fdone",
		},
		{
			name:          "host keeps port",
			target:        "http://localhost:8080/Account/Logout",
			postLogoutURI: "/",
			want:          "https://acme.example/v2/logout?client_id=abc123&returnTo=http%3A%2F%2Flocalhost%3A8080%2F",
		},
		{
			name:          "forwarded proto from trusted router",
			target:        "http://app.example/Account/Logout",
			trustProxy:    true,
			header:        map[string]string{"X-Forwarded-Proto": "https"},
			postLogoutURI: "/",
			want:          "https://acme.example/v2/logout?client_id=abc123&returnTo=https%3A%2F%2Fapp.example%2F",
		},
		{
			name:          "forwarded proto ignored without trusted router",
			target:        "http://app.example/Account/Logout",
			header:        map[string]string{"X-Forwarded-Proto": "https"},
			postLogoutURI: "/",
			want:          "https://acme.example/v2/logout?client_id=abc123&returnTo=http%3A%2F%2Fapp.example%2F",
		},
		{
			name:          "unknown forwarded proto ignored",
			target:        "http://app.example/Account/Logout",
			trustProxy:    true,
			header:        map[string]string{"X-Forwarded-Proto": "javascript"},
			postLogoutURI: "/",
			want:          "https://acme.example/v2/logout?client_id=abc123&returnTo=http%3A%2F%2Fapp.example%2F",
		},
		{
			name:          "space escaped as %20",
			target:        "https://app.example/Account/Logout",
			postLogoutURI: "/a b?x=1&y=2",
			want:          "https://acme.example/v2/logout?client_id=abc123&returnTo=https%3A%2F%2Fapp.example%2Fa%20b%3Fx%3D1%26y%3D2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.target, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if tt.pathBase != "" {
				req = req.WithContext(WithPathBase(req.Context(), tt.pathBase))
			}
			if tt.trustProxy {
				req = req.WithContext(WithTrustedProxy(req.Context()))
			}

			got := LogoutURL(req, "acme.example", "abc123", tt.postLogoutURI)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuth0LogoutHook(t *testing.T) {
	req := httptest.NewRequest("POST", "https://app.example/Account/Logout", nil)
	c := &SignOutContext{Request: req, Properties: AuthProperties{RedirectURI: "/"}}

	require.NoError(t, Auth0LogoutHook("acme.example", "abc123")(c))
	assert.True(t, c.Handled())
	assert.Equal(t, "https://acme.example/v2/logout?client_id=abc123&returnTo=https%3A%2F%2Fapp.example%2F", c.RedirectURL())
}

func TestHandler_SignOut(t *testing.T) {
	registry := NewRegistry(Defaults{})
	handler := NewHandler(registry, nil, nil)
	req := httptest.NewRequest("POST", "https://app.example/Account/Logout", nil)

	t.Run("scheme not registered", func(t *testing.T) {
		_, err := handler.SignOut(req, "Auth0", AuthProperties{})
		assert.Error(t, err)
	})

	t.Run("hook handles response", func(t *testing.T) {
		registry.Register("Auth0", Build(ProviderCredentials{Domain: "acme.example", ClientID: "abc123", ClientSecret: "s"}, "/callback"))

		got, err := handler.SignOut(req, "Auth0", AuthProperties{})
		require.NoError(t, err)
		assert.Equal(t, RedirectInstruction{URL: "https://acme.example/v2/logout?client_id=abc123", Handled: true}, got)
	})

	t.Run("default without hook", func(t *testing.T) {
		registry.Register("plain", ProviderOptions{Authority: "https://plain.example"})

		got, err := handler.SignOut(req, "plain", AuthProperties{RedirectURI: "/bye"})
		require.NoError(t, err)
		assert.Equal(t, RedirectInstruction{URL: "/bye"}, got)

		got, err = handler.SignOut(req, "plain", AuthProperties{})
		require.NoError(t, err)
		assert.Equal(t, "/", got.URL)
	})

	t.Run("apply writes redirect", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RedirectInstruction{URL: "https://acme.example/v2/logout?client_id=abc123"}.Apply(rec, req)
		assert.Equal(t, 302, rec.Code)
		assert.Equal(t, "https://acme.example/v2/logout?client_id=abc123", rec.Header().Get("Location"))
	})
}
