package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/savaki/sso-frontend/internal/openid"
)

// LoginPath is where unauthenticated document requests are sent.
const LoginPath = "/Account/Login"

type profileKeyType struct{}

// ProfileFromContext returns the profile attached by RequireAuth.
func ProfileFromContext(ctx context.Context) (Profile, bool) {
	profile, ok := ctx.Value(profileKeyType{}).(Profile)
	return profile, ok
}

// RequireAuth creates middleware that ensures the user is authenticated.
// If redirectOnFail is true (for document/HTML routes), it redirects to the login page on auth failure.
// If redirectOnFail is false (for API routes), it returns a 401 JSON response on auth failure.
func (c *Controller) RequireAuth(redirectOnFail bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context())

			profile, ok := c.sessions.Current(r)
			if !ok {
				logger.Debug().Str("path", r.URL.Path).Msg("No profile in session")
				HandleAuthFailure(w, r, redirectOnFail, "Unauthorized")
				return
			}

			logger.Debug().
				Str("path", r.URL.Path).
				Str("email", profile.Email).
				Str("sub", profile.Sub).
				Msg("Authenticated request")

			ctx := context.WithValue(r.Context(), profileKeyType{}, profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HandleAuthFailure handles authentication failures based on the request type
func HandleAuthFailure(w http.ResponseWriter, r *http.Request, redirectOnFail bool, message string) {
	logger := zerolog.Ctx(r.Context())

	if redirectOnFail {
		logger.Info().
			Str("path", r.URL.Path).
			Str("reason", message).
			Msg("Redirecting to login")
		http.Redirect(w, r, LoginRedirect(r), http.StatusFound)
		return
	}

	logger.Warn().
		Str("path", r.URL.Path).
		Str("reason", message).
		Msg("API authentication failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// LoginRedirect is the login URL that returns to the current page. A POST
// returns to the home page.
func LoginRedirect(r *http.Request) string {
	returnURL := "/"
	if r.Method == http.MethodGet {
		returnURL = r.URL.RequestURI()
	}
	return openid.PathBase(r.Context()) + LoginPath + "?returnUrl=" + url.QueryEscape(returnURL)
}
