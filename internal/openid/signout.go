package openid

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// AuthProperties carries per-call state into Challenge and SignOut.
type AuthProperties struct {
	// RedirectURI is where the user lands after the provider round trip.
	RedirectURI string
	Items       map[string]string
}

// RedirectInstruction is the outcome of a sign-out decision. Handled means
// the provider hook produced the redirect and the default response must not
// be written.
type RedirectInstruction struct {
	URL     string
	Handled bool
}

// Apply writes the redirect.
func (ri RedirectInstruction) Apply(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, ri.URL, http.StatusFound)
}

// SignOutContext is handed to Events.OnRedirectToIdentityProviderForSignOut.
type SignOutContext struct {
	Request    *http.Request
	Properties AuthProperties
	Options    ProviderOptions

	redirect string
	handled  bool
}

// Redirect sets the URL the browser is sent to.
func (c *SignOutContext) Redirect(location string) {
	c.redirect = location
}

// HandleResponse suppresses the default sign-out response.
func (c *SignOutContext) HandleResponse() {
	c.handled = true
}

func (c *SignOutContext) Handled() bool {
	return c.handled
}

func (c *SignOutContext) RedirectURL() string {
	return c.redirect
}

// Auth0LogoutHook redirects to the Auth0 logout endpoint. A post-logout URI
// from the sign-out properties is absolutized against the current request
// and passed as returnTo.
func Auth0LogoutHook(domain, clientID string) func(*SignOutContext) error {
	return func(c *SignOutContext) error {
		c.Redirect(LogoutURL(c.Request, domain, clientID, c.Properties.RedirectURI))
		c.HandleResponse()
		return nil
	}
}

// LogoutURL composes https://{domain}/v2/logout?client_id={clientID} with an
// optional returnTo parameter.
func LogoutURL(r *http.Request, domain, clientID, postLogoutURI string) string {
	logoutURI := "https://" + domain + "/v2/logout?client_id=" + EscapeDataString(clientID)

	if postLogoutURI != "" {
		if strings.HasPrefix(postLogoutURI, "/") {
			postLogoutURI = AbsoluteURL(r, postLogoutURI)
		}
		logoutURI += "&returnTo=" + EscapeDataString(postLogoutURI)
	}

	return logoutURI
}

// EscapeDataString percent-escapes s as a single query value; unlike
// url.QueryEscape a space becomes %20.
func EscapeDataString(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// AbsoluteURL prefixes path with scheme://host[:port] and the path base of r.
func AbsoluteURL(r *http.Request, path string) string {
	return RequestScheme(r) + "://" + r.Host + PathBase(r.Context()) + path
}

// RequestScheme reports the scheme the client used. X-Forwarded-Proto is
// honoured only for requests marked by WithTrustedProxy.
func RequestScheme(r *http.Request) string {
	if trustedProxy(r.Context()) {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			proto, _, _ = strings.Cut(proto, ",")
			switch proto = strings.ToLower(strings.TrimSpace(proto)); proto {
			case "http", "https":
				return proto
			}
		}
	}
	if r.TLS != nil {
		return "https"
	}
	if r.URL != nil && r.URL.Scheme != "" {
		return r.URL.Scheme
	}
	return "http"
}

type trustedProxyKey struct{}

// WithTrustedProxy marks the request as arriving through a proxy whose
// forwarding headers are authoritative.
func WithTrustedProxy(ctx context.Context) context.Context {
	return context.WithValue(ctx, trustedProxyKey{}, true)
}

func trustedProxy(ctx context.Context) bool {
	trusted, _ := ctx.Value(trustedProxyKey{}).(bool)
	return trusted
}

type pathBaseKey struct{}

// WithPathBase records the prefix the application is mounted under.
func WithPathBase(ctx context.Context, pathBase string) context.Context {
	return context.WithValue(ctx, pathBaseKey{}, strings.TrimSuffix(pathBase, "/"))
}

// PathBase returns the prefix recorded by WithPathBase, or "".
func PathBase(ctx context.Context) string {
	v, _ := ctx.Value(pathBaseKey{}).(string)
	return v
}
