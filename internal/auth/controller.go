package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/savaki/sso-frontend/internal/authz"
	"github.com/savaki/sso-frontend/internal/constants"
	"github.com/savaki/sso-frontend/internal/errors"
	"github.com/savaki/sso-frontend/internal/openid"
)

// CredentialResolver looks up provider credentials by service label.
type CredentialResolver interface {
	Resolve(ctx context.Context, label string) (openid.ProviderCredentials, error)
}

// Controller runs the login and logout flows.
//
// Options are rebuilt from the catalog and registered under the fixed
// provider scheme on every login, so the registered provider is whichever
// login configured it last.
type Controller struct {
	resolver       CredentialResolver
	registry       *openid.Registry
	oidc           *openid.Handler
	sessions       *SessionStore
	authorizer     *authz.Authorizer // optional authorization policy enforcement
	serviceLabel   string
	postLogoutPath string
}

type ControllerInput struct {
	Resolver     CredentialResolver
	Registry     *openid.Registry
	OIDC         *openid.Handler
	Sessions     *SessionStore
	Authorizer   *authz.Authorizer
	ServiceLabel string
}

func NewController(input ControllerInput) *Controller {
	label := input.ServiceLabel
	if label == "" {
		label = constants.DefaultServiceLabel
	}

	return &Controller{
		resolver:       input.Resolver,
		registry:       input.Registry,
		oidc:           input.OIDC,
		sessions:       input.Sessions,
		authorizer:     input.Authorizer,
		serviceLabel:   label,
		postLogoutPath: "/",
	}
}

// configure resolves credentials and registers fresh provider options.
func (c *Controller) configure(ctx context.Context) (openid.ProviderOptions, error) {
	creds, err := c.resolver.Resolve(ctx, c.serviceLabel)
	if err != nil {
		return openid.ProviderOptions{}, err
	}

	options := openid.Build(creds, constants.CallbackPath)
	c.registry.PostConfigure(constants.ProviderScheme, &options)
	if err := options.Validate(); err != nil {
		return openid.ProviderOptions{}, fmt.Errorf("%w: %v", errors.ErrInvalidCredentials, err)
	}

	c.registry.Register(constants.ProviderScheme, options)
	return options, nil
}

// Login registers provider options from the catalog and challenges the
// provider. returnURL is where the browser lands after the callback.
func (c *Controller) Login(w http.ResponseWriter, r *http.Request, returnURL string) error {
	logger := zerolog.Ctx(r.Context())

	options, err := c.configure(r.Context())
	if err != nil {
		logger.Error().Err(err).Str("label", c.serviceLabel).Msg("Failed to configure identity provider")
		return err
	}

	logger.Info().
		Str("scheme", options.SchemeName).
		Str("authority", options.Authority).
		Msg("Registered identity provider options")

	return c.oidc.Challenge(w, r, constants.ProviderScheme, openid.AuthProperties{
		RedirectURI: LocalRedirect(returnURL),
	})
}

// Callback completes the provider round trip, applies the authorization
// policies and writes the local session.
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) error {
	logger := zerolog.Ctx(r.Context())

	result, err := c.oidc.Callback(w, r)
	if err != nil {
		logger.Warn().Err(err).Msg("Provider handshake failed")
		return err
	}

	profile := Profile{
		Sub:    result.Claims.Subject,
		Name:   result.Claims.Name,
		Email:  result.Claims.Email,
		Issuer: result.Claims.Issuer,
	}

	if c.authorizer != nil {
		if err := c.authorizer.Authorize(r.Context(), authz.Profile{
			Sub:   profile.Sub,
			Name:  profile.Name,
			Email: profile.Email,
		}); err != nil {
			logger.Warn().
				Str("sub", profile.Sub).
				Str("email", profile.Email).
				Err(err).
				Msg("User authorization failed")
			return err
		}
	}

	var accessToken string
	if result.Token != nil {
		accessToken = result.Token.AccessToken
	}
	if err := c.sessions.SignIn(w, r, profile, accessToken); err != nil {
		return err
	}

	logger.Info().Str("sub", profile.Sub).Msg("User authenticated successfully")

	http.Redirect(w, r, openid.PathBase(r.Context())+LocalRedirect(result.RedirectURI), http.StatusFound)
	return nil
}

// Logout signs out of the provider scheme and the local cookie scheme and
// redirects to the provider logout endpoint. Callers without a local session
// get *errors.UnauthorizedLogoutError.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) error {
	logger := zerolog.Ctx(r.Context())

	profile, ok := c.sessions.Current(r)
	if !ok {
		return &errors.UnauthorizedLogoutError{}
	}

	// The local session ends even when the provider sign-out cannot be built
	if err := c.sessions.SignOut(w, r); err != nil {
		return err
	}

	// Options are only registered by a login in this process
	if _, ok := c.registry.Get(constants.ProviderScheme); !ok {
		if _, err := c.configure(r.Context()); err != nil {
			logger.Warn().Err(err).Str("sub", profile.Sub).Msg("Local session cleared, provider sign-out unavailable")
			return err
		}
	}

	redirect, err := c.oidc.SignOut(r, constants.ProviderScheme, openid.AuthProperties{
		RedirectURI: c.postLogoutPath,
	})
	if err != nil {
		return err
	}

	logger.Info().
		Str("sub", profile.Sub).
		Str("logout_url", redirect.URL).
		Bool("handled", redirect.Handled).
		Msg("Logging out user")

	redirect.Apply(w, r)
	return nil
}

// LocalRedirect returns target when it is a local path and / otherwise.
func LocalRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") {
		return "/"
	}
	// Browsers drop tab and newline from URLs, so "/\t/host" becomes "//host"
	if strings.ContainsFunc(target, unicode.IsControl) {
		return "/"
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/"
	}
	if u, err := url.Parse(target); err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return target
}
