package openid

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gorilla/sessions"
	"github.com/hashicorp/go-uuid"
	"github.com/rs/zerolog"
	"github.com/savaki/sso-frontend/internal/errors"
	"golang.org/x/oauth2"
)

const (
	correlationSession = "oidc-correlation"
	stateKey           = "state"
	nonceKey           = "nonce"
	redirectKey        = "redirect_uri"
	schemeKey          = "scheme"

	correlationMaxAge = 15 * 60
)

// Result is a completed callback.
type Result struct {
	Scheme      string
	Claims      Claims
	RedirectURI string
	Token       *oauth2.Token
}

// Handler drives the OIDC protocol for schemes registered in a Registry.
type Handler struct {
	registry   *Registry
	discoverer Discoverer
	store      sessions.Store
}

func NewHandler(registry *Registry, discoverer Discoverer, store sessions.Store) *Handler {
	return &Handler{
		registry:   registry,
		discoverer: discoverer,
		store:      store,
	}
}

func (h *Handler) options(scheme string) (ProviderOptions, error) {
	options, ok := h.registry.Get(scheme)
	if !ok {
		return ProviderOptions{}, fmt.Errorf("%w: %s", errors.ErrSchemeNotRegistered, scheme)
	}
	return options, nil
}

// Challenge starts an authorization code flow for scheme and redirects the
// browser to the provider.
func (h *Handler) Challenge(w http.ResponseWriter, r *http.Request, scheme string, props AuthProperties) error {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	options, err := h.options(scheme)
	if err != nil {
		return err
	}

	provider, err := h.discoverer.Discover(ctx, options)
	if err != nil {
		return err
	}

	state, err := generateState()
	if err != nil {
		return fmt.Errorf("failed to generate state: %w", err)
	}
	nonce, err := uuid.GenerateUUID()
	if err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	// A stale or undecodable correlation cookie is replaced
	session, _ := h.store.Get(r, correlationSession)
	session.Values[stateKey] = state
	session.Values[nonceKey] = nonce
	session.Values[redirectKey] = props.RedirectURI
	session.Values[schemeKey] = scheme
	session.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   correlationMaxAge,
		HttpOnly: true,
		Secure:   RequestScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	}
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("failed to save correlation cookie: %w", err)
	}

	config := oauth2Config(options, provider.Endpoint(), AbsoluteURL(r, options.CallbackPath))
	authURL := config.AuthCodeURL(state, oidc.Nonce(nonce))

	logger.Info().
		Str("scheme", scheme).
		Str("authority", options.Authority).
		Str("redirect_uri", props.RedirectURI).
		Msg("Redirecting to identity provider")

	http.Redirect(w, r, authURL, http.StatusFound)
	return nil
}

// Callback completes the flow started by Challenge. Failures are returned
// as *errors.ProviderHandshakeError. The correlation cookie is cleared on
// success; the caller writes the response.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) (*Result, error) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	session, err := h.store.Get(r, correlationSession)
	if err != nil {
		return nil, errors.Handshake("correlation", err)
	}

	if reason := r.FormValue("error"); reason != "" {
		return nil, errors.Handshake("authorize", fmt.Errorf("%s: %s", reason, r.FormValue("error_description")))
	}

	storedState, _ := session.Values[stateKey].(string)
	if storedState == "" {
		return nil, errors.Handshake("correlation", fmt.Errorf("no pending authentication"))
	}
	if r.FormValue("state") != storedState {
		return nil, errors.Handshake("state", fmt.Errorf("state mismatch"))
	}

	code := r.FormValue("code")
	if code == "" {
		return nil, errors.Handshake("code", fmt.Errorf("code not found in callback"))
	}

	scheme, _ := session.Values[schemeKey].(string)
	options, err := h.options(scheme)
	if err != nil {
		return nil, errors.Handshake("options", err)
	}

	provider, err := h.discoverer.Discover(ctx, options)
	if err != nil {
		return nil, errors.Handshake("discovery", err)
	}

	config := oauth2Config(options, provider.Endpoint(), AbsoluteURL(r, options.CallbackPath))
	token, err := config.Exchange(httpClientContext(ctx, options.HTTPClient), code)
	if err != nil {
		return nil, errors.Handshake("exchange", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.Handshake("exchange", fmt.Errorf("no id_token in token response"))
	}

	claims, err := provider.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Handshake("verify", err)
	}

	nonce, _ := session.Values[nonceKey].(string)
	if claims.Nonce != nonce {
		return nil, errors.Handshake("nonce", fmt.Errorf("nonce mismatch"))
	}

	redirectURI, _ := session.Values[redirectKey].(string)

	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		logger.Warn().Err(err).Msg("Failed to clear correlation cookie")
	}

	logger.Info().
		Str("scheme", scheme).
		Str("issuer", claims.Issuer).
		Str("subject", claims.Subject).
		Msg("ID token verified successfully")

	return &Result{
		Scheme:      scheme,
		Claims:      claims,
		RedirectURI: redirectURI,
		Token:       token,
	}, nil
}

// SignOut decides where the browser goes when signing out of scheme. The
// sign-out hook runs synchronously; if it does not handle the response the
// browser is sent to props.RedirectURI under the path base, or / when that
// is empty.
func (h *Handler) SignOut(r *http.Request, scheme string, props AuthProperties) (RedirectInstruction, error) {
	options, err := h.options(scheme)
	if err != nil {
		return RedirectInstruction{}, err
	}

	c := &SignOutContext{
		Request:    r,
		Properties: props,
		Options:    options,
	}
	if hook := options.Events.OnRedirectToIdentityProviderForSignOut; hook != nil {
		if err := hook(c); err != nil {
			return RedirectInstruction{}, fmt.Errorf("sign-out hook failed: %w", err)
		}
	}

	if c.Handled() {
		return RedirectInstruction{URL: c.RedirectURL(), Handled: true}, nil
	}

	target := props.RedirectURI
	if target == "" {
		target = "/"
	}
	if strings.HasPrefix(target, "/") {
		target = PathBase(r.Context()) + target
	}
	return RedirectInstruction{URL: target}, nil
}

func oauth2Config(options ProviderOptions, endpoint oauth2.Endpoint, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     options.ClientID,
		ClientSecret: options.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  redirectURL,
		Scopes:       options.Scopes,
	}
}

func httpClientContext(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

// generateState creates a random state value for CSRF protection
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
