package openid

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Claims are the identity claims taken from a verified ID token.
type Claims struct {
	Subject string
	Issuer  string
	Nonce   string
	Name    string
	Email   string
}

// Provider is a discovered identity provider.
type Provider interface {
	Endpoint() oauth2.Endpoint
	VerifyIDToken(ctx context.Context, rawIDToken string) (Claims, error)
}

// Discoverer resolves the Provider for a set of options.
type Discoverer interface {
	Discover(ctx context.Context, options ProviderOptions) (Provider, error)
}

// OIDCDiscoverer discovers providers with go-oidc and caches them per issuer.
type OIDCDiscoverer struct {
	mu        sync.RWMutex
	providers map[string]*oidc.Provider
}

func NewOIDCDiscoverer() *OIDCDiscoverer {
	return &OIDCDiscoverer{
		providers: make(map[string]*oidc.Provider),
	}
}

func (d *OIDCDiscoverer) Discover(ctx context.Context, options ProviderOptions) (Provider, error) {
	issuer := options.IssuerURL()

	d.mu.RLock()
	p, ok := d.providers[issuer]
	d.mu.RUnlock()

	if !ok {
		logger := zerolog.Ctx(ctx)
		logger.Info().Str("issuer_url", issuer).Msg("Discovering OIDC provider")

		// the provider outlives the request that discovered it
		discoveryCtx := clientContext(context.WithoutCancel(ctx), options.HTTPClient)

		var err error
		p, err = oidc.NewProvider(discoveryCtx, issuer)
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC provider for %s: %w", issuer, err)
		}

		d.mu.Lock()
		d.providers[issuer] = p
		d.mu.Unlock()
	}

	return &oidcProvider{
		provider: p,
		clientID: options.ClientID,
		client:   options.HTTPClient,
	}, nil
}

type oidcProvider struct {
	provider *oidc.Provider
	clientID string
	client   *http.Client
}

func (p *oidcProvider) Endpoint() oauth2.Endpoint {
	return p.provider.Endpoint()
}

func (p *oidcProvider) VerifyIDToken(ctx context.Context, rawIDToken string) (Claims, error) {
	verifier := p.provider.Verifier(&oidc.Config{ClientID: p.clientID})

	idToken, err := verifier.Verify(clientContext(ctx, p.client), rawIDToken)
	if err != nil {
		return Claims{}, err
	}

	var profile struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := idToken.Claims(&profile); err != nil {
		return Claims{}, fmt.Errorf("failed to extract claims: %w", err)
	}

	return Claims{
		Subject: idToken.Subject,
		Issuer:  idToken.Issuer,
		Nonce:   idToken.Nonce,
		Name:    profile.Name,
		Email:   profile.Email,
	}, nil
}

func clientContext(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return oidc.ClientContext(ctx, client)
}
