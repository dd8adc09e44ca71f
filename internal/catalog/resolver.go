package catalog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/savaki/sso-frontend/internal/constants"
	"github.com/savaki/sso-frontend/internal/errors"
	"github.com/savaki/sso-frontend/internal/openid"
)

// Resolver looks up provider credentials by service label.
type Resolver struct {
	source Source
}

func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the credentials of the single binding labelled label.
// Zero or multiple matches fail with *errors.ServiceNotFoundError.
func (r *Resolver) Resolve(ctx context.Context, label string) (openid.ProviderCredentials, error) {
	logger := zerolog.Ctx(ctx)

	c, err := r.source.Load(ctx)
	if err != nil {
		return openid.ProviderCredentials{}, fmt.Errorf("failed to load service catalog: %w", err)
	}

	found := c.Find(label)
	if len(found) != 1 {
		logger.Warn().
			Str("label", label).
			Int("matches", len(found)).
			Int("bindings", len(c.Bindings)).
			Msg("Service label did not match exactly one binding")
		return openid.ProviderCredentials{}, &errors.ServiceNotFoundError{Label: label, Matches: len(found)}
	}

	creds, err := Credentials(found[0])
	if err != nil {
		return openid.ProviderCredentials{}, err
	}

	logger.Debug().
		Str("label", label).
		Str("service", found[0].Name).
		Str("domain", creds.Domain).
		Msg("Resolved provider credentials")

	return creds, nil
}

// Credentials extracts provider credentials from a binding. Values are
// never included in the returned error.
func Credentials(b Binding) (openid.ProviderCredentials, error) {
	get := func(key string) (string, error) {
		v, ok := b.Credentials[key].(string)
		if !ok || v == "" {
			return "", fmt.Errorf("%w: service %q is missing %s", errors.ErrInvalidCredentials, b.Name, key)
		}
		return v, nil
	}

	domain, err := get(constants.CredentialDomain)
	if err != nil {
		return openid.ProviderCredentials{}, err
	}
	clientID, err := get(constants.CredentialClientID)
	if err != nil {
		return openid.ProviderCredentials{}, err
	}
	clientSecret, err := get(constants.CredentialClientSecret)
	if err != nil {
		return openid.ProviderCredentials{}, err
	}

	return openid.ProviderCredentials{
		Domain:       domain,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}, nil
}
