// Package openid holds the OIDC client side of the application: provider
// options, the process-wide options registry, and the handler that drives
// challenge, callback and sign-out against the registered provider.
package openid

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/savaki/sso-frontend/internal/constants"
)

// ProviderCredentials are the identity provider settings bound to the application.
type ProviderCredentials struct {
	Domain       string
	ClientID     string
	ClientSecret string
}

// Events holds optional callbacks invoked by the Handler.
type Events struct {
	// OnRedirectToIdentityProviderForSignOut runs before the sign-out
	// redirect is issued. It may replace the redirect and mark it handled.
	OnRedirectToIdentityProviderForSignOut func(*SignOutContext) error
}

// ProviderOptions configures the OIDC client for one scheme.
type ProviderOptions struct {
	SchemeName   string
	Authority    string
	ClientID     string
	ClientSecret string
	ResponseType string
	CallbackPath string
	IssuerTag    string
	SignInScheme string
	Scopes       []string
	HTTPClient   *http.Client
	Events       Events
}

// Build constructs provider options from resolved credentials. The authority
// is always https://{domain}.
func Build(creds ProviderCredentials, callbackPath string) ProviderOptions {
	return ProviderOptions{
		SchemeName:   constants.ProviderScheme,
		Authority:    "https://" + creds.Domain,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		ResponseType: constants.ResponseTypeCode,
		CallbackPath: callbackPath,
		IssuerTag:    constants.IssuerTag,
		Events: Events{
			OnRedirectToIdentityProviderForSignOut: Auth0LogoutHook(creds.Domain, creds.ClientID),
		},
	}
}

// Validate reports every problem with the options at once.
func (o ProviderOptions) Validate() error {
	var result *multierror.Error

	if o.Authority == "" {
		result = multierror.Append(result, fmt.Errorf("authority is required"))
	} else if u, err := url.Parse(o.Authority); err != nil || u.Scheme != "https" || u.Host == "" {
		result = multierror.Append(result, fmt.Errorf("authority %q must be an https url", o.Authority))
	}
	if o.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("client id is required"))
	}
	if o.ClientSecret == "" {
		result = multierror.Append(result, fmt.Errorf("client secret is required"))
	}
	if o.ResponseType != constants.ResponseTypeCode {
		result = multierror.Append(result, fmt.Errorf("unsupported response type %q", o.ResponseType))
	}
	if !strings.HasPrefix(o.CallbackPath, "/") {
		result = multierror.Append(result, fmt.Errorf("callback path %q must start with /", o.CallbackPath))
	}

	return result.ErrorOrNil()
}

// IssuerURL is the discovery issuer for the authority. Auth0 publishes its
// issuer with a trailing slash.
func (o ProviderOptions) IssuerURL() string {
	return strings.TrimSuffix(o.Authority, "/") + "/"
}

func (o ProviderOptions) clone() ProviderOptions {
	c := o
	if o.Scopes != nil {
		c.Scopes = append([]string(nil), o.Scopes...)
	}
	return c
}
