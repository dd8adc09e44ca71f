package constants

// Authentication scheme names. The OIDC options are always registered under
// ProviderScheme, whichever catalog entry supplied the credentials.
const (
	// ProviderScheme is the scheme the OIDC client options are registered under
	ProviderScheme = "Auth0"

	// CookieScheme is the local cookie session scheme
	CookieScheme = "Cookies"
)

// Fixed provider policy applied when building OIDC options.
const (
	ResponseTypeCode = "code"
	CallbackPath     = "/callback"
	IssuerTag        = "Auth0"

	// DefaultServiceLabel is the label of the SSO tile binding in VCAP_SERVICES
	DefaultServiceLabel = "p-identity"
)

// Credential keys expected in a catalog binding.
const (
	CredentialDomain       = "auth_domain"
	CredentialClientID     = "client_id"
	CredentialClientSecret = "client_secret"
)
