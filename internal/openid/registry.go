package openid

import (
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/savaki/sso-frontend/internal/constants"
)

// Defaults are the process-wide values PostConfigure fills into unset fields.
type Defaults struct {
	Scopes       []string
	SignInScheme string
	CallbackPath string
	ResponseType string
	HTTPClient   *http.Client
}

// DefaultDefaults returns the stock defaults with a pooled backchannel client.
func DefaultDefaults() Defaults {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = 30 * time.Second

	return Defaults{
		Scopes:       []string{"openid", "profile", "email"},
		SignInScheme: constants.CookieScheme,
		CallbackPath: "/signin-oidc",
		ResponseType: constants.ResponseTypeCode,
		HTTPClient:   client,
	}
}

// Registry is the process-wide store of provider options keyed by scheme.
//
// Registration replaces the previous value outright. There is no isolation
// between callers: two logins registering different options under the same
// scheme race and the last Register wins for every later request.
type Registry struct {
	defaults Defaults

	mu      sync.RWMutex
	options map[string]ProviderOptions
}

func NewRegistry(defaults Defaults) *Registry {
	return &Registry{
		defaults: defaults,
		options:  make(map[string]ProviderOptions),
	}
}

// PostConfigure completes options from the registry defaults. The openid
// scope is always requested.
func (r *Registry) PostConfigure(scheme string, options *ProviderOptions) {
	d := r.defaults

	if options.SchemeName == "" {
		options.SchemeName = scheme
	}
	if len(options.Scopes) == 0 {
		options.Scopes = append([]string(nil), d.Scopes...)
	}
	if !slices.Contains(options.Scopes, "openid") {
		options.Scopes = append([]string{"openid"}, options.Scopes...)
	}
	if options.SignInScheme == "" {
		options.SignInScheme = d.SignInScheme
	}
	if options.CallbackPath == "" {
		options.CallbackPath = d.CallbackPath
	}
	if options.ResponseType == "" {
		options.ResponseType = d.ResponseType
	}
	if options.IssuerTag == "" {
		options.IssuerTag = options.Authority
	}
	if options.HTTPClient == nil {
		options.HTTPClient = d.HTTPClient
	}
}

// Register stores options under scheme, replacing any previous value.
func (r *Registry) Register(scheme string, options ProviderOptions) {
	options = options.clone()

	r.mu.Lock()
	r.options[scheme] = options
	r.mu.Unlock()
}

// Get returns the most recently registered options for scheme.
func (r *Registry) Get(scheme string) (ProviderOptions, bool) {
	r.mu.RLock()
	options, ok := r.options[scheme]
	r.mu.RUnlock()

	if !ok {
		return ProviderOptions{}, false
	}
	return options.clone(), true
}

// Schemes lists the registered scheme names.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.options))
	for name := range r.options {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
