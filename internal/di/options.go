package di

import "strings"

// PathBase is the prefix the application is mounted under, e.g. "/sso".
type PathBase string

// LocalDev relaxes cookie security and skips the session key secret.
type LocalDev bool

// TrustProxy honours X-Forwarded-Proto from the fronting router.
type TrustProxy bool

// AWSEndpoint points the AWS clients at a local emulator when set.
type AWSEndpoint string

// Option is a function that configures the dependency injection container.
type Option func(*options)

func WithPathBase(pathBase string) Option {
	return func(opts *options) {
		opts.pathBase = PathBase(strings.TrimSuffix(pathBase, "/"))
	}
}

func WithLocalDev(localDev bool) Option {
	return func(opts *options) {
		opts.localDev = localDev
	}
}

func WithTrustProxy(trust bool) Option {
	return func(opts *options) {
		opts.trustProxy = trust
	}
}

func WithAWSEndpoint(endpoint string) Option {
	return func(opts *options) {
		opts.awsEndpoint = AWSEndpoint(endpoint)
	}
}

// WithProviders adds constructor functions to the dependency injection container.
// Each provider should be a constructor function that returns one or more values.
// Providers can declare dependencies as function parameters, which will be
// automatically resolved by the container.
//
// Example:
//
//	WithProviders(
//	    func(store services.ParameterStore) *Checker { return &Checker{Store: store} },
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	pathBase    PathBase
	localDev    bool
	trustProxy  bool
	awsEndpoint AWSEndpoint
	providers   []any
}
