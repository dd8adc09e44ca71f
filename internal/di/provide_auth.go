package di

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/savaki/sso-frontend/internal/auth"
	"github.com/savaki/sso-frontend/internal/authz"
	"github.com/savaki/sso-frontend/internal/catalog"
	"github.com/savaki/sso-frontend/internal/openid"
	"github.com/savaki/sso-frontend/internal/services"
)

func ProvideSessionKeyService(ctx context.Context, secrets *services.SecretsManagerService, config *services.Config) *services.SessionKeyService {
	return services.NewSessionKeyService(ctx, secrets, config.SessionTokenSecretName)
}

func ProvideSessionKeys(ctx context.Context, localDev LocalDev, keyService *services.SessionKeyService) ([][]byte, error) {
	logger := zerolog.Ctx(ctx)

	if localDev {
		logger.Warn().Msg("Using ephemeral session key for local development only")
		return [][]byte{}, nil
	}

	keys, err := keyService.GetSessionKeys()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch session keys from Secrets Manager")

		// Ephemeral keys break sessions across Lambda containers
		if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
			return nil, fmt.Errorf("session keys required in Lambda environment: %w", err)
		}

		logger.Warn().Msg("Using ephemeral session key for local development only")
		return [][]byte{}, nil
	}
	return keys, nil
}

func ProvideSessionStore(ctx context.Context, sessionKeys [][]byte, localDev LocalDev) (*auth.SessionStore, error) {
	return auth.NewSessionStore(ctx, auth.SessionStoreInput{
		SessionKeys: sessionKeys,
		IsLocalDev:  bool(localDev),
	})
}

// ProvideCatalogSource selects where service bindings are read from.
func ProvideCatalogSource(ctx context.Context, config *services.Config, store services.ParameterStore, secrets *services.SecretsManagerService) (catalog.Source, error) {
	logger := zerolog.Ctx(ctx).With().
		Str("catalog_source", config.CatalogSource).
		Str("catalog_name", config.CatalogName).
		Logger()

	var source catalog.Source
	switch config.CatalogSource {
	case services.CatalogSourceEnv:
		source = catalog.EnvSource{Name: config.CatalogName}
	case services.CatalogSourceParameter:
		source = catalog.ParameterSource{Store: store, Name: config.CatalogName}
	case services.CatalogSourceSecret:
		source = catalog.SecretSource{Secrets: secrets, Name: config.CatalogName}
	case services.CatalogSourceFile:
		source = catalog.FileSource{Path: config.CatalogName}
	default:
		return nil, fmt.Errorf("unsupported catalog source: %s", config.CatalogSource)
	}

	logger.Info().Msg("Service catalog configured")
	return source, nil
}

func ProvideResolver(source catalog.Source) *catalog.Resolver {
	return catalog.NewResolver(source)
}

func ProvideRegistry(config *services.Config) *openid.Registry {
	defaults := openid.DefaultDefaults()
	if len(config.Scopes) > 0 {
		defaults.Scopes = config.Scopes
	}
	return openid.NewRegistry(defaults)
}

func ProvideDiscoverer() openid.Discoverer {
	return openid.NewOIDCDiscoverer()
}

func ProvideOIDCHandler(registry *openid.Registry, discoverer openid.Discoverer, sessions *auth.SessionStore) *openid.Handler {
	return openid.NewHandler(registry, discoverer, sessions.Store())
}

// ProvideAuthorizer assembles the post-login policies. With none configured
// every authenticated user is admitted.
func ProvideAuthorizer(ctx context.Context, config *services.Config) (*authz.Authorizer, error) {
	logger := zerolog.Ctx(ctx)

	var policies []authz.Policy
	if config.AllowedEmail != "" {
		policies = append(policies, &authz.AllowedEmailPolicy{AllowedEmail: config.AllowedEmail})
	}
	if config.AllowedEmailDomain != "" {
		policies = append(policies, &authz.EmailDomainPolicy{Domain: config.AllowedEmailDomain})
	}
	if config.PolicyFile != "" {
		policy, err := authz.LoadRegoPolicy(ctx, config.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy file %s: %w", config.PolicyFile, err)
		}
		policies = append(policies, policy)
	}

	if len(policies) == 0 {
		logger.Info().Msg("Authorization disabled - all authenticated users allowed")
	} else {
		logger.Info().Int("policies", len(policies)).Msg("Authorization enabled")
	}

	return authz.NewAuthorizer(policies...), nil
}

func ProvideController(resolver *catalog.Resolver, registry *openid.Registry, handler *openid.Handler, sessions *auth.SessionStore, authorizer *authz.Authorizer, config *services.Config) *auth.Controller {
	return auth.NewController(auth.ControllerInput{
		Resolver:     resolver,
		Registry:     registry,
		OIDC:         handler,
		Sessions:     sessions,
		Authorizer:   authorizer,
		ServiceLabel: config.ServiceLabel,
	})
}
