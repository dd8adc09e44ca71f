package di

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"
	"github.com/savaki/sso-frontend/internal/services"
)

// ProvideSSMClient provides an SSM client for Parameter Store access
// Returns nil if SSM is disabled (for local development)
func ProvideSSMClient(awsConfig aws.Config) *ssm.Client {
	if os.Getenv("DISABLE_SSM") == "true" {
		return nil
	}

	return ssm.NewFromConfig(awsConfig)
}

// ProvideParameterStore provides a ParameterStore implementation
// Uses SSM Parameter Store in AWS, falls back to environment variables when disabled
func ProvideParameterStore(ctx context.Context, ssmClient *ssm.Client, env string) services.ParameterStore {
	logger := zerolog.Ctx(ctx)

	if ssmClient == nil {
		logger.Info().Msg("Using environment variables for configuration (SSM disabled)")
		return services.NewEnvParameterStore(env)
	}

	logger.Info().Msg("Using AWS Systems Manager Parameter Store for configuration")
	return services.NewSSMParameterStore(ssmClient, env)
}

// ProvideAppConfig loads application configuration from Parameter Store or environment variables
func ProvideAppConfig(ctx context.Context, store services.ParameterStore, env string) (*services.Config, error) {
	logger := zerolog.Ctx(ctx)

	config, err := store.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := validateCatalogConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info().
		Str("env", env).
		Str("service_label", config.ServiceLabel).
		Str("catalog_source", config.CatalogSource).
		Bool("has_allowed_email", config.AllowedEmail != "").
		Bool("has_allowed_email_domain", config.AllowedEmailDomain != "").
		Bool("has_policy_file", config.PolicyFile != "").
		Msg("Configuration loaded successfully")

	return config, nil
}

// validateCatalogConfig checks that the catalog source is known and names a
// location. Only the env source falls back to VCAP_SERVICES.
func validateCatalogConfig(config *services.Config) error {
	switch config.CatalogSource {
	case services.CatalogSourceEnv:
		return nil
	case services.CatalogSourceParameter, services.CatalogSourceSecret, services.CatalogSourceFile:
		if strings.TrimSpace(config.CatalogName) == "" {
			return fmt.Errorf("catalog source %s requires a catalog name", config.CatalogSource)
		}
		return nil
	default:
		return fmt.Errorf("unsupported catalog source: %q", config.CatalogSource)
	}
}
