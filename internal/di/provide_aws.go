package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
	"github.com/savaki/sso-frontend/internal/services"
)

// ProvideContext returns the root context carrying the process logger.
func ProvideContext(logger zerolog.Logger) context.Context {
	return logger.WithContext(context.Background())
}

// ProvideAWSConfig loads the default AWS configuration. When an endpoint is
// configured (localstack and friends) static dummy credentials are used.
func ProvideAWSConfig(ctx context.Context, endpoint AWSEndpoint) (aws.Config, error) {
	if endpoint == "" {
		return config.LoadDefaultConfig(ctx)
	}

	zerolog.Ctx(ctx).Info().Str("endpoint", string(endpoint)).Msg("Using local AWS endpoint")

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")),
	)
	if err != nil {
		return aws.Config{}, err
	}
	cfg.BaseEndpoint = aws.String(string(endpoint))
	return cfg, nil
}

func ProvideSecretsManager(cfg aws.Config) *services.SecretsManagerService {
	return services.NewSecretsManagerService(secretsmanager.NewFromConfig(cfg))
}

func ProvideSTSClient(cfg aws.Config) *sts.Client {
	return sts.NewFromConfig(cfg)
}
