package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// ErrSecretNotFound is returned when the secret does not exist or has no string value
var ErrSecretNotFound = errors.New("secret not found")

// SecretsManagerAPI is the subset of the Secrets Manager client used here
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type SecretsManagerService struct {
	client SecretsManagerAPI
}

func NewSecretsManagerService(client SecretsManagerAPI) *SecretsManagerService {
	return &SecretsManagerService{
		client: client,
	}
}

// GetSecret retrieves a secret value by path from AWS Secrets Manager
func (s *SecretsManagerService) GetSecret(ctx context.Context, secretPath string) (string, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretPath),
	})
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, secretPath)
		}
		return "", fmt.Errorf("failed to get secret %s: %w", secretPath, err)
	}

	if result.SecretString == nil {
		return "", fmt.Errorf("%w: %s has no string value", ErrSecretNotFound, secretPath)
	}

	return *result.SecretString, nil
}
