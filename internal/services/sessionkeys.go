package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

const sessionKeyLength = 32

// SecretVersion represents a single rotated secret version
type SecretVersion struct {
	Secret    string `json:"secret"`
	Timestamp string `json:"timestamp"`
}

// SessionKeyService provides cookie encryption keys from Secrets Manager
type SessionKeyService struct {
	secrets    *SecretsManagerService
	secretName string
	onceFunc   func() ([][]byte, error)
}

// NewSessionKeyService creates a new session key service
func NewSessionKeyService(ctx context.Context, secrets *SecretsManagerService, secretName string) *SessionKeyService {
	s := &SessionKeyService{
		secrets:    secrets,
		secretName: secretName,
	}

	// Keys are fetched once per process; a restart picks up a rotation
	s.onceFunc = sync.OnceValues(func() ([][]byte, error) {
		return s.fetchSessionKeys(ctx)
	})

	return s
}

// GetSessionKeys returns the current session keys, newest first.
// The secret is read at most once per process.
func (s *SessionKeyService) GetSessionKeys() ([][]byte, error) {
	return s.onceFunc()
}

func (s *SessionKeyService) fetchSessionKeys(ctx context.Context) ([][]byte, error) {
	logger := zerolog.Ctx(ctx)

	logger.Info().Str("secret_name", s.secretName).Msg("Fetching session keys from Secrets Manager")

	secret, err := s.secrets.GetSecret(ctx, s.secretName)
	if err != nil {
		return nil, err
	}

	// Parse the secret JSON (array of versions)
	var versions []SecretVersion
	if err := json.Unmarshal([]byte(secret), &versions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret versions: %w", err)
	}

	if len(versions) == 0 {
		return nil, fmt.Errorf("no secret versions found in %s", s.secretName)
	}

	// Decode all versions (most recent first, up to 3)
	keys := make([][]byte, 0, len(versions))
	for i, version := range versions {
		decoded, err := decodeKey(version)
		if err != nil {
			logger.Warn().
				Int("index", i).
				Str("timestamp", version.Timestamp).
				Err(err).
				Msg("Skipping invalid secret version")
			continue
		}
		keys = append(keys, decoded)
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("no valid session keys found in secret %s", s.secretName)
	}

	logger.Info().Int("key_count", len(keys)).Msg("Successfully loaded session keys")

	return keys, nil
}

// decodeKey returns the raw key of a version. Keys are 32 bytes (AES-256).
func decodeKey(version SecretVersion) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(version.Secret)
	if err != nil {
		return nil, fmt.Errorf("secret is not valid base64: %w", err)
	}
	if len(decoded) != sessionKeyLength {
		return nil, fmt.Errorf("secret has length %d, expected %d", len(decoded), sessionKeyLength)
	}
	return decoded, nil
}
