package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/smithy-go"
	"github.com/savaki/sso-frontend/internal/constants"
)

// ErrParameterNotFound is returned when a parameter does not exist in the store
var ErrParameterNotFound = errors.New("parameter not found")

// Catalog source kinds
const (
	CatalogSourceEnv       = "env"
	CatalogSourceParameter = "ssm"
	CatalogSourceSecret    = "secretsmanager"
	CatalogSourceFile      = "file"
)

// Config holds all application configuration values from Parameter Store
type Config struct {
	ServiceLabel           string   `json:"service_label"`
	CatalogSource          string   `json:"catalog_source"`
	CatalogName            string   `json:"catalog_name"` // parameter name, secret id, or file path depending on CatalogSource
	SessionTokenSecretName string   `json:"session_token_secret_name"`
	AllowedEmail           string   `json:"allowed_email,omitempty"`
	AllowedEmailDomain     string   `json:"allowed_email_domain,omitempty"`
	PolicyFile             string   `json:"policy_file,omitempty"`
	Scopes                 []string `json:"scopes,omitempty"`
}

// ParameterStore defines the interface for accessing configuration parameters
type ParameterStore interface {
	// GetParameter retrieves a single parameter by name
	GetParameter(ctx context.Context, name string) (string, error)

	// GetConfig loads all application configuration from Parameter Store
	GetConfig(ctx context.Context) (*Config, error)
}

// SSMAPI is the subset of the SSM client used by SSMParameterStore
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// SSMParameterStore implements ParameterStore using AWS Systems Manager Parameter Store
type SSMParameterStore struct {
	client SSMAPI
	env    string
	mu     sync.RWMutex
	cache  map[string]string
}

// NewSSMParameterStore creates a new SSM-backed parameter store
func NewSSMParameterStore(client SSMAPI, env string) *SSMParameterStore {
	return &SSMParameterStore{
		client: client,
		env:    env,
		cache:  make(map[string]string),
	}
}

// GetParameter retrieves a single parameter from SSM Parameter Store
func (s *SSMParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	// Check cache first
	s.mu.RLock()
	if value, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return value, nil
	}
	s.mu.RUnlock()

	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: boolPtr(true),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ParameterNotFound" {
			return "", fmt.Errorf("%w: %s", ErrParameterNotFound, name)
		}
		return "", fmt.Errorf("failed to get parameter %s: %w", name, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("%w: %s", ErrParameterNotFound, name)
	}

	value := *result.Parameter.Value

	s.mu.Lock()
	s.cache[name] = value
	s.mu.Unlock()

	return value, nil
}

// Invalidate drops a cached parameter so the next GetParameter reads through to SSM
func (s *SSMParameterStore) Invalidate(name string) {
	s.mu.Lock()
	delete(s.cache, name)
	s.mu.Unlock()
}

func (s *SSMParameterStore) prefix() string {
	return fmt.Sprintf("/%s/sso-frontend", s.env)
}

// GetConfig loads all application configuration from Parameter Store
func (s *SSMParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	path := s.prefix()

	params := make(map[string]string)
	var nextToken *string
	for {
		result, err := s.client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
			Path:           &path,
			Recursive:      boolPtr(true),
			WithDecryption: boolPtr(true),
			NextToken:      nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get parameters by path %s: %w", path, err)
		}

		for _, param := range result.Parameters {
			if param.Name != nil && param.Value != nil {
				params[*param.Name] = *param.Value
			}
		}

		if result.NextToken == nil || *result.NextToken == "" {
			break
		}
		nextToken = result.NextToken
	}

	s.mu.Lock()
	for k, v := range params {
		s.cache[k] = v
	}
	s.mu.Unlock()

	key := func(name string) string {
		return params[path+"/"+name]
	}

	config := &Config{
		ServiceLabel:           key("service-label"),
		CatalogSource:          key("catalog-source"),
		CatalogName:            key("catalog-name"),
		SessionTokenSecretName: key("session-token-secret-name"),
		AllowedEmail:           key("allowed-email"),
		AllowedEmailDomain:     key("allowed-email-domain"),
		PolicyFile:             key("policy-file"),
		Scopes:                 splitList(key("scopes")),
	}

	// A catalog stored next to the config only needs the source set
	if config.CatalogSource == CatalogSourceParameter && config.CatalogName == "" {
		config.CatalogName = path + "/vcap-services"
	}

	applyDefaults(config, s.env)
	return config, nil
}

// EnvParameterStore implements ParameterStore using environment variables
// This is a NoOp implementation for local development without AWS connection
type EnvParameterStore struct {
	env string
}

// NewEnvParameterStore creates a new environment variable-backed parameter store
func NewEnvParameterStore(env string) *EnvParameterStore {
	return &EnvParameterStore{
		env: env,
	}
}

// GetParameter retrieves a parameter from environment variables.
// Unset variables are reported as ErrParameterNotFound.
func (e *EnvParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrParameterNotFound, name)
	}
	return value, nil
}

// GetConfig loads all application configuration from environment variables
func (e *EnvParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	config := &Config{
		ServiceLabel:           os.Getenv("SERVICE_LABEL"),
		CatalogSource:          os.Getenv("CATALOG_SOURCE"),
		CatalogName:            os.Getenv("CATALOG_NAME"),
		SessionTokenSecretName: os.Getenv("SESSION_TOKEN_SECRET_NAME"),
		AllowedEmail:           os.Getenv("ALLOWED_EMAIL"),
		AllowedEmailDomain:     os.Getenv("ALLOWED_EMAIL_DOMAIN"),
		PolicyFile:             os.Getenv("POLICY_FILE"),
		Scopes:                 splitList(os.Getenv("OIDC_SCOPES")),
	}

	applyDefaults(config, e.env)
	return config, nil
}

func applyDefaults(config *Config, env string) {
	if config.ServiceLabel == "" {
		config.ServiceLabel = constants.DefaultServiceLabel
	}
	if config.CatalogSource == "" {
		config.CatalogSource = CatalogSourceEnv
	}
	if config.CatalogSource == CatalogSourceEnv && config.CatalogName == "" {
		config.CatalogName = "VCAP_SERVICES"
	}
	if config.SessionTokenSecretName == "" {
		config.SessionTokenSecretName = fmt.Sprintf("sso-frontend/%s/session-token", env)
	}
}

func splitList(s string) []string {
	var values []string
	for _, v := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func boolPtr(b bool) *bool {
	return &b
}
