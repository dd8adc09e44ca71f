package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/savaki/sso-frontend/internal/errors"
	"github.com/savaki/sso-frontend/internal/openid"
	"github.com/savaki/sso-frontend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vcap = `{
  "p-identity": [
    {
      "name": "sso",
      "label": "p-identity",
      "plan": "auth0",
      "credentials": {
        "auth_domain": "acme.example",
        "client_id": "abc123",
        "client_secret": "s3cret"
      }
    }
  ],
  "user-provided": [
    {"name": "dup-1", "label": "duplicate", "credentials": {"auth_domain": "a", "client_id": "a", "client_secret": "a"}},
    {"name": "dup-2", "label": "duplicate", "credentials": {"auth_domain": "b", "client_id": "b", "client_secret": "b"}},
    {"name": "broken", "label": "broken", "credentials": {"auth_domain": "c", "client_id": 42}}
  ],
  "unlabelled": [
    {"name": "inherits", "credentials": {"auth_domain": "d", "client_id": "d", "client_secret": "d"}}
  ]
}`

func TestResolver_Resolve(t *testing.T) {
	c, err := ParseVCAP([]byte(vcap))
	require.NoError(t, err)
	resolver := NewResolver(StaticSource(c))

	tests := []struct {
		name    string
		label   string
		want    openid.ProviderCredentials
		matches int
		wantErr error
	}{
		{
			name:  "exactly one match",
			label: "p-identity",
			want:  openid.ProviderCredentials{Domain: "acme.example", ClientID: "abc123", ClientSecret: "s3cret"},
		},
		{
			name:  "label inherited from service type",
			label: "unlabelled",
			want:  openid.ProviderCredentials{Domain: "d", ClientID: "d", ClientSecret: "d"},
		},
		{
			name:    "no match",
			label:   "missing",
			matches: 0,
			wantErr: apperrors.ErrServiceNotFound,
		},
		{
			name:    "ambiguous match",
			label:   "duplicate",
			matches: 2,
			wantErr: apperrors.ErrServiceNotFound,
		},
		{
			name:    "invalid credentials",
			label:   "broken",
			wantErr: apperrors.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(context.Background(), tt.label)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)

				var notFound *apperrors.ServiceNotFoundError
				if errors.As(err, &notFound) {
					assert.Equal(t, tt.label, notFound.Label)
					assert.Equal(t, tt.matches, notFound.Matches)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCredentials_ErrorOmitsValues(t *testing.T) {
	_, err := Credentials(Binding{
		Name:        "sso",
		Credentials: map[string]any{"auth_domain": "acme.example", "client_id": "abc123"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_secret")
	assert.NotContains(t, err.Error(), "abc123")
}

func TestEnvSource(t *testing.T) {
	t.Run("unset variable is empty", func(t *testing.T) {
		source := EnvSource{Lookup: func(string) (string, bool) { return "", false }}
		c, err := source.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, c.Bindings)

		_, err = NewResolver(source).Resolve(context.Background(), "p-identity")
		assert.ErrorIs(t, err, apperrors.ErrServiceNotFound)
	})

	t.Run("reads VCAP_SERVICES", func(t *testing.T) {
		t.Setenv("VCAP_SERVICES", vcap)
		c, err := EnvSource{}.Load(context.Background())
		require.NoError(t, err)
		assert.Len(t, c.Find("duplicate"), 2)
	})

	t.Run("malformed document", func(t *testing.T) {
		source := EnvSource{Lookup: func(string) (string, bool) { return "{", true }}
		_, err := source.Load(context.Background())
		assert.Error(t, err)
	})
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
services:
  - name: sso
    label: p-identity
    credentials:
      auth_domain: tenant.example
      client_id: id
      client_secret: secret
`), 0o600))

	jsonPath := filepath.Join(dir, "vcap.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(vcap), 0o600))

	creds, err := NewResolver(FileSource{Path: yamlPath}).Resolve(context.Background(), "p-identity")
	require.NoError(t, err)
	assert.Equal(t, "tenant.example", creds.Domain)

	creds, err = NewResolver(FileSource{Path: jsonPath}).Resolve(context.Background(), "p-identity")
	require.NoError(t, err)
	assert.Equal(t, "acme.example", creds.Domain)

	_, err = FileSource{Path: filepath.Join(dir, "missing.yaml")}.Load(context.Background())
	assert.Error(t, err)
}

func TestParameterSource(t *testing.T) {
	t.Setenv("CATALOG_DOC", vcap)
	store := services.NewEnvParameterStore("test")

	creds, err := NewResolver(ParameterSource{Store: store, Name: "CATALOG_DOC"}).Resolve(context.Background(), "p-identity")
	require.NoError(t, err)
	assert.Equal(t, "abc123", creds.ClientID)

	c, err := ParameterSource{Store: store, Name: "CATALOG_DOC_UNSET"}.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, c.Bindings)
}

type secretsFunc func(ctx context.Context, name string) (string, error)

func (f secretsFunc) GetSecret(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

func TestSecretSource(t *testing.T) {
	source := SecretSource{
		Name: "catalog",
		Secrets: secretsFunc(func(_ context.Context, name string) (string, error) {
			if name != "catalog" {
				return "", services.ErrSecretNotFound
			}
			return vcap, nil
		}),
	}

	creds, err := NewResolver(source).Resolve(context.Background(), "p-identity")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", creds.ClientSecret)

	source.Name = "other"
	_, err = source.Load(context.Background())
	assert.ErrorIs(t, err, services.ErrSecretNotFound)
}

func TestCatalog_Summaries(t *testing.T) {
	c, err := ParseVCAP([]byte(vcap))
	require.NoError(t, err)

	summaries := c.Summaries()
	require.Len(t, summaries, len(c.Bindings))
	for _, s := range summaries {
		if s.Name == "sso" {
			assert.Equal(t, []string{"auth_domain", "client_id", "client_secret"}, s.Keys)
		}
	}
}
