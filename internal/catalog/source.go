package catalog

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/savaki/sso-frontend/internal/services"
)

// Source loads the current catalog. Sources are read on every resolve so
// rebinding a service is picked up without a restart.
type Source interface {
	Load(ctx context.Context) (Catalog, error)
}

// EnvSource reads a VCAP_SERVICES document from an environment variable.
// An unset variable is an empty catalog.
type EnvSource struct {
	Name   string
	Lookup func(string) (string, bool)
}

func (s EnvSource) Load(ctx context.Context) (Catalog, error) {
	lookup := s.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	name := s.Name
	if name == "" {
		name = "VCAP_SERVICES"
	}

	value, ok := lookup(name)
	if !ok || strings.TrimSpace(value) == "" {
		return Catalog{}, nil
	}
	return ParseVCAP([]byte(value))
}

// ParameterSource reads a VCAP_SERVICES document from Parameter Store.
type ParameterSource struct {
	Store services.ParameterStore
	Name  string
}

func (s ParameterSource) Load(ctx context.Context) (Catalog, error) {
	value, err := s.Store.GetParameter(ctx, s.Name)
	if err != nil {
		if stderrors.Is(err, services.ErrParameterNotFound) {
			return Catalog{}, nil
		}
		return Catalog{}, err
	}
	return ParseVCAP([]byte(value))
}

// SecretGetter is satisfied by services.SecretsManagerService
type SecretGetter interface {
	GetSecret(ctx context.Context, secretPath string) (string, error)
}

// SecretSource reads a VCAP_SERVICES document from Secrets Manager.
type SecretSource struct {
	Secrets SecretGetter
	Name    string
}

func (s SecretSource) Load(ctx context.Context) (Catalog, error) {
	value, err := s.Secrets.GetSecret(ctx, s.Name)
	if err != nil {
		return Catalog{}, err
	}
	return ParseVCAP([]byte(value))
}

// FileSource reads a catalog file; .yaml and .yml use ParseYAML, anything
// else is treated as a VCAP_SERVICES document.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) (Catalog, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read catalog file %s: %w", s.Path, err)
	}

	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseVCAP(data)
	}
}

// StaticSource serves a fixed catalog.
type StaticSource Catalog

func (s StaticSource) Load(ctx context.Context) (Catalog, error) {
	return Catalog(s), nil
}
