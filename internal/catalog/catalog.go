// Package catalog resolves identity provider credentials from the bound
// service catalog (Cloud Foundry VCAP_SERVICES or an equivalent document).
package catalog

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/savaki/gox/slicex"
	"gopkg.in/yaml.v3"
)

// Binding is a single bound service instance.
type Binding struct {
	Name        string         `json:"name"        yaml:"name"`
	Label       string         `json:"label"       yaml:"label"`
	Plan        string         `json:"plan"        yaml:"plan"`
	Tags        []string       `json:"tags"        yaml:"tags"`
	Credentials map[string]any `json:"credentials" yaml:"credentials"`
}

// Catalog is the flattened list of bindings visible to the application.
type Catalog struct {
	Bindings []Binding
}

// ParseVCAP parses a VCAP_SERVICES document: a map of service type to the
// bindings of that type. Bindings without a label inherit the map key.
func ParseVCAP(data []byte) (Catalog, error) {
	var services map[string][]Binding
	if err := json.Unmarshal(data, &services); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse service catalog: %w", err)
	}

	keys := make([]string, 0, len(services))
	for key := range services {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var c Catalog
	for _, key := range keys {
		for _, binding := range services[key] {
			if binding.Label == "" {
				binding.Label = key
			}
			c.Bindings = append(c.Bindings, binding)
		}
	}
	return c, nil
}

type yamlDocument struct {
	Services []Binding `yaml:"services"`
}

// ParseYAML parses a local catalog file of the form
//
//	services:
//	  - name: sso
//	    label: p-identity
//	    credentials:
//	      auth_domain: tenant.auth0.com
func ParseYAML(data []byte) (Catalog, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse service catalog: %w", err)
	}
	return Catalog{Bindings: doc.Services}, nil
}

// Find returns every binding whose label equals label.
func (c Catalog) Find(label string) []Binding {
	var found []Binding
	for _, binding := range c.Bindings {
		if binding.Label == label {
			found = append(found, binding)
		}
	}
	return found
}

// Summary describes a binding without its credentials.
type Summary struct {
	Name  string   `json:"name"`
	Label string   `json:"label"`
	Plan  string   `json:"plan,omitempty"`
	Keys  []string `json:"credential_keys"`
}

func summarize(b Binding) Summary {
	keys := make([]string, 0, len(b.Credentials))
	for key := range b.Credentials {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return Summary{Name: b.Name, Label: b.Label, Plan: b.Plan, Keys: keys}
}

// Summaries lists the catalog with credential values redacted.
func (c Catalog) Summaries() []Summary {
	return slicex.Map(c.Bindings, summarize)
}
