package authz

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

//go:embed default.rego
var defaultPolicy string

const regoQuery = "data.ssofrontend.authz.allow"

// RegoPolicy admits users for whom the Rego rule
// data.ssofrontend.authz.allow evaluates to true. The input document is
// {"sub": ..., "name": ..., "email": ...}.
type RegoPolicy struct {
	prepared rego.PreparedEvalQuery
}

// NewRegoPolicy compiles module. An empty module uses the built-in policy,
// which admits any user with a verified subject.
func NewRegoPolicy(ctx context.Context, module string) (*RegoPolicy, error) {
	if module == "" {
		module = defaultPolicy
	}

	prepared, err := rego.New(
		rego.Query(regoQuery),
		rego.Module("authz.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare policy query: %w", err)
	}

	return &RegoPolicy{prepared: prepared}, nil
}

// LoadRegoPolicy compiles the policy file at path.
func LoadRegoPolicy(ctx context.Context, path string) (*RegoPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	return NewRegoPolicy(ctx, string(data))
}

func (p *RegoPolicy) Name() string {
	return "Rego"
}

func (p *RegoPolicy) Authorize(ctx context.Context, profile Profile) error {
	input := map[string]interface{}{
		"sub":   profile.Sub,
		"name":  profile.Name,
		"email": profile.Email,
	}

	results, err := p.prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return fmt.Errorf("policy evaluation returned no results")
	}

	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return fmt.Errorf("policy evaluation returned non-boolean result")
	}
	if !allowed {
		return fmt.Errorf("denied by policy")
	}
	return nil
}
