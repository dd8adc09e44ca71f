package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/savaki/sso-frontend/internal/errors"
)

// Profile represents user information needed for authorization.
// This mirrors the auth.Profile struct but keeps packages decoupled.
type Profile struct {
	Sub   string
	Name  string
	Email string
}

// Policy defines an authorization rule that can allow or deny access.
type Policy interface {
	// Authorize returns nil if the user is authorized, or an error if denied.
	Authorize(ctx context.Context, profile Profile) error
	// Name returns a human-readable name for this policy.
	Name() string
}

// AllowedEmailPolicy admits a single email address.
type AllowedEmailPolicy struct {
	AllowedEmail string
}

func (p *AllowedEmailPolicy) Name() string {
	return "AllowedEmail"
}

func (p *AllowedEmailPolicy) Authorize(ctx context.Context, profile Profile) error {
	if !strings.EqualFold(profile.Email, p.AllowedEmail) {
		return fmt.Errorf("email %s is not authorized", profile.Email)
	}
	return nil
}

// EmailDomainPolicy admits any address in Domain.
type EmailDomainPolicy struct {
	Domain string
}

func (p *EmailDomainPolicy) Name() string {
	return "EmailDomain"
}

func (p *EmailDomainPolicy) Authorize(ctx context.Context, profile Profile) error {
	_, domain, ok := strings.Cut(profile.Email, "@")
	if !ok || !strings.EqualFold(domain, strings.TrimPrefix(p.Domain, "@")) {
		return fmt.Errorf("email %s is outside domain %s", profile.Email, p.Domain)
	}
	return nil
}

// Authorizer manages a collection of authorization policies.
type Authorizer struct {
	policies []Policy
}

// NewAuthorizer creates a new authorizer with the given policies.
func NewAuthorizer(policies ...Policy) *Authorizer {
	return &Authorizer{
		policies: policies,
	}
}

// Authorize runs all policies and returns an error wrapping
// errors.ErrAccessDenied if any policy denies access.
func (a *Authorizer) Authorize(ctx context.Context, profile Profile) error {
	for _, policy := range a.policies {
		if err := policy.Authorize(ctx, profile); err != nil {
			return fmt.Errorf("%w: policy %s: %v", errors.ErrAccessDenied, policy.Name(), err)
		}
	}
	return nil
}

// Len reports the number of configured policies.
func (a *Authorizer) Len() int {
	return len(a.policies)
}
