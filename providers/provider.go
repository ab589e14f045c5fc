// Package providers contains the upstream OAuth provider adapters.
// Each adapter exchanges an authorization code for the provider's
// tokens and reduces the result to normalized identity claims. OIDC
// providers verify the returned ID token; plain OAuth2 providers fall
// back to the provider's profile API.
package providers

import (
	"context"

	"github.com/jrsteele09/go-token-exchange/identity"
	apperrors "github.com/jrsteele09/go-token-exchange/internal/errors"
)

// Provider is one upstream OAuth/OIDC provider. Implementations must
// be safe for concurrent use.
type Provider interface {
	// Name returns the provider identifier used in request paths
	Name() string

	// SupportsPKCE reports whether the provider accepts a PKCE code
	// verifier at its token endpoint
	SupportsPKCE() bool

	// SupportsOIDC reports whether the provider returns a verifiable
	// ID token alongside its access token
	SupportsOIDC() bool

	// Exchange trades an authorization code (plus the PKCE verifier,
	// when one was used) for normalized identity claims
	Exchange(ctx context.Context, code, codeVerifier string) (*identity.User, error)
}

// Registry holds the configured providers keyed by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, apperrors.ErrUnknownProvider
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
