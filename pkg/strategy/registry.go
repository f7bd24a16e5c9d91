package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jeremyhahn/go-proxyauth/pkg/oauth"
	"github.com/jeremyhahn/go-proxyauth/pkg/saml"
)

// Entry pairs a strategy with the name it is selected by.
type Entry struct {
	Name     Name
	Strategy Strategy
}

// Registry selects strategies by name. It is immutable once built and safe
// for concurrent use.
type Registry struct {
	strategies map[Name]Strategy
}

// NewRegistry builds a Registry from the supplied entries.
func NewRegistry(entries ...Entry) (*Registry, error) {
	strategies := make(map[Name]Strategy, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("strategy: entry at index %d has no name", i)
		}
		if e.Strategy == nil {
			return nil, fmt.Errorf("strategy: entry %q has no strategy", e.Name)
		}
		if _, ok := strategies[e.Name]; ok {
			return nil, fmt.Errorf("strategy: duplicate strategy name %q", e.Name)
		}
		strategies[e.Name] = e.Strategy
	}
	return &Registry{strategies: strategies}, nil
}

// Default returns a registry holding the cached OAuth2, plain OAuth2 and SAML
// strategies. The options configure both OAuth2 authenticators.
func Default(logger *slog.Logger, opts ...oauth.Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]oauth.Option{oauth.WithLogger(logger)}, opts...)

	return &Registry{strategies: map[Name]Strategy{
		NameCachedOAuth2: CachedOAuth2(oauth.NewCachedAuthenticator(opts...)),
		NamePlainOAuth2:  PlainOAuth2(oauth.NewPlainAuthenticator(opts...)),
		NameSAML:         SAML(saml.NewAuthenticator(logger)),
	}}
}

// Get returns the strategy registered under name.
func (r *Registry) Get(name Name) (Strategy, error) {
	if r != nil {
		if s, ok := r.strategies[name]; ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []Name {
	if r == nil {
		return nil
	}
	return sortedNames(r.strategies)
}

// Authenticate runs the named strategy.
func (r *Registry) Authenticate(ctx context.Context, name Name, params, credentials map[string]string) (*Credential, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return s.Authenticate(ctx, params, credentials)
}
