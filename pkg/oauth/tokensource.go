package oauth

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenSource adapts the authenticator to golang.org/x/oauth2 so that clients
// built with oauth2.NewClient share the same cache and refresh collapsing.
func (a *CachedAuthenticator) TokenSource(ctx context.Context, config *Config) oauth2.TokenSource {
	return &cachedTokenSource{ctx: ctx, auth: a, config: config}
}

type cachedTokenSource struct {
	ctx    context.Context
	auth   *CachedAuthenticator
	config *Config
}

// Token returns the cached token, refreshing it when needed. Expiry is the
// served entry's buffered expiry so that oauth2.ReuseTokenSource asks again
// once the cache would refresh.
func (s *cachedTokenSource) Token() (*oauth2.Token, error) {
	entry, err := s.auth.authenticate(s.ctx, s.config)
	if err != nil {
		return nil, err
	}

	return &oauth2.Token{
		AccessToken: entry.value,
		TokenType:   "Bearer",
		Expiry:      entry.expiresAt,
	}, nil
}
