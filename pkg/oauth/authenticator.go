package oauth

import (
	"context"
	"log/slog"
	"time"
)

var (
	oauthRequiredParams = []string{ParamClientID, ParamClientSecret, ParamTokenURL}
	oauthOptionalParams = []string{ParamScope}
)

// CachedAuthenticator obtains client-credentials tokens and reuses them across
// requests until shortly before they expire.
//
// It holds no state of its own besides a reference to its TokenCache and is
// safe for concurrent use. It only produces the header; sending the protected
// request is up to the caller.
type CachedAuthenticator struct {
	endpoint *TokenEndpointClient
	cache    *TokenCache
	logger   *slog.Logger
	timeout  time.Duration
}

// NewCachedAuthenticator creates an authenticator backed by the process-wide
// token cache unless WithCache is given.
func NewCachedAuthenticator(opts ...Option) *CachedAuthenticator {
	o := newOptions(opts)

	cache := o.cache
	if cache == nil {
		cache = DefaultTokenCache()
	}

	return &CachedAuthenticator{
		endpoint: NewTokenEndpointClient(opts...),
		cache:    cache,
		logger:   o.logger,
		timeout:  o.timeout,
	}
}

// Authenticate returns an Authorization: Bearer credential for config.
// The token request carries the client credentials both in the body and as
// HTTP Basic authentication. Errors from the token endpoint are returned unchanged.
func (a *CachedAuthenticator) Authenticate(ctx context.Context, config *Config) (*Credential, error) {
	entry, err := a.authenticate(ctx, config)
	if err != nil {
		return nil, err
	}
	return BearerCredential(entry.value), nil
}

// authenticate returns the cache entry serving config.
func (a *CachedAuthenticator) authenticate(ctx context.Context, config *Config) (*cachedToken, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg, err := prepareConfig(config, a.timeout)
	if err != nil {
		return nil, err
	}
	cfg.BasicAuth = true

	return a.cache.getOrRefresh(ctx, CacheKey(cfg.ClientID), func(ctx context.Context) (*TokenResponse, error) {
		return a.endpoint.Fetch(ctx, cfg)
	})
}

// Cache returns the token cache used by the authenticator.
func (a *CachedAuthenticator) Cache() *TokenCache {
	return a.cache
}

// RequiredParameterNames returns clientId, clientSecret and tokenUrl.
func (a *CachedAuthenticator) RequiredParameterNames() []string {
	return append([]string(nil), oauthRequiredParams...)
}

// OptionalParameterNames returns scope.
func (a *CachedAuthenticator) OptionalParameterNames() []string {
	return append([]string(nil), oauthOptionalParams...)
}

// CredentialFieldNames returns no names: client credentials are configuration,
// not per-user secrets.
func (a *CachedAuthenticator) CredentialFieldNames() []string {
	return []string{}
}

// PlainAuthenticator requests a new token on every call.
//
// A 200 response without an access_token is accepted and produces a bearer
// credential with an empty token. Prefer CachedAuthenticator, which rejects it.
type PlainAuthenticator struct {
	endpoint *TokenEndpointClient
	timeout  time.Duration
}

// NewPlainAuthenticator creates an authenticator without caching.
func NewPlainAuthenticator(opts ...Option) *PlainAuthenticator {
	o := newOptions(opts)
	return &PlainAuthenticator{
		endpoint: NewTokenEndpointClient(opts...),
		timeout:  o.timeout,
	}
}

// Authenticate fetches a token for config and formats it as a bearer credential.
func (a *PlainAuthenticator) Authenticate(ctx context.Context, config *Config) (*Credential, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg, err := prepareConfig(config, a.timeout)
	if err != nil {
		return nil, err
	}

	resp, err := a.endpoint.FetchLenient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return BearerCredential(resp.AccessToken), nil
}

// RequiredParameterNames returns clientId, clientSecret and tokenUrl.
func (a *PlainAuthenticator) RequiredParameterNames() []string {
	return append([]string(nil), oauthRequiredParams...)
}

// OptionalParameterNames returns scope.
func (a *PlainAuthenticator) OptionalParameterNames() []string {
	return append([]string(nil), oauthOptionalParams...)
}

// CredentialFieldNames returns no names.
func (a *PlainAuthenticator) CredentialFieldNames() []string {
	return []string{}
}

// prepareConfig validates a copy of config so that defaults applied by Validate
// never race with other callers sharing the same *Config. timeout fills an
// unset Timeout before DefaultTimeout would.
func prepareConfig(config *Config, timeout time.Duration) (*Config, error) {
	var cfg Config
	if config != nil {
		cfg = *config
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = timeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
