package oauth

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a token request when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// Parameter names understood by the OAuth2 strategies.
const (
	ParamClientID     = "clientId"
	ParamClientSecret = "clientSecret"
	ParamTokenURL     = "tokenUrl"
	ParamScope        = "scope"
)

// Config contains the settings for one client-credentials authentication attempt.
type Config struct {
	// ClientID is the OAuth client identifier. It also keys the token cache.
	ClientID string

	// ClientSecret is the OAuth client secret.
	ClientSecret string

	// TokenURL is the absolute URL of the token endpoint.
	TokenURL string

	// Scope is sent only when non-empty.
	Scope string

	// BasicAuth additionally sends the client credentials as an
	// HTTP Basic Authorization header. Body credentials are always sent.
	BasicAuth bool

	// Timeout bounds the token request.
	Timeout time.Duration
}

// ConfigFromParams builds a Config from strategy parameter values.
func ConfigFromParams(params map[string]string) *Config {
	return &Config{
		ClientID:     params[ParamClientID],
		ClientSecret: params[ParamClientSecret],
		TokenURL:     params[ParamTokenURL],
		Scope:        params[ParamScope],
	}
}

// Validate checks that the required fields are present and applies defaults.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, ParamClientID)
	}

	if strings.TrimSpace(c.ClientSecret) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, ParamClientSecret)
	}

	if strings.TrimSpace(c.TokenURL) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, ParamTokenURL)
	}

	u, err := url.Parse(c.TokenURL)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, ParamTokenURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%w: %s must be an absolute http(s) url", ErrInvalidConfig, ParamTokenURL)
	}

	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	return nil
}

// CacheKey derives the token cache key for a client identity.
func CacheKey(clientID string) string {
	return "uaa_token_" + clientID
}
