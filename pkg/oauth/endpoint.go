package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseSize caps how much of a token response is read.
const maxResponseSize = 1 << 20

// TokenEndpointClient sends client-credentials token requests.
// It never retries; retry policy belongs to the caller.
type TokenEndpointClient struct {
	httpClient HTTPClient
	logger     *slog.Logger
	observer   Observer
}

// NewTokenEndpointClient creates a token endpoint client.
func NewTokenEndpointClient(opts ...Option) *TokenEndpointClient {
	o := newOptions(opts)
	return &TokenEndpointClient{
		httpClient: o.httpClient,
		logger:     o.logger,
		observer:   o.observer,
	}
}

// Fetch requests a token and validates the response strictly: anything other than
// a 200 carrying a JSON object with a non-empty string access_token is an error.
func (c *TokenEndpointClient) Fetch(ctx context.Context, config *Config) (*TokenResponse, error) {
	return c.fetch(ctx, config, true)
}

// FetchLenient behaves like Fetch except that a missing access_token is
// accepted and yields an empty token.
func (c *TokenEndpointClient) FetchLenient(ctx context.Context, config *Config) (*TokenResponse, error) {
	return c.fetch(ctx, config, false)
}

func (c *TokenEndpointClient) fetch(ctx context.Context, config *Config, strict bool) (*TokenResponse, error) {
	start := time.Now()
	body, err := c.exchange(ctx, config)
	if err != nil {
		c.observer.ObserveTokenRequest(outcomeOf(err), time.Since(start))
		return nil, err
	}

	resp, err := parseTokenResponse(body, strict)
	if err != nil {
		c.observer.ObserveTokenRequest(OutcomeMalformed, time.Since(start))
		return nil, err
	}

	c.observer.ObserveTokenRequest(OutcomeSuccess, time.Since(start))
	c.loggerFor(ctx).Info("token obtained",
		"client_id", config.ClientID,
		"expires_in", resp.ExpiresIn)
	return resp, nil
}

// exchange sends the token request and returns the body of a 200 response.
func (c *TokenEndpointClient) exchange(ctx context.Context, config *Config) ([]byte, error) {
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	req, err := newTokenRequest(ctx, config)
	if err != nil {
		return nil, &TokenRequestError{Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		reqErr := &TokenRequestError{Err: err, Timeout: isTimeout(ctx, err)}
		c.loggerFor(ctx).Warn("token request failed",
			"client_id", config.ClientID,
			"token_url", config.TokenURL,
			"timeout", reqErr.Timeout,
			"error", err)
		return nil, reqErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TokenRequestError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err), Timeout: isTimeout(ctx, err)}
	}

	if resp.StatusCode != http.StatusOK {
		c.loggerFor(ctx).Warn("token request failed",
			"client_id", config.ClientID,
			"token_url", config.TokenURL,
			"status", resp.StatusCode,
			"response", string(body))
		return nil, &TokenRequestError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

// loggerFor tags the logger with the cache refresh ctx belongs to, if any.
func (c *TokenEndpointClient) loggerFor(ctx context.Context) *slog.Logger {
	if id, ok := RefreshIDFromContext(ctx); ok {
		return c.logger.With("refresh_id", id)
	}
	return c.logger
}

// newTokenRequest builds the client-credentials POST.
func newTokenRequest(ctx context.Context, config *Config) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.TokenURL, strings.NewReader(EncodeTokenRequest(config)))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	if config.BasicAuth {
		req.Header.Set(HeaderAuthorization, "Basic "+basicCredentials(config.ClientID, config.ClientSecret))
	}

	return req, nil
}

// EncodeTokenRequest renders the form body of a client-credentials request.
// Fields keep a fixed order and scope is present only when non-empty.
func EncodeTokenRequest(config *Config) string {
	var b strings.Builder
	b.WriteString("grant_type=client_credentials")
	b.WriteString("&client_id=")
	b.WriteString(url.QueryEscape(config.ClientID))
	b.WriteString("&client_secret=")
	b.WriteString(url.QueryEscape(config.ClientSecret))
	if config.Scope != "" {
		b.WriteString("&scope=")
		b.WriteString(url.QueryEscape(config.Scope))
	}
	return b.String()
}

func basicCredentials(clientID, clientSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
}

// parseTokenResponse decodes a token endpoint body. When strict, a missing or
// empty access_token is reported as ErrMalformedResponse.
func parseTokenResponse(body []byte, strict bool) (*TokenResponse, error) {
	var tokenResp struct {
		AccessToken *string     `json:"access_token"`
		ExpiresIn   json.Number `json:"expires_in"`
	}

	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return nil, fmt.Errorf("%w: body is not a json object", ErrMalformedResponse)
	}

	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	resp := &TokenResponse{ExpiresIn: DefaultExpiresIn}

	if tokenResp.AccessToken != nil {
		resp.AccessToken = *tokenResp.AccessToken
	}
	if strict && resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token in response", ErrMalformedResponse)
	}

	if tokenResp.ExpiresIn != "" {
		expiresIn, err := parseExpiresIn(tokenResp.ExpiresIn)
		if err != nil {
			return nil, fmt.Errorf("%w: expires_in: %v", ErrMalformedResponse, err)
		}
		resp.ExpiresIn = expiresIn
	}

	return resp, nil
}

// parseExpiresIn accepts integer and fractional seconds and clamps the result
// to [0, maxExpiresIn].
func parseExpiresIn(n json.Number) (int64, error) {
	v, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return 0, err
		}
		switch {
		case f >= float64(maxExpiresIn):
			return maxExpiresIn, nil
		case f <= 0:
			return 0, nil
		}
		v = int64(f)
	}
	switch {
	case v < 0:
		v = 0
	case v > maxExpiresIn:
		v = maxExpiresIn
	}
	return v, nil
}

// isTimeout reports whether err stems from a deadline rather than a refused connection.
func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func outcomeOf(err error) string {
	var reqErr *TokenRequestError
	if !errors.As(err, &reqErr) {
		return OutcomeTransport
	}
	switch {
	case reqErr.Timeout:
		return OutcomeTimeout
	case reqErr.StatusCode != 0 && reqErr.Err == nil:
		return OutcomeStatus
	default:
		return OutcomeTransport
	}
}
