package strategy

import (
	"context"
	"errors"
	"time"

	"github.com/jeremyhahn/go-proxyauth/pkg/oauth"
)

const (
	DefaultRetryAttempts  = 3
	DefaultInitialBackoff = 100 * time.Millisecond
)

// WithRetry wraps s so that transient token request failures are retried
// with exponential backoff. Only errors whose *oauth.TokenRequestError reports
// Temporary are retried: transport errors, timeouts, 429 and 5xx. Invalid
// configuration, malformed responses, other 4xx statuses and ErrNotImplemented
// are returned immediately.
//
// attempts below 1 uses DefaultRetryAttempts; a non-positive backoff uses
// DefaultInitialBackoff.
func WithRetry(s Strategy, attempts int, initialBackoff time.Duration) Strategy {
	if attempts < 1 {
		attempts = DefaultRetryAttempts
	}
	if initialBackoff <= 0 {
		initialBackoff = DefaultInitialBackoff
	}

	return Func{
		Descriptor: s,
		Fn: func(ctx context.Context, params, credentials map[string]string) (*Credential, error) {
			var lastErr error
			backoff := initialBackoff

			for attempt := 0; attempt < attempts; attempt++ {
				cred, err := s.Authenticate(ctx, params, credentials)
				if err == nil {
					return cred, nil
				}
				lastErr = err

				if !shouldRetry(err) || attempt == attempts-1 {
					break
				}

				timer := time.NewTimer(backoff)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, lastErr
				case <-timer.C:
				}
				backoff *= 2
			}

			return nil, lastErr
		},
	}
}

// shouldRetry reports whether err is a transient token request failure.
func shouldRetry(err error) bool {
	var reqErr *oauth.TokenRequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	return reqErr.Temporary()
}
