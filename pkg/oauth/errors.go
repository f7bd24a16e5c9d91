package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates a required configuration field is missing or malformed.
	// It is returned before any network call is made.
	ErrInvalidConfig = errors.New("oauth: invalid configuration")

	// ErrTokenRequestFailed indicates the token endpoint answered with a non-200 status
	// or could not be reached. Use errors.As with *TokenRequestError for details.
	ErrTokenRequestFailed = errors.New("oauth: token request failed")

	// ErrMalformedResponse indicates a 200 response whose body is not a JSON object
	// carrying a string access_token.
	ErrMalformedResponse = errors.New("oauth: malformed token response")
)

// TokenRequestError carries diagnostics for a failed token request.
// It matches ErrTokenRequestFailed with errors.Is.
type TokenRequestError struct {
	// StatusCode is the HTTP status returned by the token endpoint.
	// Zero when the request never produced a response.
	StatusCode int

	// Body is the raw response body, kept for diagnostics.
	Body string

	// Timeout reports whether the request was abandoned because its deadline passed.
	Timeout bool

	// Err is the transport-level cause, if any.
	Err error
}

func (e *TokenRequestError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: timeout: %v", ErrTokenRequestFailed, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", ErrTokenRequestFailed, e.Err)
	default:
		return fmt.Sprintf("%s: status %d: %s", ErrTokenRequestFailed, e.StatusCode, e.Body)
	}
}

// Is reports ErrTokenRequestFailed as a match.
func (e *TokenRequestError) Is(target error) bool {
	return target == ErrTokenRequestFailed
}

// Unwrap returns the transport-level cause.
func (e *TokenRequestError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the request could succeed:
// transport failures, timeouts, rate limiting and server errors.
func (e *TokenRequestError) Temporary() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}
