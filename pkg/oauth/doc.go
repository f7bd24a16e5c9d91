// Package oauth obtains OAuth 2.0 client-credentials tokens for outbound
// requests and formats them as Authorization: Bearer headers.
//
// # Authenticators
//
//   - CachedAuthenticator: caches tokens per client id and refreshes them
//     shortly before they expire. Concurrent callers for the same client id
//     share a single token request.
//   - PlainAuthenticator: requests a new token on every call.
//
// Example - Cached client credentials:
//
//	auth := oauth.NewCachedAuthenticator(oauth.WithLogger(logger))
//
//	cred, err := auth.Authenticate(ctx, &oauth.Config{
//	    ClientID:     "scanner",
//	    ClientSecret: "secret",
//	    TokenURL:     "https://uaa.example.com/oauth/token",
//	    Scope:        "api.read",
//	})
//	if err != nil {
//	    log.Printf("Authentication failed: %v", err)
//	    return
//	}
//
//	cred.Apply(req) // Authorization: Bearer <token>
//
// # Token Caching
//
// Tokens live in a TokenCache keyed by client id. An entry expires
// DefaultExpiryBuffer (five minutes) before the lifetime reported by the
// token endpoint; a token whose lifetime is at most the buffer is used for
// the call that fetched it and never reused. Failed requests are not cached.
//
// Authenticators share the process-wide cache returned by DefaultTokenCache
// unless constructed WithCache.
//
// # Errors
//
//   - ErrInvalidConfig: a required field is missing; no request is sent.
//   - ErrTokenRequestFailed: non-200 status, transport failure or timeout.
//     errors.As with *TokenRequestError exposes status, body and Timeout.
//   - ErrMalformedResponse: 200 without a JSON object carrying access_token.
//
// Nothing is retried inside this package.
//
// # Thread Safety
//
// All exported types are safe for concurrent use.
package oauth
