package oauth

import (
	"math"
	"net/http"
	"time"
)

// DefaultExpiresIn is assumed when the token endpoint omits expires_in.
const DefaultExpiresIn = 3600

// maxExpiresIn is the largest lifetime in seconds a time.Duration can hold.
const maxExpiresIn = math.MaxInt64 / int64(time.Second)

// TokenResponse is the parsed result of a successful token request.
type TokenResponse struct {
	// AccessToken is the opaque bearer token.
	AccessToken string

	// ExpiresIn is the token lifetime in seconds reported by the issuer.
	ExpiresIn int64
}

// Lifetime returns ExpiresIn as a duration, saturating at the largest
// representable duration.
func (t *TokenResponse) Lifetime() time.Duration {
	if t.ExpiresIn <= 0 {
		return 0
	}
	if t.ExpiresIn > maxExpiresIn {
		return time.Duration(maxExpiresIn) * time.Second
	}
	return time.Duration(t.ExpiresIn) * time.Second
}

// HeaderAuthorization is the header every OAuth2 credential is written to.
const HeaderAuthorization = "Authorization"

// Credential is a formatted request header produced by an authenticator.
type Credential struct {
	Header string
	Value  string
}

// BearerCredential formats token as an Authorization: Bearer header.
func BearerCredential(token string) *Credential {
	return &Credential{Header: HeaderAuthorization, Value: "Bearer " + token}
}

// String renders the credential as a header line.
func (c *Credential) String() string {
	return c.Header + ": " + c.Value
}

// Apply sets the credential header on req, replacing any existing value.
func (c *Credential) Apply(req *http.Request) {
	req.Header.Set(c.Header, c.Value)
}

// cachedToken is an immutable cache entry. Entries are replaced, never mutated.
type cachedToken struct {
	value     string
	expiresAt time.Time
}

// validAt reports whether the entry may be returned at now.
func (t *cachedToken) validAt(now time.Time) bool {
	return t != nil && now.Before(t.expiresAt)
}
