package strategy

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jeremyhahn/go-proxyauth/pkg/oauth"
	"github.com/jeremyhahn/go-proxyauth/pkg/saml"
)

// Descriptor reports the parameter names a strategy reads.
type Descriptor interface {
	RequiredParameterNames() []string
	OptionalParameterNames() []string
	CredentialFieldNames() []string
}

// Strategy produces the credential attached to an outbound request.
// Parameters describe the target system; credentials are per-user secrets.
type Strategy interface {
	Descriptor
	Authenticate(ctx context.Context, params, credentials map[string]string) (*Credential, error)
}

// Credential is a single header to attach to the protected request.
type Credential = oauth.Credential

// Name identifies a registered strategy.
type Name string

const (
	NameCachedOAuth2 Name = "uaa-oauth2-cached"
	NamePlainOAuth2  Name = "uaa-oauth2"
	NameSAML         Name = "saml"
)

var (
	// ErrUnknownStrategy indicates a requested strategy is not registered.
	ErrUnknownStrategy = errors.New("strategy: unknown strategy")
	// ErrMissingParameter indicates a required parameter was absent or blank.
	ErrMissingParameter = fmt.Errorf("%w: missing required parameter", oauth.ErrInvalidConfig)
	// ErrNotImplemented indicates the strategy is deliberately unsupported.
	ErrNotImplemented = saml.ErrNotImplemented
)

// Func adapts a function and a descriptor to the Strategy interface.
type Func struct {
	Descriptor
	Fn func(ctx context.Context, params, credentials map[string]string) (*Credential, error)
}

// Authenticate executes the underlying function.
func (f Func) Authenticate(ctx context.Context, params, credentials map[string]string) (*Credential, error) {
	return f.Fn(ctx, params, credentials)
}

// CachedOAuth2 adapts a caching OAuth2 authenticator into a Strategy.
func CachedOAuth2(auth *oauth.CachedAuthenticator) Strategy {
	return Func{
		Descriptor: auth,
		Fn: func(ctx context.Context, params, credentials map[string]string) (*Credential, error) {
			if err := requireParams(auth, params); err != nil {
				return nil, err
			}
			return auth.Authenticate(ctx, oauth.ConfigFromParams(params))
		},
	}
}

// PlainOAuth2 adapts a non-caching OAuth2 authenticator into a Strategy.
func PlainOAuth2(auth *oauth.PlainAuthenticator) Strategy {
	return Func{
		Descriptor: auth,
		Fn: func(ctx context.Context, params, credentials map[string]string) (*Credential, error) {
			if err := requireParams(auth, params); err != nil {
				return nil, err
			}
			return auth.Authenticate(ctx, oauth.ConfigFromParams(params))
		},
	}
}

// SAML adapts the SAML placeholder into a Strategy. Parameters are not
// checked: the result is ErrNotImplemented regardless of input.
func SAML(auth *saml.Authenticator) Strategy {
	return Func{
		Descriptor: auth,
		Fn: func(ctx context.Context, params, credentials map[string]string) (*Credential, error) {
			return nil, auth.Authenticate(ctx, saml.ConfigFromParams(params, credentials))
		},
	}
}

func requireParams(d Descriptor, params map[string]string) error {
	var missing []string
	for _, name := range d.RequiredParameterNames() {
		if strings.TrimSpace(params[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingParameter, strings.Join(missing, ", "))
	}
	return nil
}

// sortedNames returns registry names in lexical order.
func sortedNames(m map[Name]Strategy) []Name {
	names := make([]Name, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
