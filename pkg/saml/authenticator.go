package saml

import (
	"context"
	"errors"
	"log/slog"
)

// Parameter names understood by the SAML strategy.
const (
	ParamEndpoint            = "samlEndpoint"
	ParamRelayState          = "relayState"
	ParamAudienceRestriction = "audienceRestriction"
	FieldUsername            = "username"
	FieldPassword            = "password"
)

// ErrNotImplemented is returned by every call to Authenticate.
var ErrNotImplemented = errors.New("saml: authentication not implemented")

var (
	requiredParams   = []string{ParamEndpoint}
	optionalParams   = []string{ParamRelayState, ParamAudienceRestriction}
	credentialFields = []string{FieldUsername, FieldPassword}
)

// Config holds the values a SAML exchange would need.
type Config struct {
	Endpoint            string
	RelayState          string
	AudienceRestriction string
	Username            string
	Password            string
}

// ConfigFromParams builds a Config from strategy parameters and credential fields.
func ConfigFromParams(params, credentials map[string]string) *Config {
	return &Config{
		Endpoint:            params[ParamEndpoint],
		RelayState:          params[ParamRelayState],
		AudienceRestriction: params[ParamAudienceRestriction],
		Username:            credentials[FieldUsername],
		Password:            credentials[FieldPassword],
	}
}

// Authenticator is the SAML placeholder strategy.
type Authenticator struct {
	logger *slog.Logger
}

// NewAuthenticator creates a SAML authenticator. A nil logger uses slog.Default().
func NewAuthenticator(logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{logger: logger}
}

// Authenticate always returns ErrNotImplemented and never produces a credential.
func (a *Authenticator) Authenticate(ctx context.Context, config *Config) error {
	attrs := []any{}
	if config != nil && config.Endpoint != "" {
		attrs = append(attrs, slog.String("saml_endpoint", config.Endpoint))
	}
	a.logger.WarnContext(ctx, "SAML authentication not yet implemented", attrs...)
	return ErrNotImplemented
}

// RequiredParameterNames returns samlEndpoint.
func (a *Authenticator) RequiredParameterNames() []string {
	return append([]string(nil), requiredParams...)
}

// OptionalParameterNames returns relayState and audienceRestriction.
func (a *Authenticator) OptionalParameterNames() []string {
	return append([]string(nil), optionalParams...)
}

// CredentialFieldNames returns username and password.
func (a *Authenticator) CredentialFieldNames() []string {
	return append([]string(nil), credentialFields...)
}
