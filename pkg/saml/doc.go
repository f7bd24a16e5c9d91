// Package saml declares the SAML strategy's parameters without implementing
// the protocol.
//
// Authenticate always fails with ErrNotImplemented so that a target configured
// for SAML is reported as unsupported instead of being sent unauthenticated.
//
//	auth := saml.NewAuthenticator(slog.Default())
//	err := auth.Authenticate(ctx, &saml.Config{Endpoint: "https://idp.example.com/sso"})
//	if errors.Is(err, saml.ErrNotImplemented) {
//	    // report unsupported configuration
//	}
package saml
