// Package transport attaches strategy credentials to outbound HTTP requests.
package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jeremyhahn/go-proxyauth/pkg/strategy"
)

// ErrAuthenticationFailed wraps the strategy error that aborted a request.
var ErrAuthenticationFailed = errors.New("transport: authentication failed")

// Transport is an http.RoundTripper that authenticates every request with a
// strategy before handing it to Base.
//
// By default a failed authentication aborts the request. With
// ContinueOnFailure the request is sent without the credential and the
// failure is only logged.
type Transport struct {
	// Base performs the request. Defaults to http.DefaultTransport.
	Base http.RoundTripper

	// Strategy produces the credential. Required.
	Strategy strategy.Strategy

	// Params and Credentials are passed to Strategy on every request.
	Params      map[string]string
	Credentials map[string]string

	// ContinueOnFailure sends the request unauthenticated when Strategy fails.
	ContinueOnFailure bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// RoundTrip implements http.RoundTripper. The caller's request is not modified.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Strategy == nil {
		return nil, fmt.Errorf("%w: no strategy configured", ErrAuthenticationFailed)
	}

	cred, err := t.Strategy.Authenticate(req.Context(), t.Params, t.Credentials)
	if err != nil {
		if !t.ContinueOnFailure {
			closeBody(req)
			return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
		}
		t.logger().WarnContext(req.Context(), "sending request without credential",
			slog.String("host", req.URL.Host),
			slog.Any("error", err))
		return t.base().RoundTrip(req)
	}

	// RoundTrippers must not modify the request.
	authed := req.Clone(req.Context())
	if cred != nil {
		cred.Apply(authed)
	}
	return t.base().RoundTrip(authed)
}

// Client returns an *http.Client that uses t.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}
