package oauth

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient defines the interface for sending the token request.
// *http.Client satisfies it; tests and proxies may supply their own.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOptions tunes the default HTTP client.
type ClientOptions struct {
	// TLSConfig allows custom TLS configuration.
	TLSConfig *tls.Config

	// InsecureSkipVerify disables TLS certificate verification (not recommended).
	InsecureSkipVerify bool

	// Proxy overrides the proxy selection. Defaults to http.ProxyFromEnvironment.
	Proxy func(*http.Request) (*url.URL, error)
}

// NewHTTPClient creates an HTTP client suited to token requests.
// It performs no retries; per-request deadlines come from the request context.
func NewHTTPClient(opts ClientOptions) *http.Client {
	customTLS := opts.TLSConfig
	if customTLS == nil {
		customTLS = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	} else {
		// Clone to avoid modifying the original
		customTLS = opts.TLSConfig.Clone()
	}

	if opts.InsecureSkipVerify {
		customTLS.InsecureSkipVerify = true
	}

	proxy := opts.Proxy
	if proxy == nil {
		proxy = http.ProxyFromEnvironment
	}

	transport := &http.Transport{
		Proxy: proxy,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       customTLS,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{Transport: transport}
}
