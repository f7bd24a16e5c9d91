package oauth

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
)

func transportOf(t *testing.T, client *http.Client) *http.Transport {
	t.Helper()

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Expected *http.Transport, got %T", client.Transport)
	}
	return transport
}

func TestNewHTTPClient_Defaults(t *testing.T) {
	client := NewHTTPClient(ClientOptions{})

	if client.Timeout != 0 {
		t.Errorf("Expected no client-level timeout, got %v", client.Timeout)
	}

	transport := transportOf(t, client)
	if transport.TLSClientConfig.MinVersion != tls.VersionTLS12 {
		t.Errorf("Expected TLS 1.2 minimum, got %x", transport.TLSClientConfig.MinVersion)
	}
	if transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("Expected certificate verification to be enabled")
	}
	if transport.Proxy == nil {
		t.Error("Expected environment proxy selection")
	}
}

func TestNewHTTPClient_TLSConfig(t *testing.T) {
	customTLS := &tls.Config{
		MinVersion: tls.VersionTLS13,
	}

	client := NewHTTPClient(ClientOptions{TLSConfig: customTLS, InsecureSkipVerify: true})
	transport := transportOf(t, client)

	if transport.TLSClientConfig == customTLS {
		t.Error("Expected TLS config to be cloned")
	}
	if customTLS.InsecureSkipVerify {
		t.Error("Original TLS config was modified")
	}
	if transport.TLSClientConfig.MinVersion != tls.VersionTLS13 {
		t.Error("Expected custom MinVersion to be kept")
	}
	if !transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("Expected InsecureSkipVerify to be applied")
	}
}

func TestNewHTTPClient_Proxy(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.internal:3128")
	client := NewHTTPClient(ClientOptions{
		Proxy: http.ProxyURL(proxyURL),
	})

	req, _ := http.NewRequest(http.MethodPost, "https://uaa.example.com/oauth/token", nil)
	got, err := transportOf(t, client).Proxy(req)
	if err != nil {
		t.Fatalf("Proxy() failed: %v", err)
	}
	if got.String() != proxyURL.String() {
		t.Errorf("Expected proxy %s, got %s", proxyURL, got)
	}
}

func TestNewHTTPClient_NoRetry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(ClientOptions{})
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.StatusCode)
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts.Load())
	}
}

func TestNewHTTPClient_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	_, err := NewHTTPClient(ClientOptions{}).Do(req)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
