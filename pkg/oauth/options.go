package oauth

import (
	"log/slog"
	"net/http"
	"time"
)

// Observer receives instrumentation events from the token cache and endpoint client.
// Implementations must be safe for concurrent use.
type Observer interface {
	// ObserveCacheLookup records a fast-path lookup.
	ObserveCacheLookup(hit bool)

	// ObserveTokenRequest records a completed token request.
	ObserveTokenRequest(outcome string, elapsed time.Duration)
}

// Token request outcomes reported to Observer.
const (
	OutcomeSuccess   = "success"
	OutcomeStatus    = "status_error"
	OutcomeTransport = "transport_error"
	OutcomeTimeout   = "timeout"
	OutcomeMalformed = "malformed"
)

// noopObserver is an Observer that does nothing (instrumentation disabled).
type noopObserver struct{}

func (noopObserver) ObserveCacheLookup(hit bool)                         {}
func (noopObserver) ObserveTokenRequest(outcome string, d time.Duration) {}

type options struct {
	httpClient HTTPClient
	logger     *slog.Logger
	observer   Observer
	cache      *TokenCache
	now        func() time.Time
	buffer     time.Duration
	timeout    time.Duration
}

// Option configures the types in this package.
type Option func(*options)

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c HTTPClient) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver sets the instrumentation hook.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithCache makes an authenticator use cache instead of the process-wide cache.
func WithCache(c *TokenCache) Option {
	return func(o *options) { o.cache = c }
}

// WithClock overrides time.Now for expiry computation.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithExpiryBuffer overrides the margin subtracted from a token's lifetime.
func WithExpiryBuffer(d time.Duration) Option {
	return func(o *options) { o.buffer = d }
}

// WithRequestTimeout sets the token request timeout used for configs that
// leave Timeout unset. Without it they get DefaultTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func newOptions(opts []Option) *options {
	o := &options{
		buffer: DefaultExpiryBuffer,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = http.DefaultClient
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.observer == nil {
		o.observer = noopObserver{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.buffer < 0 {
		o.buffer = 0
	}
	if o.timeout < 0 {
		o.timeout = 0
	}
	return o
}
