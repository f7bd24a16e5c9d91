// Package metrics exports token cache and token endpoint activity as
// Prometheus metrics.
//
// A Collector implements oauth.Observer and prometheus.Collector:
//
//	collector := metrics.NewCollector("proxyauth")
//	prometheus.MustRegister(collector)
//	auth := oauth.NewCachedAuthenticator(oauth.WithObserver(collector))
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/jeremyhahn/go-proxyauth/pkg/oauth"
)

const (
	resultHit  = "hit"
	resultMiss = "miss"
)

// Collector records cache lookups and token requests.
type Collector struct {
	cacheLookups    *prometheus.CounterVec
	tokenRequests   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var (
	_ oauth.Observer       = (*Collector)(nil)
	_ prometheus.Collector = (*Collector)(nil)
)

// NewCollector creates a Collector whose metric names are prefixed with namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token_cache",
			Name:      "lookups_total",
			Help:      "Token cache lookups by result (hit or miss).",
		}, []string{"result"}),
		tokenRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token_endpoint",
			Name:      "requests_total",
			Help:      "Token endpoint requests by outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "token_endpoint",
			Name:      "request_duration_seconds",
			Help:      "Token endpoint request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
}

// ObserveCacheLookup implements oauth.Observer.
func (c *Collector) ObserveCacheLookup(hit bool) {
	result := resultMiss
	if hit {
		result = resultHit
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveTokenRequest implements oauth.Observer.
func (c *Collector) ObserveTokenRequest(outcome string, elapsed time.Duration) {
	c.tokenRequests.WithLabelValues(outcome).Inc()
	c.requestDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.cacheLookups.Describe(ch)
	c.tokenRequests.Describe(ch)
	c.requestDuration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.cacheLookups.Collect(ch)
	c.tokenRequests.Collect(ch)
	c.requestDuration.Collect(ch)
}

// WriteText gathers g and writes it in the Prometheus text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
