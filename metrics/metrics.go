// Package metrics emits client instrumentation. The Provider interface keeps
// the emission backend swappable; a DataDog statsd implementation and a no-op
// implementation are included.
package metrics

import (
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Provider is the contract for metric emission.
type Provider interface {
	Count(name string, value int64, tags []string) error
	Gauge(name string, value float64, tags []string) error
	Histogram(name string, value float64, tags []string) error
	Timing(name string, value time.Duration, tags []string) error
}

// NoopProvider discards all metrics.
type NoopProvider struct{}

func (NoopProvider) Count(string, int64, []string) error          { return nil }
func (NoopProvider) Gauge(string, float64, []string) error        { return nil }
func (NoopProvider) Histogram(string, float64, []string) error    { return nil }
func (NoopProvider) Timing(string, time.Duration, []string) error { return nil }

// DatadogProvider adapts the official DataDog statsd client to Provider.
type DatadogProvider struct {
	client *statsd.Client
}

// NewDatadog connects a statsd client under the given namespace.
func NewDatadog(addr, namespace string) (*DatadogProvider, error) {
	client, err := statsd.New(addr, statsd.WithNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to statsd: %w", err)
	}
	return &DatadogProvider{client: client}, nil
}

func (d *DatadogProvider) Count(name string, value int64, tags []string) error {
	return d.client.Count(name, value, tags, 1)
}

func (d *DatadogProvider) Gauge(name string, value float64, tags []string) error {
	return d.client.Gauge(name, value, tags, 1)
}

func (d *DatadogProvider) Histogram(name string, value float64, tags []string) error {
	return d.client.Histogram(name, value, tags, 1)
}

func (d *DatadogProvider) Timing(name string, value time.Duration, tags []string) error {
	return d.client.Timing(name, value, tags, 1)
}

// Close flushes and closes the underlying statsd client.
func (d *DatadogProvider) Close() error {
	return d.client.Close()
}
