// Package telemetry wires Prometheus metrics and OpenTelemetry tracing into
// the HTTP server.
package telemetry

import "time"

// Config holds the observability settings shared by metrics and tracing.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// OTLPEndpoint is the host:port of an OTLP/HTTP collector. Tracing is
	// disabled when empty.
	OTLPEndpoint string
	// SampleRate is the fraction of root traces recorded, 0 < rate <= 1.
	SampleRate float64
	// DurationBuckets overrides the request duration histogram boundaries.
	DurationBuckets []float64
}

// defaultDurationBuckets are request duration boundaries in seconds.
var defaultDurationBuckets = []float64{
	0.005, 0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0,
}

// defaultSizeBuckets are response size boundaries in bytes.
var defaultSizeBuckets = []float64{
	100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000,
}

func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "portal-server"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.SampleRate <= 0 || c.SampleRate > 1 {
		c.SampleRate = 1.0
	}
	if len(c.DurationBuckets) == 0 {
		c.DurationBuckets = defaultDurationBuckets
	}
}

// shutdownTimeout bounds flushing buffered spans on exit.
const shutdownTimeout = 5 * time.Second
