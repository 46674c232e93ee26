package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/featureflow/internal/config"
)

// Export protocols.
const (
	ProtocolGRPC         = "grpc"
	ProtocolHTTPProtobuf = "http/protobuf"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	Endpoint       string
	Protocol       string
	ServiceName    string
	ServiceVersion string
	Insecure       bool // Use insecure connection (no TLS)
	TLSSkipVerify  bool
	Sampling       SamplingConfig
	Metrics        MetricsConfig
	Shutdown       ShutdownConfig
}

// SamplingConfig controls trace sampling behavior.
type SamplingConfig struct {
	Rate float64 // 0.0-1.0
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Enabled        bool
	ExportInterval config.Duration
}

// ShutdownConfig controls graceful shutdown behavior.
type ShutdownConfig struct {
	Timeout config.Duration
}

// NewDefaultConfig returns disabled telemetry pointed at a local collector.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		Endpoint:       "localhost:4317",
		Protocol:       ProtocolGRPC,
		ServiceName:    "featureflow",
		ServiceVersion: "dev",
		Insecure:       true,
		Sampling: SamplingConfig{
			Rate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: config.Duration(15 * time.Second),
		},
		Shutdown: ShutdownConfig{
			Timeout: config.Duration(5 * time.Second),
		},
	}
}

// FromAppConfig applies the application's telemetry section to the defaults.
func FromAppConfig(app config.TelemetryConfig, version string) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = app.Enabled
	if app.Endpoint != "" {
		cfg.Endpoint = app.Endpoint
	}
	if app.Protocol != "" {
		cfg.Protocol = app.Protocol
	}
	cfg.Insecure = app.Insecure
	if app.SampleRate > 0 {
		cfg.Sampling.Rate = app.SampleRate
	}
	if app.ExportInterval > 0 {
		cfg.Metrics.ExportInterval = app.ExportInterval
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	return cfg
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required when telemetry is enabled")
	}
	switch c.Protocol {
	case "", ProtocolGRPC, ProtocolHTTPProtobuf:
	default:
		return fmt.Errorf("unknown protocol %q", c.Protocol)
	}

	// Plaintext export only to the local machine.
	if c.Insecure && !c.isLocalEndpoint() {
		return fmt.Errorf("insecure connections to remote endpoints are not allowed; set insecure=false for TLS or use a local endpoint (localhost/127.0.0.1)")
	}

	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("sampling.rate must be between 0 and 1, got %f", c.Sampling.Rate)
	}
	if c.Metrics.Enabled && c.Metrics.ExportInterval.Duration() <= 0 {
		return fmt.Errorf("metrics.export_interval must be positive when metrics enabled")
	}
	if c.Shutdown.Timeout.Duration() <= 0 {
		return fmt.Errorf("shutdown.timeout must be positive")
	}

	return nil
}

// isLocalEndpoint checks if the endpoint is a local address.
func (c *Config) isLocalEndpoint() bool {
	host := stripScheme(c.Endpoint)

	if strings.HasPrefix(host, "[") {
		// [::1]:4317
		if idx := strings.Index(host, "]:"); idx != -1 {
			host = host[1:idx]
		} else if strings.HasSuffix(host, "]") {
			host = host[1 : len(host)-1]
		}
	} else if strings.Count(host, ":") == 1 {
		host = host[:strings.LastIndex(host, ":")]
	}

	return host == "localhost" ||
		host == "::1" ||
		strings.HasPrefix(host, "127.")
}
