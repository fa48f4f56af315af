package telemetry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/bparpette/MistralHackathon/internal/config"
)

// Protocols understood by the OTLP exporters.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// Config selects where spans and metrics are exported.
type Config struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	// Insecure disables TLS. Only loopback collectors may be reached this way.
	Insecure bool
	Protocol string
	// SampleRate is the head sampling ratio for root spans, in [0,1].
	SampleRate      float64
	ExportInterval  time.Duration
	ShutdownTimeout time.Duration
}

// NewDefaultConfig targets a local collector and leaves export off.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:        "localhost:4317",
		ServiceName:     "brain",
		ServiceVersion:  "0.1.0",
		Insecure:        true,
		Protocol:        ProtocolGRPC,
		SampleRate:      1.0,
		ExportInterval:  15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// FromConfig overlays the telemetry section of the service configuration on
// the defaults.
func FromConfig(tc config.TelemetryConfig) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = tc.Enabled
	cfg.Insecure = tc.Insecure
	cfg.SampleRate = tc.SampleRate
	for dst, src := range map[*string]string{
		&cfg.Endpoint:       tc.Endpoint,
		&cfg.ServiceName:    tc.ServiceName,
		&cfg.ServiceVersion: tc.ServiceVersion,
		&cfg.Protocol:       tc.Protocol,
	} {
		if src != "" {
			*dst = src
		}
	}
	if tc.ExportInterval > 0 {
		cfg.ExportInterval = tc.ExportInterval.Duration()
	}
	return cfg
}

// Validate reports every problem at once. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required"))
	} else if c.Insecure && !isLoopback(c.Endpoint) {
		errs = append(errs, fmt.Errorf("insecure export to non-local endpoint %q", c.Endpoint))
	}
	if c.ServiceName == "" {
		errs = append(errs, errors.New("service_name is required"))
	}
	if c.ServiceVersion == "" {
		errs = append(errs, errors.New("service_version is required"))
	}
	if c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP {
		errs = append(errs, fmt.Errorf("protocol must be %s or %s, got %q", ProtocolGRPC, ProtocolHTTP, c.Protocol))
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("sample_rate must be within [0,1], got %g", c.SampleRate))
	}
	if c.ExportInterval <= 0 {
		errs = append(errs, errors.New("export_interval must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// isLoopback accepts host, host:port and bracketed IPv6 forms, with or
// without a URL scheme.
func isLoopback(endpoint string) bool {
	host := stripScheme(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func stripScheme(endpoint string) string {
	for _, scheme := range []string{"https://", "http://"} {
		endpoint = strings.TrimPrefix(endpoint, scheme)
	}
	return endpoint
}
