package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/bparpette/MistralHackathon/internal/config"
)

// Config holds logging configuration.
type Config struct {
	Level      zapcore.Level
	Format     string
	Output     OutputConfig
	Sampling   SamplingConfig
	Caller     CallerConfig
	Stacktrace zapcore.Level
	Fields     map[string]string
}

// OutputConfig selects log sinks.
type OutputConfig struct {
	Stdout bool
	// Stderr routes the console sink to stderr. The MCP stdio transport owns
	// stdout, so the server turns this on when serving tools.
	Stderr bool
	OTEL   bool
}

// SamplingConfig controls log volume reduction for levels below error.
type SamplingConfig struct {
	Enabled    bool
	Tick       time.Duration
	Initial    int
	Thereafter int
}

// CallerConfig controls caller annotation.
type CallerConfig struct {
	Enabled bool
	Skip    int
}

// NewDefaultConfig returns production defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{Stdout: true},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			Initial:    100,
			Thereafter: 10,
		},
		Caller:     CallerConfig{Enabled: true, Skip: 1},
		Stacktrace: zapcore.ErrorLevel,
		Fields:     map[string]string{"service": "brain"},
	}
}

// FromConfig maps the logging section of the service configuration onto
// production defaults. Empty values keep the defaults.
func FromConfig(lc config.LoggingConfig) (*Config, error) {
	cfg := NewDefaultConfig()
	if lc.Level != "" {
		level, err := LevelFromString(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
		}
		cfg.Level = level
	}
	if lc.Format != "" {
		cfg.Format = lc.Format
	}
	cfg.Output.OTEL = lc.OTEL
	cfg.Sampling.Enabled = lc.Sampling
	for k, v := range lc.Fields {
		cfg.Fields[k] = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Output.Stdout && !c.Output.OTEL {
		return fmt.Errorf("at least one output must be enabled (stdout or otel)")
	}
	if c.Sampling.Enabled && c.Sampling.Tick <= 0 {
		return fmt.Errorf("sampling tick must be > 0 when sampling enabled")
	}
	if c.Caller.Enabled && c.Caller.Skip < 0 {
		return fmt.Errorf("caller skip must be >= 0, got %d", c.Caller.Skip)
	}
	for k, v := range c.Fields {
		if k == "" {
			return fmt.Errorf("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}
	return nil
}
