package logging

import (
	"fmt"
	"regexp"
	"time"

	"github.com/fyrsmithlabs/featureflow/internal/config"
	"go.uber.org/zap/zapcore"
)

// Output streams.
const (
	StreamStderr = "stderr"
	StreamStdout = "stdout"
	StreamNone   = ""
)

// Config holds logging configuration.
type Config struct {
	Level      zapcore.Level     `koanf:"level"`
	Format     string            `koanf:"format"`
	Output     OutputConfig      `koanf:"output"`
	Sampling   SamplingConfig    `koanf:"sampling"`
	Caller     CallerConfig      `koanf:"caller"`
	Stacktrace StacktraceConfig  `koanf:"stacktrace"`
	Fields     map[string]string `koanf:"fields"`
	Redaction  RedactionConfig   `koanf:"redaction"`
}

// OutputConfig controls where logs are written.
// Stream defaults to stderr so command output on stdout stays machine readable.
type OutputConfig struct {
	Stream string `koanf:"stream"`
	OTEL   bool   `koanf:"otel"`
}

// SamplingConfig controls log volume reduction.
type SamplingConfig struct {
	Enabled    bool            `koanf:"enabled"`
	Tick       config.Duration `koanf:"tick"`
	Initial    int             `koanf:"initial"`
	Thereafter int             `koanf:"thereafter"`
}

// CallerConfig controls caller information in logs.
type CallerConfig struct {
	Enabled bool `koanf:"enabled"`
	Skip    int  `koanf:"skip"`
}

// StacktraceConfig controls stacktrace inclusion.
type StacktraceConfig struct {
	Level zapcore.Level `koanf:"level"`
}

// RedactionConfig controls sensitive data redaction.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{
			Stream: StreamStderr,
		},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       config.Duration(time.Second),
			Initial:    100,
			Thereafter: 10,
		},
		Caller: CallerConfig{
			Enabled: true,
			Skip:    1,
		},
		Stacktrace: StacktraceConfig{
			Level: zapcore.ErrorLevel,
		},
		Fields: map[string]string{
			"service": "featureflow",
		},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"password", "secret", "token", "api_key",
				"authorization", "bearer", "credential", "private_key",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
				`nats://[^\s:@/]+:[^\s@/]+@`,
			},
		},
	}
}

// FromAppConfig applies the application's logging section to the defaults.
func FromAppConfig(app config.LoggingConfig) (*Config, error) {
	cfg := NewDefaultConfig()
	if app.Level != "" {
		lvl, err := LevelFromString(app.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", app.Level, err)
		}
		cfg.Level = lvl
	}
	if app.Format != "" {
		cfg.Format = app.Format
	}
	if app.Output != "" {
		cfg.Output.Stream = app.Output
	}
	cfg.Output.OTEL = app.OTEL
	if cfg.Format == "console" {
		// console output is never sampled
		cfg.Sampling.Enabled = false
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
	switch c.Output.Stream {
	case StreamStderr, StreamStdout, StreamNone:
	default:
		return fmt.Errorf("output stream must be 'stderr' or 'stdout', got %q", c.Output.Stream)
	}
	if c.Output.Stream == StreamNone && !c.Output.OTEL {
		return fmt.Errorf("at least one output must be enabled (stream or otel)")
	}
	if c.Sampling.Enabled && c.Sampling.Tick.Duration() <= 0 {
		return fmt.Errorf("sampling tick must be > 0 when sampling enabled")
	}
	if c.Caller.Enabled && c.Caller.Skip < 0 {
		return fmt.Errorf("caller skip must be >= 0, got %d", c.Caller.Skip)
	}

	if c.Redaction.Enabled {
		for _, pattern := range c.Redaction.Patterns {
			if len(pattern) > maxPatternLength {
				return fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLength, pattern)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("invalid redaction pattern %q: %w", pattern, err)
			}
		}
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
