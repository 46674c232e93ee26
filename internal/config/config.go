// Package config provides configuration loading for featureflow.
//
// Configuration is read from a YAML file, overridden by FEATUREFLOW_* environment
// variables, and completed with defaults. See Load.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/featureflow/internal/sanitize"
)

// Reviewer backend types.
const (
	ReviewerTypeCLI    = "cli"
	ReviewerTypeOllama = "ollama"
)

// DefaultOllamaEndpoint is the local ollama API address.
const DefaultOllamaEndpoint = "http://localhost:11434"

// Config holds the complete featureflow configuration.
type Config struct {
	Workflow  WorkflowConfig   `koanf:"workflow"`
	Reviewers []ReviewerConfig `koanf:"reviewers"`
	Commands  CommandsConfig   `koanf:"commands"`
	Server    ServerConfig     `koanf:"server"`
	Events    EventsConfig     `koanf:"events"`
	Logging   LoggingConfig    `koanf:"logging"`
	Telemetry TelemetryConfig  `koanf:"telemetry"`
	Redaction RedactionConfig  `koanf:"redaction"`
}

// WorkflowConfig holds orchestrator settings.
type WorkflowConfig struct {
	// StateDir is the root of the workflow store (active/ and archive/ live below it).
	StateDir string `koanf:"state_dir"`
	// SpecDir is where spec files are created, relative to the project path.
	SpecDir string `koanf:"spec_dir"`
	// DefaultReviewers is used when start is called without an explicit list.
	DefaultReviewers    []string `koanf:"default_reviewers"`
	AvailabilityTimeout Duration `koanf:"availability_timeout"`
}

// ReviewerConfig is a tagged reviewer definition. Type selects the adapter.
type ReviewerConfig struct {
	Name                string   `koanf:"name" json:"name"`
	Type                string   `koanf:"type" json:"type"`
	Model               string   `koanf:"model" json:"model,omitempty"`
	Command             string   `koanf:"command" json:"command,omitempty"`
	Args                []string `koanf:"args" json:"args,omitempty"`
	Endpoint            string   `koanf:"endpoint" json:"endpoint,omitempty"`
	InstallInstructions string   `koanf:"install_instructions" json:"install_instructions,omitempty"`
}

// CommandsConfig overrides detected lint/build/test commands for every project.
type CommandsConfig struct {
	Lint  string `koanf:"lint"`
	Build string `koanf:"build"`
	Test  string `koanf:"test"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// RateLimit is requests per second per client; negative disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
}

// EventsConfig holds phase-transition event publishing settings.
type EventsConfig struct {
	NATSURL       string `koanf:"nats_url"`
	Token         Secret `koanf:"token"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// LoggingConfig is the user-facing subset of logging settings.
// internal/logging maps it onto its full Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// Output is "stderr" or "stdout".
	Output string `koanf:"output"`
	OTEL   bool   `koanf:"otel"`
}

// RedactionConfig controls secret redaction of driver-reported output.
// Redaction is on unless Disabled is set.
type RedactionConfig struct {
	Disabled bool `koanf:"disabled"`
	// Allowlist is a user-wide gitleaks allowlist file. Each project may also
	// carry a .gitleaks.toml.
	Allowlist string `koanf:"allowlist"`
}

// TelemetryConfig controls OTLP export of traces and metrics.
// internal/telemetry maps it onto its full Config.
type TelemetryConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"`
	// Protocol is "grpc" or "http/protobuf".
	Protocol       string   `koanf:"protocol"`
	Insecure       bool     `koanf:"insecure"`
	SampleRate     float64  `koanf:"sample_rate"`
	ExportInterval Duration `koanf:"export_interval"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// BuiltinReviewers returns the reviewer definitions used when none are configured.
func BuiltinReviewers() []ReviewerConfig {
	return []ReviewerConfig{
		{
			Name:                "claude",
			Type:                ReviewerTypeCLI,
			Command:             "claude",
			Args:                []string{"-p"},
			InstallInstructions: "npm install -g @anthropic-ai/claude-code",
		},
		{
			Name:                "gemini",
			Type:                ReviewerTypeCLI,
			Command:             "gemini",
			Args:                []string{"-p"},
			InstallInstructions: "npm install -g @google/gemini-cli",
		},
		{
			Name:                "codex",
			Type:                ReviewerTypeCLI,
			Command:             "codex",
			Args:                []string{"exec", "-"},
			InstallInstructions: "npm install -g @openai/codex",
		},
		{
			Name:                "ollama",
			Type:                ReviewerTypeOllama,
			Model:               "llama3.1",
			Endpoint:            DefaultOllamaEndpoint,
			InstallInstructions: "install from https://ollama.com/download, then run: ollama pull llama3.1",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Workflow.StateDir == "" {
		return errors.New("workflow.state_dir is required")
	}
	if c.Workflow.SpecDir == "" {
		return errors.New("workflow.spec_dir is required")
	}
	if filepath.IsAbs(c.Workflow.SpecDir) {
		return fmt.Errorf("workflow.spec_dir must be relative to the project: %q", c.Workflow.SpecDir)
	}
	if _, err := sanitize.ValidatePath(c.Workflow.SpecDir, ""); err != nil {
		return fmt.Errorf("workflow.spec_dir: %w", err)
	}
	if c.Workflow.AvailabilityTimeout.Duration() <= 0 {
		return errors.New("workflow.availability_timeout must be positive")
	}

	names := make(map[string]bool, len(c.Reviewers))
	for i, r := range c.Reviewers {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("reviewers[%d]: %w", i, err)
		}
		if names[r.Name] {
			return fmt.Errorf("reviewers[%d]: duplicate reviewer name %q", i, r.Name)
		}
		names[r.Name] = true
	}
	for _, name := range c.Workflow.DefaultReviewers {
		if !names[name] {
			return fmt.Errorf("workflow.default_reviewers: %q is not a configured reviewer", name)
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Events.NATSURL != "" && c.Events.SubjectPrefix == "" {
		return errors.New("events.subject_prefix required when events.nats_url is set")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	switch c.Logging.Output {
	case "stderr", "stdout":
	default:
		return fmt.Errorf("logging.output must be 'stderr' or 'stdout', got %q", c.Logging.Output)
	}

	switch c.Telemetry.Protocol {
	case "grpc", "http/protobuf":
	default:
		return fmt.Errorf("telemetry.protocol must be 'grpc' or 'http/protobuf', got %q", c.Telemetry.Protocol)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %v", c.Telemetry.SampleRate)
	}

	return nil
}

// Validate checks a single reviewer definition.
func (r ReviewerConfig) Validate() error {
	if err := sanitize.ValidateReviewerName(r.Name); err != nil {
		return err
	}
	switch r.Type {
	case ReviewerTypeCLI:
		if r.Command == "" {
			return fmt.Errorf("reviewer %q: command is required for type %q", r.Name, r.Type)
		}
	case ReviewerTypeOllama:
		if r.Model == "" {
			return fmt.Errorf("reviewer %q: model is required for type %q", r.Name, r.Type)
		}
	default:
		return fmt.Errorf("reviewer %q: unknown type %q (want %q or %q)", r.Name, r.Type, ReviewerTypeCLI, ReviewerTypeOllama)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Workflow.StateDir == "" {
		cfg.Workflow.StateDir = "~/.config/featureflow/workflows"
	}
	cfg.Workflow.StateDir = ExpandHome(cfg.Workflow.StateDir)
	if cfg.Workflow.SpecDir == "" {
		cfg.Workflow.SpecDir = filepath.Join("docs", "specs")
	}
	if cfg.Workflow.AvailabilityTimeout == 0 {
		cfg.Workflow.AvailabilityTimeout = Duration(5 * time.Second)
	}

	if len(cfg.Reviewers) == 0 {
		cfg.Reviewers = BuiltinReviewers()
	}
	for i := range cfg.Reviewers {
		if cfg.Reviewers[i].Type == ReviewerTypeOllama && cfg.Reviewers[i].Endpoint == "" {
			cfg.Reviewers[i].Endpoint = DefaultOllamaEndpoint
		}
	}

	if cfg.Redaction.Allowlist != "" {
		cfg.Redaction.Allowlist = ExpandHome(cfg.Redaction.Allowlist)
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9191
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 20
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "featureflow.workflow"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = Duration(15 * time.Second)
	}
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
