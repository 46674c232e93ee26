package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "absolute spec dir",
			mutate:  func(c *Config) { c.Workflow.SpecDir = "/abs/specs" },
			wantErr: "spec_dir must be relative",
		},
		{
			name:    "spec dir traversal",
			mutate:  func(c *Config) { c.Workflow.SpecDir = "../specs" },
			wantErr: "directory traversal",
		},
		{
			name:    "unknown telemetry protocol",
			mutate:  func(c *Config) { c.Telemetry.Protocol = "thrift" },
			wantErr: "telemetry.protocol",
		},
		{
			name:    "sample rate above one",
			mutate:  func(c *Config) { c.Telemetry.SampleRate = 1.5 },
			wantErr: "telemetry.sample_rate",
		},
		{
			name:    "zero availability timeout",
			mutate:  func(c *Config) { c.Workflow.AvailabilityTimeout = 0 },
			wantErr: "availability_timeout",
		},
		{
			name: "duplicate reviewer",
			mutate: func(c *Config) {
				c.Reviewers = append(c.Reviewers, c.Reviewers[0])
			},
			wantErr: "duplicate reviewer name",
		},
		{
			name: "unknown reviewer type",
			mutate: func(c *Config) {
				c.Reviewers = []ReviewerConfig{{Name: "x", Type: "grpc"}}
			},
			wantErr: "unknown type",
		},
		{
			name: "cli without command",
			mutate: func(c *Config) {
				c.Reviewers = []ReviewerConfig{{Name: "x", Type: ReviewerTypeCLI}}
			},
			wantErr: "command is required",
		},
		{
			name: "ollama without model",
			mutate: func(c *Config) {
				c.Reviewers = []ReviewerConfig{{Name: "x", Type: ReviewerTypeOllama}}
			},
			wantErr: "model is required",
		},
		{
			name: "invalid reviewer name",
			mutate: func(c *Config) {
				c.Reviewers = []ReviewerConfig{{Name: "bad name", Type: ReviewerTypeCLI, Command: "x"}}
			},
			wantErr: "invalid reviewer name",
		},
		{
			name:    "default reviewer not configured",
			mutate:  func(c *Config) { c.Workflow.DefaultReviewers = []string{"ghost"} },
			wantErr: "ghost",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = 0 },
			wantErr: "shutdown timeout",
		},
		{
			name: "nats without subject prefix",
			mutate: func(c *Config) {
				c.Events.NATSURL = "nats://localhost:4222"
				c.Events.SubjectPrefix = ""
			},
			wantErr: "subject_prefix",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name:    "bad log output",
			mutate:  func(c *Config) { c.Logging.Output = "syslog" },
			wantErr: "logging.output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBuiltinReviewers_Valid(t *testing.T) {
	for _, r := range BuiltinReviewers() {
		assert.NoError(t, r.Validate(), r.Name)
		assert.NotEmpty(t, r.InstallInstructions, r.Name)
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	assert.Equal(t, "/home/tester", ExpandHome("~"))
	assert.Equal(t, "/home/tester/state", ExpandHome("~/state"))
	assert.Equal(t, "/srv/state", ExpandHome("/srv/state"))
	assert.Equal(t, "~other/state", ExpandHome("~other/state"))
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))

	out, err := json.Marshal(Duration(2 * time.Second))
	require.NoError(t, err)
	assert.JSONEq(t, `"2s"`, string(out))
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("s3cr3t")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "s3cr3t", s.Value())
	assert.True(t, s.IsSet())

	out, err := json.Marshal(struct {
		Token Secret `json:"token"`
	}{Token: s})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "s3cr3t")

	assert.Equal(t, "", Secret("").String())
	assert.False(t, Secret("").IsSet())
}
