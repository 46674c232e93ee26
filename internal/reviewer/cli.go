package reviewer

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/fyrsmithlabs/featureflow/internal/config"
	"github.com/fyrsmithlabs/featureflow/internal/sanitize"
)

// CLIAdapter reviews through a locally installed AI CLI (claude, gemini, codex, ...).
type CLIAdapter struct {
	def      config.ReviewerConfig
	lookPath func(string) (string, error)
}

// NewCLIAdapter creates an adapter for a "cli" reviewer definition.
func NewCLIAdapter(def config.ReviewerConfig) *CLIAdapter {
	return &CLIAdapter{def: def, lookPath: exec.LookPath}
}

func (a *CLIAdapter) Name() string    { return a.def.Name }
func (a *CLIAdapter) Backend() string { return BackendCLI }
func (a *CLIAdapter) Model() string   { return a.def.Model }

// CheckAvailability reports whether the executable is on PATH.
func (a *CLIAdapter) CheckAvailability(ctx context.Context) Availability {
	if err := ctx.Err(); err != nil {
		return a.unavailable(err.Error())
	}
	if _, err := a.lookPath(a.def.Command); err != nil {
		return a.unavailable(err.Error())
	}
	return Availability{Available: true}
}

func (a *CLIAdapter) unavailable(reason string) Availability {
	install := a.def.InstallInstructions
	if install == "" {
		install = fmt.Sprintf("install %q and make sure it is on PATH", a.def.Command)
	}
	return Availability{
		Reason:              sanitize.Reason(reason),
		InstallInstructions: install,
	}
}

// ReviewCommand pipes the prompt into the executable on stdin.
func (a *CLIAdapter) ReviewCommand(specText string, req Request) string {
	parts := append([]string{a.def.Command}, a.def.Args...)
	if a.def.Model != "" {
		parts = append(parts, "--model", a.def.Model)
	}
	return heredoc(joinCommand(parts...), Prompt(specText, req))
}

// ParseReviewOutput parses the CLI's stdout.
func (a *CLIAdapter) ParseReviewOutput(raw string) Result {
	return stamp(ParseOutput(raw), a)
}
