// Package reviewer defines the reviewer adapter contract and its concrete backends.
//
// A reviewer is a named feedback source bound to one backend. Adapters never
// run anything themselves: they report availability, build the shell command a
// workflow driver runs, and parse whatever that command printed.
package reviewer

import (
	"context"
	"errors"
)

// Backend type names.
const (
	BackendCLI    = "cli"
	BackendOllama = "ollama"
)

// ErrUnknownReviewer indicates a reviewer name with no definition.
var ErrUnknownReviewer = errors.New("unknown reviewer")

// Availability is the outcome of an availability probe.
type Availability struct {
	Available           bool   `json:"available"`
	Reason              string `json:"reason,omitempty"`
	InstallInstructions string `json:"install_instructions,omitempty"`
}

// Request carries workflow details a prompt may reference.
type Request struct {
	WorkflowID  string
	Description string
	SpecPath    string
	ProjectPath string
}

// Result is one reviewer's parsed feedback.
type Result struct {
	Reviewer    string   `json:"reviewer"`
	Backend     string   `json:"backend"`
	Model       string   `json:"model,omitempty"`
	Timestamp   string   `json:"timestamp"`
	Feedback    string   `json:"feedback"`
	Suggestions []string `json:"suggestions"`
	Concerns    []string `json:"concerns"`
	Approved    bool     `json:"approved"`
}

// Adapter is the capability set every reviewer backend provides.
type Adapter interface {
	Name() string
	Backend() string
	Model() string

	// CheckAvailability probes the backend. Reasons are scrubbed of paths and addresses.
	CheckAvailability(ctx context.Context) Availability

	// ReviewCommand returns a shell command that prints a review of specText.
	ReviewCommand(specText string, req Request) string

	// ParseReviewOutput turns the command's output into a Result.
	// Reviewer, Backend and Model are filled from the adapter.
	ParseReviewOutput(raw string) Result
}
