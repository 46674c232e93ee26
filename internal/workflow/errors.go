package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/featureflow/internal/reviewer"
)

var (
	// ErrInvalidInput indicates a malformed start or step request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownReviewer indicates a reviewer name with no registry entry.
	ErrUnknownReviewer = reviewer.ErrUnknownReviewer

	// ErrReviewerUnavailable is wrapped by *UnavailableError.
	ErrReviewerUnavailable = errors.New("reviewer unavailable")

	// ErrNotFound indicates no active workflow has the given id.
	ErrNotFound = errors.New("workflow not found")

	// ErrConflict indicates the persisted version moved since the context was loaded.
	// Reload and retry.
	ErrConflict = errors.New("workflow version conflict")

	// ErrUnexpectedPhase indicates a persisted phase the engine does not know.
	ErrUnexpectedPhase = errors.New("unexpected phase")

	// ErrIllegalTransition indicates a phase change the transition table forbids.
	ErrIllegalTransition = errors.New("illegal phase transition")

	// ErrUnknownAction indicates an action document with an unrecognized type.
	ErrUnknownAction = errors.New("unknown action type")
)

// UnavailableReviewer describes one reviewer that failed its preflight check.
type UnavailableReviewer struct {
	Name                string `json:"name"`
	Reason              string `json:"reason"`
	InstallInstructions string `json:"install_instructions,omitempty"`
}

// UnavailableError reports every reviewer that failed preflight in Start.
type UnavailableError struct {
	Reviewers []UnavailableReviewer `json:"reviewers"`
}

func (e *UnavailableError) Error() string {
	parts := make([]string, 0, len(e.Reviewers))
	for _, r := range e.Reviewers {
		parts = append(parts, fmt.Sprintf("%s (%s)", r.Name, r.Reason))
	}
	return fmt.Sprintf("%s: %s", ErrReviewerUnavailable, strings.Join(parts, "; "))
}

func (e *UnavailableError) Unwrap() error { return ErrReviewerUnavailable }

// Instructions returns one install hint per unavailable reviewer.
func (e *UnavailableError) Instructions() string {
	var b strings.Builder
	for _, r := range e.Reviewers {
		if r.InstallInstructions == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", r.Name, r.InstallInstructions)
	}
	return strings.TrimRight(b.String(), "\n")
}
