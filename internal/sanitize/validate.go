package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Validation errors for security checks.
var (
	// ErrPathTraversal indicates a path contains directory traversal sequences.
	ErrPathTraversal = errors.New("path contains directory traversal")

	// ErrEmptyPath indicates an empty path was provided.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrInvalidWorkflowID indicates the workflow ID format is invalid.
	ErrInvalidWorkflowID = errors.New("invalid workflow ID format")

	// ErrInvalidReviewerName indicates the reviewer name format is invalid.
	ErrInvalidReviewerName = errors.New("invalid reviewer name format")
)

// workflowIDPattern matches ids produced by the orchestrator: lowercase
// alphanumerics and hyphens, 1-80 chars. Ids double as file names.
var workflowIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,79}$`)

// reviewerNamePattern allows alphanumerics, hyphen, underscore and dot.
var reviewerNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

// ValidatePath checks a path for security issues:
//   - No directory traversal (..)
//   - Resolves to absolute path and validates it stays within expected root
//   - Returns the cleaned, absolute path or an error
//
// If allowedRoot is empty, only traversal checks are performed.
// If allowedRoot is provided, the path must resolve within that directory.
func ValidatePath(path, allowedRoot string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return "", fmt.Errorf("%w: contains '..'", ErrPathTraversal)
		}
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if allowedRoot != "" {
		absRoot, err := filepath.Abs(allowedRoot)
		if err != nil {
			return "", fmt.Errorf("failed to resolve allowed root: %w", err)
		}

		rel, err := filepath.Rel(absRoot, absPath)
		if err != nil {
			return "", fmt.Errorf("%w: path outside allowed root", ErrPathTraversal)
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: path escapes allowed root", ErrPathTraversal)
		}
	}

	return absPath, nil
}

// ValidateProjectPath validates a project path supplied by a workflow driver.
// Returns the validated absolute path.
func ValidateProjectPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}
	return ValidatePath(path, "")
}

// ValidateWorkflowID checks that a workflow ID is safe to use as a file name.
func ValidateWorkflowID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidWorkflowID)
	}
	if strings.ContainsAny(id, `/\.`) {
		return fmt.Errorf("%w: contains path characters", ErrInvalidWorkflowID)
	}
	if !workflowIDPattern.MatchString(id) {
		return fmt.Errorf("%w: must be lowercase alphanumeric with hyphens (1-80 chars)", ErrInvalidWorkflowID)
	}
	return nil
}

// ValidateReviewerName checks a configured reviewer name.
func ValidateReviewerName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidReviewerName)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("%w: contains path traversal", ErrInvalidReviewerName)
	}
	if !reviewerNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidReviewerName, name)
	}
	return nil
}
