package http

import (
	"github.com/fyrsmithlabs/featureflow/internal/reviewer"
	"github.com/fyrsmithlabs/featureflow/internal/workflow"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string       `json:"status"`
	Version string       `json:"version,omitempty"`
	Counts  StatusCounts `json:"counts"`
}

// StatusCounts contains workflow counts. -1 means the count is unknown.
type StatusCounts struct {
	Active int `json:"active"`
}

// ListResponse is the response body for GET /api/v1/workflows.
type ListResponse struct {
	Workflows []string `json:"workflows"`
}

// AbortRequest is the optional body for POST /api/v1/workflows/:id/abort.
type AbortRequest struct {
	Reason string `json:"reason"`
}

// ReviewersResponse is the response body for GET /api/v1/reviewers.
type ReviewersResponse struct {
	Reviewers []reviewer.Status `json:"reviewers"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	// Unavailable lists reviewers that failed preflight, on 503 only.
	Unavailable []workflow.UnavailableReviewer `json:"unavailable,omitempty"`
}
