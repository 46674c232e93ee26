package http

import (
	"context"
	"time"
)

// countTimeout keeps /health responsive when the store is slow.
const countTimeout = 2 * time.Second

// countWorkflows counts active workflows.
//
// Returns -1 if:
//   - engine is nil
//   - listing active workflows fails or times out
func countWorkflows(ctx context.Context, engine Engine) StatusCounts {
	if engine == nil {
		return StatusCounts{Active: -1}
	}
	ctx, cancel := context.WithTimeout(ctx, countTimeout)
	defer cancel()

	ids, err := engine.ListActive(ctx)
	if err != nil {
		return StatusCounts{Active: -1}
	}
	return StatusCounts{Active: len(ids)}
}
