// Package workflow implements the featureflow step engine.
//
// A workflow moves a feature from a one-line description through a spec,
// optional multi-reviewer critique, test-first implementation and a
// lint/build/test gate. The engine never edits files or runs commands itself:
// each call to Orchestrator.Step consumes the outcome of the previous Action
// and returns the next one for the driver (a human, an agent, or a script).
//
// State lives entirely in a Store. Every call loads the context, applies one
// transition (or a short chain of automatic ones), and saves it back, so
// separate processes can drive the same workflow.
//
// Phases and their legal successors are declared in transitions.go; the
// per-phase handlers in handlers.go may only move along those edges.
package workflow
