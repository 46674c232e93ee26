package workflow

import (
	"context"
	"time"
)

// EventKind classifies a workflow event.
type EventKind string

const (
	EventStarted      EventKind = "started"
	EventTransitioned EventKind = "transitioned"
	EventAborted      EventKind = "aborted"
	EventArchived     EventKind = "archived"
)

// Event is published after a workflow change has been persisted.
type Event struct {
	WorkflowID string     `json:"workflow_id"`
	Kind       EventKind  `json:"kind"`
	From       Phase      `json:"from,omitempty"`
	To         Phase      `json:"to"`
	Action     ActionType `json:"action,omitempty"`
	At         time.Time  `json:"at"`
}

// Publisher delivers workflow events. Failures never roll back a step.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
