// Package events publishes workflow phase events to NATS.
//
// Each event is a JSON document on the subject
//
//	{prefix}.{workflow_id}
//
// so a consumer can follow one workflow or all of them with {prefix}.*.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/featureflow/internal/config"
	"github.com/fyrsmithlabs/featureflow/internal/logging"
	"github.com/fyrsmithlabs/featureflow/internal/workflow"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "featureflow.workflow"

// Connect dials the configured NATS server. It returns (nil, nil) when no
// URL is configured, meaning events are disabled.
func Connect(cfg config.EventsConfig, logger *logging.Logger) (*nats.Conn, error) {
	if cfg.NATSURL == "" {
		return nil, nil
	}
	opts := []nats.Option{
		nats.Name("featureflow"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1 * time.Second),
	}
	if cfg.Token.Value() != "" {
		opts = append(opts, nats.Token(cfg.Token.Value()))
	}

	nc, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if logger != nil {
		fields := []zap.Field{zap.String("url", nc.ConnectedUrlRedacted())}
		if cfg.Token.IsSet() {
			fields = append(fields, logging.Secret("nats_token", cfg.Token))
		}
		logger.Info(context.Background(), "connected to NATS", fields...)
	}
	return nc, nil
}

// Subject returns the subject for one workflow. An empty id yields the
// wildcard for every workflow.
func Subject(prefix, id string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if id == "" {
		return prefix + ".*"
	}
	return prefix + "." + id
}

// NATSPublisher implements workflow.Publisher on a NATS connection.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher returns a publisher writing under prefix.
func NewNATSPublisher(nc *nats.Conn, prefix string) (*NATSPublisher, error) {
	if nc == nil {
		return nil, errors.New("nats connection is required")
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

// Publish sends ev as JSON. It does not wait for delivery.
func (p *NATSPublisher) Publish(ctx context.Context, ev workflow.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(Subject(p.prefix, ev.WorkflowID), data); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Kind, err)
	}
	return nil
}

// Subscribe delivers decoded events for workflow id (or every workflow when
// id is empty) to ch until the returned subscription is drained.
// Malformed messages are dropped, and so are events that arrive while ch is
// full: the delivery callback never blocks on a slow or departed reader.
func Subscribe(nc *nats.Conn, prefix, id string, ch chan<- workflow.Event) (*nats.Subscription, error) {
	if nc == nil {
		return nil, errors.New("nats connection is required")
	}
	return nc.Subscribe(Subject(prefix, id), func(msg *nats.Msg) {
		var ev workflow.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		select {
		case ch <- ev:
		default:
		}
	})
}

var _ workflow.Publisher = (*NATSPublisher)(nil)
