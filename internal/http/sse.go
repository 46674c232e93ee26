package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/featureflow/internal/events"
	"github.com/fyrsmithlabs/featureflow/internal/workflow"
)

// heartbeatInterval keeps idle streams alive through proxies.
const heartbeatInterval = 30 * time.Second

// eventSnapshot is the first event of every stream: the phase at subscribe time.
const eventSnapshot workflow.EventKind = "snapshot"

// handleEvents streams phase events for one workflow as Server-Sent Events.
//
// Event format:
//
//	event: transitioned
//	data: {"workflow_id":"...","kind":"transitioned","from":"...","to":"..."}
//
// The stream ends after an archived event or when the client disconnects.
func (s *Server) handleEvents(c echo.Context) error {
	if s.config.NATS == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "event streaming requires events.nats_url")
	}

	id := c.Param("id")
	wc, err := s.engine.Status(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if wc == nil {
		return fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}

	ch := make(chan workflow.Event, 16)
	sub, err := events.Subscribe(s.config.NATS, s.config.SubjectPrefix, id, ch)
	if err != nil {
		return err
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	if err := writeEvent(res, workflow.Event{
		WorkflowID: wc.ID, Kind: eventSnapshot, To: wc.Phase, At: wc.UpdatedAt,
	}); err != nil {
		return nil
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-ch:
			if err := writeEvent(res, ev); err != nil {
				return nil
			}
			if ev.Kind == workflow.EventArchived {
				return nil
			}

		case <-ticker.C:
			fmt.Fprintf(res, ": heartbeat\n\n")
			res.Flush()

		case <-c.Request().Context().Done():
			return nil
		}
	}
}

func writeEvent(res *echo.Response, ev workflow.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}
