package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shtefko55/toolsy/internal/progress"
)

// EventsHandler streams job progress events over SSE.
type EventsHandler struct {
	broker          *progress.Broker
	heartbeatPeriod time.Duration
	logger          *slog.Logger
}

// NewEventsHandler creates a new SSE handler.
func NewEventsHandler(broker *progress.Broker, heartbeatPeriod time.Duration, logger *slog.Logger) *EventsHandler {
	if heartbeatPeriod <= 0 {
		heartbeatPeriod = 15 * time.Second
	}
	return &EventsHandler{
		broker:          broker,
		heartbeatPeriod: heartbeatPeriod,
		logger:          logger,
	}
}

// RegisterRaw registers the SSE route on the router. SSE cannot go
// through Huma because the response is an unbounded stream.
func (h *EventsHandler) RegisterRaw(router chi.Router) {
	router.Get("/api/v1/events", h.Stream)
}

// Stream subscribes the client to job events. An optional job_id query
// parameter narrows the stream to one job; without it the client sees
// every job's events.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.broker.Subscribe(r.URL.Query().Get("job_id"))
	defer h.broker.Unsubscribe(sub.ID)

	rc := http.NewResponseController(w)

	heartbeat := time.NewTicker(h.heartbeatPeriod)
	defer heartbeat.Stop()

	ctx := r.Context()

	// Initial comment establishes the stream and fires onopen in browsers.
	fmt.Fprintf(w, ":connected\n\n")
	if err := rc.Flush(); err != nil {
		h.logger.Debug("initial SSE flush failed", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":heartbeat %d\n\n", time.Now().Unix())
			if err := rc.Flush(); err != nil {
				h.logger.Debug("heartbeat flush failed, client likely disconnected", "error", err)
				return
			}
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				h.logger.Warn("failed to write SSE event",
					"event_type", event.EventType,
					"job_id", event.JobID,
					"error", err,
				)
				return
			}
			if err := rc.Flush(); err != nil {
				h.logger.Debug("event flush failed, client likely disconnected", "error", err)
				return
			}
		}
	}
}

// writeSSEEvent writes one event in SSE wire format.
func writeSSEEvent(w http.ResponseWriter, event progress.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	// One write per message for atomicity.
	message := fmt.Sprintf("event: %s\ndata: %s\n\n", event.EventType, data)
	n, err := w.Write([]byte(message))
	if err != nil {
		return err
	}
	if n < len(message) {
		return fmt.Errorf("short write: wrote %d of %d bytes", n, len(message))
	}
	return nil
}
