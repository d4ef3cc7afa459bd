// Package progress broadcasts job progress events to subscribed
// observers.
package progress

import (
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/shtefko55/toolsy/internal/models"
)

// Event type names used on the wire.
const (
	EventTypeProgress  = "progress"
	EventTypeCompleted = "completed"
	EventTypeFailed    = "failed"
	EventTypeEvicted   = "evicted"
)

// Event is one progress update for a job.
type Event struct {
	EventType   string           `json:"event_type"`
	JobID       string           `json:"job_id"`
	Kind        models.JobKind   `json:"kind"`
	Status      models.JobStatus `json:"status"`
	Progress    int              `json:"progress"`
	Message     string           `json:"message,omitempty"`
	DownloadRef string           `json:"download_ref,omitempty"`
	ErrorDetail string           `json:"error_detail,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Subscriber receives events for one job, or for all jobs when JobID
// is empty.
type Subscriber struct {
	ID     string
	JobID  string
	Events chan Event
}

// Broker fans job events out to subscribers. Delivery is best-effort;
// a subscriber that cannot keep up loses events, which is recoverable
// because progress is monotonic and the registry can be polled.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	buffer      int
	logger      *slog.Logger
}

// NewBroker creates a broker whose subscriber channels hold buffer
// events.
func NewBroker(buffer int, logger *slog.Logger) *Broker {
	if buffer <= 0 {
		buffer = 32
	}
	return &Broker{
		subscribers: make(map[string]*Subscriber),
		buffer:      buffer,
		logger:      logger.With("component", "progress_broker"),
	}
}

// Subscribe registers an observer for one job's events, or for every
// job's events when jobID is empty.
func (b *Broker) Subscribe(jobID string) *Subscriber {
	sub := &Subscriber{
		ID:     ulid.Make().String(),
		JobID:  jobID,
		Events: make(chan Event, b.buffer),
	}

	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "subscriber_id", sub.ID, "job_id", jobID)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[subscriberID]; ok {
		close(sub.Events)
		delete(b.subscribers, subscriberID)
		b.logger.Debug("subscriber removed", "subscriber_id", subscriberID)
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish delivers an event to every matching subscriber. At most once
// per subscriber; full channels drop the event.
func (b *Broker) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.JobID != "" && sub.JobID != event.JobID {
			continue
		}
		select {
		case sub.Events <- event:
		default:
			b.logger.Warn("subscriber channel full, dropping event",
				"subscriber_id", sub.ID,
				"job_id", event.JobID,
			)
		}
	}
}

// PublishJob builds and publishes the event describing a job's current
// state.
func (b *Broker) PublishJob(job *models.Job) {
	event := Event{
		EventType:   eventTypeForStatus(job.Status),
		JobID:       job.ID.String(),
		Kind:        job.Kind,
		Status:      job.Status,
		Progress:    job.Progress,
		ErrorDetail: job.ErrorDetail,
		Timestamp:   time.Now(),
	}
	if job.Status == models.JobStatusCompleted {
		event.DownloadRef = "/api/v1/jobs/" + event.JobID + "/download"
	}
	b.Publish(event)
}

// Close removes all subscribers, closing their channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscribers {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

func eventTypeForStatus(status models.JobStatus) string {
	switch status {
	case models.JobStatusCompleted:
		return EventTypeCompleted
	case models.JobStatusFailed:
		return EventTypeFailed
	case models.JobStatusEvicted:
		return EventTypeEvicted
	default:
		return EventTypeProgress
	}
}
