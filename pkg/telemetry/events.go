package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opforge/opforge/pkg/operations"
)

// Event is a structured notification about an operation or a build.
type Event struct {
	ID          string                 `json:"id"`
	Timestamp   time.Time              `json:"timestamp"`
	Type        string                 `json:"type"`
	OperationID string                 `json:"operation_id,omitempty"`
	ParentID    string                 `json:"parent_id,omitempty"`
	BuildPath   string                 `json:"build_path,omitempty"`
	Message     string                 `json:"message"`
	Level       string                 `json:"level"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeOperationStarted   = "operation.started"
	EventTypeOperationCompleted = "operation.completed"
	EventTypeOperationFailed    = "operation.failed"
	EventTypeProjectsLoaded     = "build.projects_loaded"
)

// Event levels.
const (
	EventLevelInfo  = "info"
	EventLevelError = "error"
)

// ErrPublisherClosed is returned by Publish after Shutdown.
var ErrPublisherClosed = errors.New("event publisher is shut down")

// EventSubscriber handles one event.
type EventSubscriber func(event Event)

// EventFilter reports whether a subscriber wants an event.
type EventFilter func(event Event) bool

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// EventPublisher delivers events to subscribers, synchronously or from a
// background goroutine. Subscribers see events in publish order.
type EventPublisher struct {
	config EventsConfig

	mu          sync.RWMutex
	subscribers []subscriberEntry
	closed      bool

	buffer chan Event
	done   chan struct{}
}

// NewEventPublisher creates a publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) *EventPublisher {
	ep := &EventPublisher{config: cfg}
	if cfg.Enabled && cfg.EnableAsync {
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.done = make(chan struct{})
		go ep.process()
	}
	return ep
}

// Subscribe registers subscriber for events accepted by filter (all when nil).
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.subscribers = append(ep.subscribers, subscriberEntry{subscriber: subscriber, filter: filter})
}

// Publish stamps and delivers event.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	defer ep.mu.RUnlock()
	if ep.closed {
		return ErrPublisherClosed
	}

	if ep.buffer == nil {
		ep.deliver(event)
		return nil
	}

	select {
	case ep.buffer <- event:
		return nil
	default:
		return fmt.Errorf("event buffer full, %s event dropped", event.Type)
	}
}

// PublishOperationStarted publishes an operation.started event.
func (ep *EventPublisher) PublishOperationStarted(op operations.OperationInfo) error {
	return ep.Publish(Event{
		Type:        EventTypeOperationStarted,
		Timestamp:   op.StartedAt,
		OperationID: op.ID,
		ParentID:    op.ParentID,
		Message:     fmt.Sprintf("%s started", op.Descriptor.DisplayName),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"display_name":  op.Descriptor.DisplayName,
			"progress_name": op.Descriptor.ProgressDisplayName,
		},
	})
}

// PublishOperationFinished publishes operation.completed or operation.failed.
func (ep *EventPublisher) PublishOperationFinished(op operations.OperationInfo, outcome operations.Outcome) error {
	event := Event{
		Type:        EventTypeOperationCompleted,
		Timestamp:   outcome.EndedAt,
		OperationID: op.ID,
		ParentID:    op.ParentID,
		Message:     fmt.Sprintf("%s completed", op.Descriptor.DisplayName),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"display_name": op.Descriptor.DisplayName,
			"duration":     outcome.Duration().Seconds(),
		},
	}
	if outcome.Status != "" {
		event.Data["status"] = outcome.Status
	}
	if outcome.Failed() {
		event.Type = EventTypeOperationFailed
		event.Level = EventLevelError
		event.Message = fmt.Sprintf("%s failed: %v", op.Descriptor.DisplayName, outcome.Err)
	}
	return ep.Publish(event)
}

// PublishProjectsLoaded publishes a build.projects_loaded event.
func (ep *EventPublisher) PublishProjectsLoaded(buildPath, rootProject string, projects int) error {
	return ep.Publish(Event{
		Type:      EventTypeProjectsLoaded,
		BuildPath: buildPath,
		Message:   fmt.Sprintf("Build %s loaded %d projects", buildPath, projects),
		Level:     EventLevelInfo,
		Data: map[string]interface{}{
			"root_project": rootProject,
			"projects":     projects,
		},
	})
}

func (ep *EventPublisher) process() {
	defer close(ep.done)
	for event := range ep.buffer {
		ep.mu.RLock()
		ep.deliver(event)
		ep.mu.RUnlock()
	}
}

// deliver must be called with mu held for reading.
func (ep *EventPublisher) deliver(event Event) {
	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops accepting events and waits until buffered events are delivered.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	ep.mu.Lock()
	if ep.closed {
		ep.mu.Unlock()
		return nil
	}
	ep.closed = true
	ep.mu.Unlock()

	if ep.buffer == nil {
		return nil
	}
	close(ep.buffer)

	select {
	case <-ep.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown: %w", ctx.Err())
	}
}

// FilterByType accepts only events of the given types.
func FilterByType(types ...string) EventFilter {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return func(event Event) bool {
		return set[event.Type]
	}
}

// FilterByOperation accepts only events of one operation.
func FilterByOperation(operationID string) EventFilter {
	return func(event Event) bool {
		return event.OperationID == operationID
	}
}
