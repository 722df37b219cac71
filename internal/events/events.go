package events

import (
	"context"
	"sync"
	"time"

	"hotelbooking/internal/clock"

	"github.com/google/uuid"
)

const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"

	// AllLevels subscribes a handler to every event regardless of level.
	AllLevels = "*"
)

// Event is one operational record destined for the log sink.
type Event struct {
	ID        string         `json:"id"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Document flattens the event into the indexed shape. Metadata never
// overrides timestamp, level or message.
func (e *Event) Document() map[string]any {
	doc := make(map[string]any, len(e.Fields)+3)
	for k, v := range e.Fields {
		doc[k] = v
	}
	doc["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	doc["level"] = e.Level
	doc["message"] = e.Message
	return doc
}

// EventHandler reacts to an event. Handlers must not block.
type EventHandler func(event *Event)

// EventBus provides in-process pub/sub for events keyed by level.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a level, or AllLevels.
func (b *EventBus) Subscribe(level string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[level] = append(b.subscribers[level], handler)
}

func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Level]...)
	handlers = append(handlers, b.subscribers[AllLevels]...)
	b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	for _, handler := range handlers {
		handler(event)
	}
}

// Emitter turns business outcomes into events on a bus.
type Emitter struct {
	bus   *EventBus
	clock clock.Clock
}

func NewEmitter(bus *EventBus, c clock.Clock) *Emitter {
	if c == nil {
		c = clock.NewSystem()
	}
	return &Emitter{bus: bus, clock: c}
}

func (e *Emitter) Emit(_ context.Context, level, message string, fields map[string]any) {
	if e == nil || e.bus == nil {
		return
	}

	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	e.bus.Publish(&Event{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		Fields:    copied,
		Timestamp: e.clock.Now(),
	})
}
