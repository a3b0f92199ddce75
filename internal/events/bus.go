package events

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultBufferSize is the default per-subscriber channel capacity.
	DefaultBufferSize = 100

	// EventTypeStateTransition identifies check-flow phase changes.
	EventTypeStateTransition = "StateTransition"
	// EventTypeBusyChanged identifies busy indicator toggles.
	EventTypeBusyChanged = "BusyChanged"
	// EventTypeValidationFailed identifies rejected submissions.
	EventTypeValidationFailed = "ValidationFailed"
	// EventTypeLookupCompleted identifies lookups that returned a grouped result.
	EventTypeLookupCompleted = "LookupCompleted"
	// EventTypeLookupFailed identifies lookups that degraded to an empty response.
	EventTypeLookupFailed = "LookupFailed"
	// EventTypeHealthCheck identifies lookup service probe results.
	EventTypeHealthCheck = "HealthCheck"
)

const (
	// SeverityInfo indicates informational event severity.
	SeverityInfo = "INFO"
	// SeverityWarn indicates warning event severity.
	SeverityWarn = "WARN"
	// SeverityError indicates error event severity.
	SeverityError = "ERROR"
)

// Event is the normalized message delivered through the in-process event bus.
type Event struct {
	Type       string
	Timestamp  time.Time
	EntityType string
	EntityID   string
	Payload    any
	Severity   string
}

// Handler consumes a published event.
type Handler func(Event)

// Logger captures warning logs for dropped events.
type Logger interface {
	Printf(format string, args ...any)
}

// Bus defines event subscription and publish behavior.
type Bus interface {
	Subscribe(eventType string, handler Handler)
	SubscribeAll(handler Handler)
	Publish(event Event)
}

// Option customizes bus construction.
type Option func(*InMemoryBus)

// WithBufferSize configures per-subscriber channel capacity.
func WithBufferSize(size int) Option {
	return func(bus *InMemoryBus) {
		if size > 0 {
			bus.bufferSize = size
		}
	}
}

// WithLogger configures log sink used for dropped-event warnings.
func WithLogger(logger Logger) Option {
	return func(bus *InMemoryBus) {
		if logger != nil {
			bus.logger = logger
		}
	}
}

// InMemoryBus is a thread-safe in-process pub/sub bus backed by buffered channels.
type InMemoryBus struct {
	mu             sync.RWMutex
	bufferSize     int
	logger         Logger
	typedSubs      map[string][]*subscriber
	wildcardSubs   []*subscriber
	nextSubscriber uint64
	closed         bool
	consumers      sync.WaitGroup
}

type subscriber struct {
	id uint64
	ch chan Event
}

// New creates an in-memory event bus with optional configuration.
func New(options ...Option) *InMemoryBus {
	bus := &InMemoryBus{
		bufferSize:   DefaultBufferSize,
		logger:       log.Default(),
		typedSubs:    make(map[string][]*subscriber),
		wildcardSubs: make([]*subscriber, 0),
	}
	for _, option := range options {
		option(bus)
	}
	return bus
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryBus) Subscribe(eventType string, handler Handler) {
	normalizedType := strings.TrimSpace(eventType)
	if normalizedType == "" || handler == nil {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	sub := b.newSubscriberLocked()
	b.typedSubs[normalizedType] = append(b.typedSubs[normalizedType], sub)
	b.mu.Unlock()

	go b.consume(sub, handler)
}

// SubscribeAll registers a handler that receives every published event.
func (b *InMemoryBus) SubscribeAll(handler Handler) {
	if handler == nil {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	sub := b.newSubscriberLocked()
	b.wildcardSubs = append(b.wildcardSubs, sub)
	b.mu.Unlock()

	go b.consume(sub, handler)
}

// Publish delivers an event to typed subscribers and wildcard subscribers.
// Publishing after Close is a no-op.
func (b *InMemoryBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, sub := range b.typedSubs[strings.TrimSpace(event.Type)] {
		b.deliver(sub, event)
	}
	for _, sub := range b.wildcardSubs {
		b.deliver(sub, event)
	}
}

// Close stops accepting events and waits for handlers to drain queued events.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, subs := range b.typedSubs {
		for _, sub := range subs {
			close(sub.ch)
		}
	}
	for _, sub := range b.wildcardSubs {
		close(sub.ch)
	}
	b.mu.Unlock()

	b.consumers.Wait()
}

func (b *InMemoryBus) deliver(sub *subscriber, event Event) {
	select {
	case sub.ch <- event:
	default:
		b.logger.Printf(
			"events: dropping event for subscriber=%d type=%s entity_type=%s entity_id=%s",
			sub.id,
			event.Type,
			event.EntityType,
			event.EntityID,
		)
	}
}

func (b *InMemoryBus) newSubscriberLocked() *subscriber {
	b.nextSubscriber++
	b.consumers.Add(1)
	return &subscriber{
		id: b.nextSubscriber,
		ch: make(chan Event, b.bufferSize),
	}
}

func (b *InMemoryBus) consume(sub *subscriber, handler Handler) {
	defer b.consumers.Done()
	for event := range sub.ch {
		handler(event)
	}
}
