// Package event provides the process-wide typed pub/sub hub using watermill.
//
// The bus is an explicitly constructed component owned by the composition
// root; there is no package-level instance. Publishing an event whose payload
// does not match the registered shape for its type is a programmer error and
// panics rather than being silently dropped.
package event

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-playground/validator/v10"
)

// EventType represents the type of event.
type EventType string

const (
	SessionCreated EventType = "session.created"
	SessionUpdated EventType = "session.updated"
	SessionDeleted EventType = "session.deleted"

	MessageAdded         EventType = "message.added"
	MessagePartsUpdated  EventType = "message.parts.updated"
	MessageStatusUpdated EventType = "message.status.updated"
	MessageUsageUpdated  EventType = "message.usage.updated"

	TodosReplaced EventType = "todo.replaced"

	ConfigUpdated         EventType = "config.updated"
	ConfigModelUpdated    EventType = "config.model.updated"
	ConfigLogLevelUpdated EventType = "config.loglevel.updated"
)

// Event represents an event to be published.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Subscriber is a function that receives events.
type Subscriber func(event Event)

// subscriberEntry wraps a subscriber with an ID.
type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus is the event bus that manages pub/sub using watermill.
// It uses watermill's gochannel for infrastructure while maintaining
// direct-call semantics to preserve type information. Fan-out has no
// durability: late subscribers receive no history.
type Bus struct {
	mu sync.RWMutex

	// Watermill pub/sub infrastructure for potential middleware/routing
	pubsub *gochannel.GoChannel

	validate *validator.Validate

	subscribers map[EventType][]subscriberEntry
	global      []subscriberEntry

	nextID       uint64
	closed       bool
	closedCancel context.CancelFunc
	closedCtx    context.Context
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		subscribers:  make(map[EventType][]subscriberEntry),
		closedCtx:    ctx,
		closedCancel: cancel,
	}
}

func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// Subscribe registers a subscriber for a specific event type.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriberEntry{id: id, fn: fn})

	return func() {
		b.unsubscribe(eventType, id)
	}
}

// SubscribeAll registers a subscriber for all events.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})

	return func() {
		b.unsubscribeGlobal(id)
	}
}

func (b *Bus) unsubscribe(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	for i, entry := range subs {
		if entry.id == id {
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

func (b *Bus) unsubscribeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, entry := range b.global {
		if entry.id == id {
			b.global = append(b.global[:i], b.global[i+1:]...)
			break
		}
	}
}

// checkShape panics if the event's payload does not match the registered
// shape for its type. Unknown event types are also a programmer error.
func (b *Bus) checkShape(event Event) {
	want, ok := payloadShapes[event.Type]
	if !ok {
		panic(fmt.Sprintf("event: unknown event type %q", event.Type))
	}
	got := reflect.TypeOf(event.Data)
	if got != want {
		panic(fmt.Sprintf("event: payload for %q must be %v, got %v", event.Type, want, got))
	}
	if err := b.validate.Struct(event.Data); err != nil {
		panic(fmt.Sprintf("event: invalid payload for %q: %v", event.Type, err))
	}
}

// Publish sends an event to all subscribers asynchronously.
// Each subscriber is called in its own goroutine to prevent blocking.
func (b *Bus) Publish(event Event) {
	b.checkShape(event)

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := b.collect(event.Type)
	b.mu.RUnlock()

	for _, sub := range subs {
		go sub(event)
	}
}

// PublishSync sends an event to all subscribers synchronously.
// All subscribers are called in the current goroutine before returning.
func (b *Bus) PublishSync(event Event) {
	b.checkShape(event)

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := b.collect(event.Type)
	b.mu.RUnlock()

	for _, sub := range subs {
		sub(event)
	}
}

// collect gathers subscribers for a type plus the global set.
// Callers must hold at least a read lock.
func (b *Bus) collect(eventType EventType) []Subscriber {
	subs := make([]Subscriber, 0, len(b.subscribers[eventType])+len(b.global))
	for _, entry := range b.subscribers[eventType] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.global {
		subs = append(subs, entry.fn)
	}
	return subs
}

// Close closes the bus and drops all subscribers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.closedCancel()

	b.subscribers = make(map[EventType][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}

// PubSub returns the underlying watermill GoChannel for advanced use cases.
// This can be used for middleware, routing, or when switching to distributed backends.
func (b *Bus) PubSub() *gochannel.GoChannel {
	return b.pubsub
}
