// Package bus is an in-process publish/subscribe notification bus.
//
// Handlers run on their own goroutines so Publish never blocks on a slow
// subscriber. Handler panics are recovered and logged.
package bus

import (
	"context"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
)

// TopicLoginCompleted is published after a successful sign-in.
const TopicLoginCompleted = "login.completed"

// LoginCompleted is the payload of TopicLoginCompleted.
type LoginCompleted struct {
	Email string
}

// Event is one published notification.
type Event struct {
	Topic   string
	Payload any
}

// Handler receives events for a subscribed topic.
type Handler func(ctx context.Context, event Event)

// Bus routes published events to topic subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]map[uint64]Handler
	nextID   uint64
	inflight sync.WaitGroup
	logf     func(string, ...any)
}

// New returns an empty bus. logf receives recovered handler panics and may be nil.
func New(logf func(string, ...any)) *Bus {
	return &Bus{
		handlers: make(map[string]map[uint64]Handler),
		logf:     logf,
	}
}

// Subscribe registers handler for topic and returns a func that removes it.
func (b *Bus) Subscribe(topic string, handler Handler) func() {
	topic = strings.TrimSpace(topic)
	if b == nil || topic == "" || handler == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	subID := b.nextID
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[uint64]Handler)
	}
	b.handlers[topic][subID] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers[topic], subID)
			if len(b.handlers[topic]) == 0 {
				delete(b.handlers, topic)
			}
		})
	}
}

// Publish delivers payload to every current subscriber of topic. Handlers
// receive a context detached from ctx's cancellation.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) {
	if b == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	topic = strings.TrimSpace(topic)

	b.mu.RLock()
	ids := make([]uint64, 0, len(b.handlers[topic]))
	for subID := range b.handlers[topic] {
		ids = append(ids, subID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, 0, len(ids))
	for _, subID := range ids {
		handlers = append(handlers, b.handlers[topic][subID])
	}
	b.mu.RUnlock()

	event := Event{Topic: topic, Payload: payload}
	detached := context.WithoutCancel(ctx)
	for _, handler := range handlers {
		b.inflight.Add(1)
		go b.deliver(detached, handler, event)
	}
}

func (b *Bus) deliver(ctx context.Context, handler Handler, event Event) {
	defer b.inflight.Done()
	defer func() {
		if recovered := recover(); recovered != nil && b.logf != nil {
			b.logf("bus handler panic topic=%s panic=%v stack=%s", event.Topic, recovered, strings.TrimSpace(string(debug.Stack())))
		}
	}()
	handler(ctx, event)
}

// Wait blocks until every handler started so far has returned.
func (b *Bus) Wait() {
	if b == nil {
		return
	}
	b.inflight.Wait()
}
