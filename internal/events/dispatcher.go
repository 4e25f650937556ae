package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, name string, handler EventHandler)
}

type namedHandler struct {
	name    string
	handler EventHandler
}

// inMemoryDispatcher is a synchronous pipeline: handlers run in subscription
// order and a failing handler does not stop the ones after it.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]namedHandler
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{
		listeners: make(map[EventType][]namedHandler),
	}
}

// Publish synchronously invokes handlers for the given event and joins their
// errors, each prefixed with the handler name.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := append([]namedHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h.handler(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler for the given event type.
func (d *inMemoryDispatcher) Subscribe(eventType EventType, name string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], namedHandler{name: name, handler: handler})
}
