package es

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrHandlersNotEmpty indicates subscriptions leaked past the scope that
// owned the bus.
var ErrHandlersNotEmpty = errors.New("event handlers are still subscribed")

// Handler consumes a published event. A non-nil error stops publication and
// propagates to the publisher.
type Handler func(event any) error

// Predicate selects the events a handler receives. A nil predicate matches
// every event.
type Predicate func(event any) bool

type busHandler struct {
	key uintptr
	fn  Handler
}

type busEntry struct {
	key       uintptr
	predicate Predicate
	handlers  []busHandler
}

// Bus is an in-process publish/subscribe dispatcher with an explicit
// lifecycle: the scope that creates a bus (a process, a test run) is expected
// to unsubscribe its handlers and check AssertEmpty at teardown.
//
// Handlers and predicates are identified by their function pointer, so the
// same function value passed to Subscribe must be passed to Unsubscribe.
type Bus struct {
	mu      sync.RWMutex
	entries []*busEntry
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe appends a handler to the list for the given predicate, creating
// the predicate entry on first use. A nil predicate subscribes to all events.
func (b *Bus) Subscribe(handler Handler, predicate Predicate) {
	if handler == nil {
		panic("es: nil handler subscribed")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	pkey := funcKey(predicate)
	for _, entry := range b.entries {
		if entry.key == pkey {
			entry.handlers = append(entry.handlers, busHandler{key: funcKey(handler), fn: handler})
			return
		}
	}
	b.entries = append(b.entries, &busEntry{
		key:       pkey,
		predicate: predicate,
		handlers:  []busHandler{{key: funcKey(handler), fn: handler}},
	})
}

// Unsubscribe removes a handler from the given predicate's list, dropping the
// predicate entry entirely once its list is empty. Unknown pairs are ignored.
func (b *Bus) Unsubscribe(handler Handler, predicate Predicate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pkey := funcKey(predicate)
	hkey := funcKey(handler)
	for i, entry := range b.entries {
		if entry.key != pkey {
			continue
		}
		for j, h := range entry.handlers {
			if h.key == hkey {
				entry.handlers = append(entry.handlers[:j], entry.handlers[j+1:]...)
				break
			}
		}
		if len(entry.handlers) == 0 {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
		}
		return
	}
}

// Publish delivers an event to every handler whose predicate matches,
// synchronously and in subscription order. A handler subscribed under several
// matching predicates is invoked exactly once. The first handler error aborts
// delivery and is returned to the publisher.
func (b *Bus) Publish(event any) error {
	b.mu.RLock()
	var matched []busHandler
	seen := make(map[uintptr]bool)
	for _, entry := range b.entries {
		if entry.predicate != nil && !entry.predicate(event) {
			continue
		}
		for _, h := range entry.handlers {
			if seen[h.key] {
				continue
			}
			seen[h.key] = true
			matched = append(matched, h)
		}
	}
	b.mu.RUnlock()

	for _, h := range matched {
		if err := h.fn(event); err != nil {
			return err
		}
	}
	return nil
}

// AssertEmpty fails with ErrHandlersNotEmpty if any subscriptions remain.
// Call it at scope teardown to detect subscription leaks.
func (b *Bus) AssertEmpty() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	remaining := 0
	for _, entry := range b.entries {
		remaining += len(entry.handlers)
	}
	if remaining > 0 {
		return fmt.Errorf("%w: %d handler(s) across %d predicate(s)",
			ErrHandlersNotEmpty, remaining, len(b.entries))
	}
	return nil
}

// funcKey returns a comparable identity for a function value.
func funcKey(fn any) uintptr {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.IsNil() {
		return 0
	}
	return v.Pointer()
}
