package es

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrUnhandledEventType indicates an event reached a mutator with no handler
// registered for its type. Dispatch is total: missing handlers are a contract
// violation, never silently ignored.
var ErrUnhandledEventType = errors.New("no handler registered for event type")

// MutatorFunc applies one event to a target and returns the next target
// state. The target is threaded as the first argument and the event as the
// last, which fits a left-fold over an event sequence.
type MutatorFunc func(target any, event any) (any, error)

// Mutator dispatches event application on the runtime type of the event.
// It replaces last-argument dynamic dispatch with an explicit table keyed by
// event type.
type Mutator struct {
	mu       sync.RWMutex
	handlers map[reflect.Type]MutatorFunc
}

// NewMutator creates an empty dispatch table.
func NewMutator() *Mutator {
	return &Mutator{handlers: make(map[reflect.Type]MutatorFunc)}
}

// Register binds a handler to the dynamic type of the prototype value.
// Registering a second handler for the same type replaces the first.
func (m *Mutator) Register(prototype any, fn MutatorFunc) {
	if fn == nil {
		panic("es: nil mutator func registered")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[reflect.TypeOf(prototype)] = fn
}

// Apply dispatches the event to the handler registered for its type and
// returns the mutated target. An event type with no handler fails with
// ErrUnhandledEventType.
func (m *Mutator) Apply(target any, event any) (any, error) {
	m.mu.RLock()
	fn, ok := m.handlers[reflect.TypeOf(event)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnhandledEventType, Format(event))
	}
	return fn(target, event)
}

// Fold applies a sequence of events to an initial target from left to right,
// threading the accumulator through each handler. This is how an aggregate is
// reconstituted from its event history.
func (m *Mutator) Fold(initial any, events ...any) (any, error) {
	target := initial
	for i, event := range events {
		next, err := m.Apply(target, event)
		if err != nil {
			return nil, fmt.Errorf("folding event %d: %w", i, err)
		}
		target = next
	}
	return target, nil
}
