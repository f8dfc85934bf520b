package es

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// topicSeparator splits a topic into its namespace path and qualified name.
const topicSeparator = "#"

// ErrTopicResolution indicates a stored type tag that cannot be mapped back
// to a registered type. Check with errors.Is; the full diagnostic lives on
// TopicResolutionError.
var ErrTopicResolution = errors.New("topic cannot be resolved")

// TopicResolutionError carries the offending topic and the underlying cause.
// It unwraps to ErrTopicResolution.
type TopicResolutionError struct {
	Topic string
	Cause error
}

func (e *TopicResolutionError) Error() string {
	return fmt.Sprintf("topic %q cannot be resolved: %v", e.Topic, e.Cause)
}

func (e *TopicResolutionError) Unwrap() error { return ErrTopicResolution }

var (
	topicMu    sync.RWMutex
	topicTypes = make(map[string]reflect.Type)
	topicNames = make(map[reflect.Type]string)
)

// TopicOf derives the stable topic string for a value's type, formatted as
// "<package path>#<qualified name>". The same type always yields the same
// topic; no registration is required to compute one. Types registered under a
// custom qualified name (RegisterTopicAs) use that name instead of the
// declared type name.
func TopicOf(v any) string {
	t := baseType(v)
	if t == nil {
		return ""
	}

	topicMu.RLock()
	name, ok := topicNames[t]
	topicMu.RUnlock()
	if !ok {
		name = t.Name()
	}
	return t.PkgPath() + topicSeparator + name
}

// RegisterTopic makes a type resolvable from its topic. Registration is
// computed once and treated as immutable metadata; registering the same type
// twice is a no-op.
func RegisterTopic(v any) {
	RegisterTopicAs("", v)
}

// RegisterTopicAs registers a type under a custom qualified name within its
// package namespace, e.g. "Order.Created" for a type logically nested inside
// another. An empty qualified name uses the declared type name.
func RegisterTopicAs(qualifiedName string, v any) {
	t := baseType(v)
	if t == nil || t.PkgPath() == "" {
		panic("es: only named types can be registered as topics")
	}

	topicMu.Lock()
	defer topicMu.Unlock()
	if qualifiedName != "" {
		topicNames[t] = qualifiedName
	} else {
		qualifiedName = t.Name()
	}
	topicTypes[t.PkgPath()+topicSeparator+qualifiedName] = t
}

// ResolveTopic returns the registered type for a topic string. Resolution
// fails with a TopicResolutionError when the topic is malformed, when the
// namespace is unknown, or when the qualified name does not resolve within a
// known namespace.
func ResolveTopic(topic string) (reflect.Type, error) {
	namespace, _, found := strings.Cut(topic, topicSeparator)
	if !found {
		return nil, &TopicResolutionError{
			Topic: topic,
			Cause: fmt.Errorf("missing %q separator", topicSeparator),
		}
	}

	topicMu.RLock()
	defer topicMu.RUnlock()

	if t, ok := topicTypes[topic]; ok {
		return t, nil
	}

	// Distinguish an unknown namespace from an unresolvable name inside a
	// known one, for diagnostics parity with namespace-loading failures.
	for registered := range topicTypes {
		if strings.HasPrefix(registered, namespace+topicSeparator) {
			return nil, &TopicResolutionError{
				Topic: topic,
				Cause: fmt.Errorf("no such type in namespace %q", namespace),
			}
		}
	}
	return nil, &TopicResolutionError{
		Topic: topic,
		Cause: fmt.Errorf("namespace %q is not registered", namespace),
	}
}

// NewFromTopic returns a zero value of the type registered for a topic.
// Consumers rebuilding events from stored records use it to get a typed
// instance before decoding state into it.
func NewFromTopic(topic string) (any, error) {
	t, err := ResolveTopic(topic)
	if err != nil {
		return nil, err
	}
	return reflect.New(t).Elem().Interface(), nil
}

// baseType returns the named type behind v, dereferencing pointers.
func baseType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
