package es

import (
	"errors"
	"fmt"
	"hash/fnv"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Attribute names assigned by the capability options.
// Concrete events are free to carry any additional attributes alongside them.
const (
	AttrOriginatorID      = "originator_id"
	AttrOriginatorVersion = "originator_version"
	AttrTimestamp         = "timestamp"
	AttrEventID           = "event_id"
)

// ErrInvalidVersion indicates an originator version outside the valid range.
// Versions are non-negative integers; the type system enforces the integer
// half of the contract, this error covers the rest.
var ErrInvalidVersion = errors.New("invalid originator version")

// Attrs is the named attribute set of a domain event.
type Attrs map[string]any

// DomainEvent is an immutable domain event value: a fixed mapping of named
// attributes decided at construction time. The attribute map is copied on the
// way in and on the way out, so instances cannot be modified after
// construction. Events with the same dynamic type and attribute mapping are
// equal (see Equal) and hash identically (see HashEvent).
//
// Concrete event types embed DomainEvent:
//
//	type OrderPlaced struct{ es.DomainEvent }
//
// and gain all accessors plus equality/hash/format support.
type DomainEvent struct {
	attrs map[string]any
}

// EventOption adds a capability attribute bundle during construction.
type EventOption func(map[string]any) error

// WithTimestamp sets the timestamp attribute. A zero time means "now",
// matching the default applied by the timestamped constructors.
func WithTimestamp(ts time.Time) EventOption {
	return func(m map[string]any) error {
		if ts.IsZero() {
			ts = time.Now()
		}
		m[AttrTimestamp] = ts
		return nil
	}
}

// WithOriginatorID sets the identifier of the owning sequence (the entity).
func WithOriginatorID(id uuid.UUID) EventOption {
	return func(m map[string]any) error {
		m[AttrOriginatorID] = id
		return nil
	}
}

// WithOriginatorVersion sets the originator version. Negative versions are
// rejected with ErrInvalidVersion.
func WithOriginatorVersion(version int64) EventOption {
	return func(m map[string]any) error {
		if version < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidVersion, version)
		}
		m[AttrOriginatorVersion] = version
		return nil
	}
}

// WithEventID sets a time-ordered event identifier. uuid.Nil means "generate
// one": a version 1 UUID, which sorts by creation time.
func WithEventID(id uuid.UUID) EventOption {
	return func(m map[string]any) error {
		if id == uuid.Nil {
			generated, err := uuid.NewUUID()
			if err != nil {
				return fmt.Errorf("failed to generate event id: %w", err)
			}
			id = generated
		}
		m[AttrEventID] = id
		return nil
	}
}

// NewEvent constructs a domain event from a named attribute set plus any
// capability options. The attribute map is copied; the caller keeps no handle
// on the event's internal state.
func NewEvent(attrs Attrs, opts ...EventOption) (DomainEvent, error) {
	m := make(map[string]any, len(attrs)+4)
	for k, v := range attrs {
		m[k] = v
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return DomainEvent{}, err
		}
	}
	return DomainEvent{attrs: m}, nil
}

// MustEvent is a construction helper for event literals in tests and fixtures.
// It panics on error.
func MustEvent(ev DomainEvent, err error) DomainEvent {
	if err != nil {
		panic(err)
	}
	return ev
}

// NewEntityEvent constructs an event scoped to an entity.
func NewEntityEvent(originatorID uuid.UUID, attrs Attrs) (DomainEvent, error) {
	return NewEvent(attrs, WithOriginatorID(originatorID))
}

// NewTimestampedEntityEvent constructs an entity event carrying a timestamp,
// defaulting to the current time.
func NewTimestampedEntityEvent(originatorID uuid.UUID, attrs Attrs) (DomainEvent, error) {
	return NewEvent(attrs, WithOriginatorID(originatorID), WithTimestamp(time.Time{}))
}

// NewVersionedEntityEvent constructs an entity event carrying an originator
// version.
func NewVersionedEntityEvent(originatorID uuid.UUID, version int64, attrs Attrs) (DomainEvent, error) {
	return NewEvent(attrs, WithOriginatorID(originatorID), WithOriginatorVersion(version))
}

// NewTimestampedVersionedEntityEvent constructs an entity event carrying both
// an originator version and a timestamp.
func NewTimestampedVersionedEntityEvent(originatorID uuid.UUID, version int64, attrs Attrs) (DomainEvent, error) {
	return NewEvent(attrs,
		WithOriginatorID(originatorID),
		WithOriginatorVersion(version),
		WithTimestamp(time.Time{}))
}

// NewTimeuuidedEntityEvent constructs an entity event identified by a
// time-ordered UUID, generated when not supplied through WithEventID.
func NewTimeuuidedEntityEvent(originatorID uuid.UUID, attrs Attrs) (DomainEvent, error) {
	return NewEvent(attrs, WithOriginatorID(originatorID), WithEventID(uuid.Nil))
}

// Attr returns the named attribute value and whether it is present.
func (e DomainEvent) Attr(name string) (any, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

// Has reports whether the named attribute is present.
func (e DomainEvent) Has(name string) bool {
	_, ok := e.attrs[name]
	return ok
}

// Attributes returns a copy of the full attribute mapping.
func (e DomainEvent) Attributes() Attrs {
	out := make(Attrs, len(e.attrs))
	for k, v := range e.attrs {
		out[k] = v
	}
	return out
}

// OriginatorID returns the owning entity's identifier, or uuid.Nil when the
// event is not entity-scoped.
func (e DomainEvent) OriginatorID() uuid.UUID {
	if id, ok := e.attrs[AttrOriginatorID].(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// OriginatorVersion returns the originator version, or -1 when the event is
// not versioned.
func (e DomainEvent) OriginatorVersion() int64 {
	if v, ok := e.attrs[AttrOriginatorVersion].(int64); ok {
		return v
	}
	return -1
}

// Timestamp returns the event's timestamp, or the zero time when the event is
// not timestamped.
func (e DomainEvent) Timestamp() time.Time {
	if ts, ok := e.attrs[AttrTimestamp].(time.Time); ok {
		return ts
	}
	return time.Time{}
}

// EventID returns the event's time-ordered identifier, or uuid.Nil when the
// event does not carry one.
func (e DomainEvent) EventID() uuid.UUID {
	if id, ok := e.attrs[AttrEventID].(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// attrCarrier is satisfied by DomainEvent and by every type embedding it.
type attrCarrier interface {
	eventAttrs() map[string]any
}

func (e DomainEvent) eventAttrs() map[string]any { return e.attrs }

// Equal reports structural equality: both values must have the same dynamic
// type and the same attribute mapping.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	ca, ok := a.(attrCarrier)
	if !ok {
		return false
	}
	cb, ok := b.(attrCarrier)
	if !ok {
		return false
	}
	return reflect.DeepEqual(ca.eventAttrs(), cb.eventAttrs())
}

// HashEvent computes a deterministic hash of an event from its topic and its
// sorted attribute pairs. Equal events hash identically.
func HashEvent(e any) uint64 {
	h := fnv.New64a()
	h.Write([]byte(TopicOf(e)))
	c, ok := e.(attrCarrier)
	if !ok {
		return h.Sum64()
	}
	attrs := c.eventAttrs()
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%v", k, attrs[k])
	}
	return h.Sum64()
}

// Format renders an event as "TypeName(key=value, ...)" with attributes in
// sorted order. The output is deterministic and meant for logs and test
// failure messages, not for parsing.
func Format(e any) string {
	t := reflect.TypeOf(e)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := "<nil>"
	if t != nil {
		name = t.Name()
	}

	c, ok := e.(attrCarrier)
	if !ok {
		return name + "()"
	}
	attrs := c.eventAttrs()
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, attrs[k]))
	}
	return name + "(" + strings.Join(pairs, ", ") + ")"
}
