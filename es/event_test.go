package es

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type orderPlaced struct{ DomainEvent }

type orderShipped struct{ DomainEvent }

func TestNewEvent_CopiesAttributes(t *testing.T) {
	attrs := Attrs{"sku": "A-1", "qty": 3}
	ev, err := NewEvent(attrs)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}

	// Mutating the input map must not affect the event.
	attrs["sku"] = "B-2"
	if v, _ := ev.Attr("sku"); v != "A-1" {
		t.Errorf("Attr(sku) = %v, want A-1 after input mutation", v)
	}

	// Mutating the output copy must not affect the event either.
	out := ev.Attributes()
	out["qty"] = 99
	if v, _ := ev.Attr("qty"); v != 3 {
		t.Errorf("Attr(qty) = %v, want 3 after output mutation", v)
	}
}

func TestNewEvent_Options(t *testing.T) {
	id := uuid.New()
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ev, err := NewEvent(Attrs{"k": "v"},
		WithOriginatorID(id),
		WithOriginatorVersion(7),
		WithTimestamp(ts),
	)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}

	if got := ev.OriginatorID(); got != id {
		t.Errorf("OriginatorID() = %v, want %v", got, id)
	}
	if got := ev.OriginatorVersion(); got != 7 {
		t.Errorf("OriginatorVersion() = %v, want 7", got)
	}
	if got := ev.Timestamp(); !got.Equal(ts) {
		t.Errorf("Timestamp() = %v, want %v", got, ts)
	}
}

func TestNewEvent_DefaultAccessors(t *testing.T) {
	ev := MustEvent(NewEvent(Attrs{"k": "v"}))

	if got := ev.OriginatorID(); got != uuid.Nil {
		t.Errorf("OriginatorID() = %v, want uuid.Nil", got)
	}
	if got := ev.OriginatorVersion(); got != -1 {
		t.Errorf("OriginatorVersion() = %v, want -1", got)
	}
	if got := ev.Timestamp(); !got.IsZero() {
		t.Errorf("Timestamp() = %v, want zero time", got)
	}
	if got := ev.EventID(); got != uuid.Nil {
		t.Errorf("EventID() = %v, want uuid.Nil", got)
	}
	if ev.Has(AttrOriginatorID) {
		t.Error("Has(originator_id) = true, want false")
	}
}

func TestWithOriginatorVersion_RejectsNegative(t *testing.T) {
	_, err := NewEvent(nil, WithOriginatorVersion(-1))
	if !errors.Is(err, ErrInvalidVersion) {
		t.Errorf("NewEvent() error = %v, want ErrInvalidVersion", err)
	}
}

func TestWithTimestamp_ZeroMeansNow(t *testing.T) {
	before := time.Now()
	ev := MustEvent(NewTimestampedEntityEvent(uuid.New(), nil))
	after := time.Now()

	ts := ev.Timestamp()
	if ts.Before(before) || ts.After(after) {
		t.Errorf("Timestamp() = %v, want between %v and %v", ts, before, after)
	}
}

func TestNewTimeuuidedEntityEvent_GeneratesTimeOrderedID(t *testing.T) {
	first := MustEvent(NewTimeuuidedEntityEvent(uuid.New(), nil))
	second := MustEvent(NewTimeuuidedEntityEvent(uuid.New(), nil))

	if first.EventID() == uuid.Nil {
		t.Fatal("EventID() = uuid.Nil, want generated id")
	}
	if first.EventID().Version() != 1 {
		t.Errorf("EventID().Version() = %d, want 1", first.EventID().Version())
	}
	if first.EventID() == second.EventID() {
		t.Error("two generated event ids are equal, want distinct")
	}
}

func TestEqual(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{
			name: "same type and attributes are equal",
			a:    orderPlaced{MustEvent(NewEntityEvent(id, Attrs{"sku": "A-1"}))},
			b:    orderPlaced{MustEvent(NewEntityEvent(id, Attrs{"sku": "A-1"}))},
			want: true,
		},
		{
			name: "different attribute values are not equal",
			a:    orderPlaced{MustEvent(NewEntityEvent(id, Attrs{"sku": "A-1"}))},
			b:    orderPlaced{MustEvent(NewEntityEvent(id, Attrs{"sku": "B-2"}))},
			want: false,
		},
		{
			name: "same attributes but different types are not equal",
			a:    orderPlaced{MustEvent(NewEntityEvent(id, Attrs{"sku": "A-1"}))},
			b:    orderShipped{MustEvent(NewEntityEvent(id, Attrs{"sku": "A-1"}))},
			want: false,
		},
		{
			name: "missing attribute is not equal to present attribute",
			a:    orderPlaced{MustEvent(NewEvent(Attrs{"sku": "A-1"}))},
			b:    orderPlaced{MustEvent(NewEvent(Attrs{"sku": "A-1", "qty": 1}))},
			want: false,
		},
		{
			name: "both nil are equal",
			a:    nil,
			b:    nil,
			want: true,
		},
		{
			name: "nil and event are not equal",
			a:    nil,
			b:    orderPlaced{MustEvent(NewEvent(nil))},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHashEvent(t *testing.T) {
	id := uuid.New()

	a := orderPlaced{MustEvent(NewEntityEvent(id, Attrs{"sku": "A-1"}))}
	b := orderPlaced{MustEvent(NewEntityEvent(id, Attrs{"sku": "A-1"}))}
	c := orderPlaced{MustEvent(NewEntityEvent(id, Attrs{"sku": "B-2"}))}
	d := orderShipped{MustEvent(NewEntityEvent(id, Attrs{"sku": "A-1"}))}

	if HashEvent(a) != HashEvent(b) {
		t.Error("equal events hash differently")
	}
	if HashEvent(a) == HashEvent(c) {
		t.Error("events with different attributes hash identically")
	}
	if HashEvent(a) == HashEvent(d) {
		t.Error("events of different types hash identically")
	}
}

func TestFormat(t *testing.T) {
	ev := orderPlaced{MustEvent(NewEvent(Attrs{"b": 2, "a": 1}))}

	want := "orderPlaced(a=1, b=2)"
	if got := Format(ev); got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}

	// Pointer receivers format the same as values.
	if got := Format(&ev); got != want {
		t.Errorf("Format(ptr) = %q, want %q", got, want)
	}
}
