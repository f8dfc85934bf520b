package es

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

type counterIncremented struct{ DomainEvent }

type counterReset struct{ DomainEvent }

type counterState struct {
	value int
}

func newCounterMutator() *Mutator {
	m := NewMutator()
	m.Register(counterIncremented{}, func(target any, event any) (any, error) {
		state, _ := target.(counterState)
		ev := event.(counterIncremented)
		by, _ := ev.Attr("by")
		state.value += by.(int)
		return state, nil
	})
	m.Register(counterReset{}, func(target any, event any) (any, error) {
		return counterState{}, nil
	})
	return m
}

func incremented(by int) counterIncremented {
	return counterIncremented{MustEvent(NewEntityEvent(uuid.New(), Attrs{"by": by}))}
}

func TestMutator_Apply(t *testing.T) {
	m := newCounterMutator()

	out, err := m.Apply(counterState{value: 1}, incremented(2))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := out.(counterState).value; got != 3 {
		t.Errorf("value = %d, want 3", got)
	}
}

func TestMutator_ApplyUnhandledType(t *testing.T) {
	m := NewMutator()

	_, err := m.Apply(counterState{}, incremented(1))
	if !errors.Is(err, ErrUnhandledEventType) {
		t.Errorf("Apply() error = %v, want ErrUnhandledEventType", err)
	}
}

func TestMutator_Fold(t *testing.T) {
	m := newCounterMutator()

	tests := []struct {
		name   string
		events []any
		want   int
	}{
		{
			name:   "no events returns the initial target",
			events: nil,
			want:   0,
		},
		{
			name:   "increments accumulate left to right",
			events: []any{incremented(1), incremented(2), incremented(3)},
			want:   6,
		},
		{
			name:   "reset discards accumulated state",
			events: []any{incremented(5), counterReset{MustEvent(NewEvent(nil))}, incremented(1)},
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := m.Fold(counterState{}, tt.events...)
			if err != nil {
				t.Fatalf("Fold() error = %v", err)
			}
			if got := out.(counterState).value; got != tt.want {
				t.Errorf("value = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMutator_FoldStopsAtFirstError(t *testing.T) {
	m := newCounterMutator()

	_, err := m.Fold(counterState{}, incremented(1), counterState{}, incremented(2))
	if !errors.Is(err, ErrUnhandledEventType) {
		t.Errorf("Fold() error = %v, want ErrUnhandledEventType", err)
	}
}

func TestMutator_RegisterReplacesHandler(t *testing.T) {
	m := newCounterMutator()
	m.Register(counterIncremented{}, func(target any, event any) (any, error) {
		return counterState{value: 100}, nil
	})

	out, err := m.Apply(counterState{}, incremented(1))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := out.(counterState).value; got != 100 {
		t.Errorf("value = %d, want 100 from replacement handler", got)
	}
}

func TestMutator_RegisterNilPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Register(..., nil) did not panic")
		}
	}()
	NewMutator().Register(counterIncremented{}, nil)
}
