package record

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestConflictError_Unwrap(t *testing.T) {
	err := &ConflictError{SequenceID: uuid.New(), Position: 3, RecordCount: 5}

	if !errors.Is(err, ErrConflict) {
		t.Error("errors.Is(err, ErrConflict) = false, want true")
	}

	var conflict *ConflictError
	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.As(wrapped, &conflict) {
		t.Fatal("errors.As failed to recover *ConflictError through wrapping")
	}
	if conflict.Position != 3 || conflict.RecordCount != 5 {
		t.Errorf("recovered ConflictError = %+v, want position 3 count 5", conflict)
	}
}

func TestConflictError_Message(t *testing.T) {
	seq := uuid.New()
	err := &ConflictError{SequenceID: seq, Position: 3, RecordCount: 5}

	msg := err.Error()
	for _, part := range []string{"position 3", seq.String(), "5 records"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Error() = %q, missing %q", msg, part)
		}
	}
}

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "bare sentinel",
			err:  ErrConflict,
			want: true,
		},
		{
			name: "conflict error value",
			err:  &ConflictError{},
			want: true,
		},
		{
			name: "wrapped sentinel",
			err:  fmt.Errorf("already tracked: %w", ErrConflict),
			want: true,
		},
		{
			name: "unrelated error",
			err:  ErrNotFound,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConflict(tt.err); got != tt.want {
				t.Errorf("IsConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}
