// Package record defines the sequenced record manager contract: per-entity
// append-only storage with position uniqueness, a strictly increasing
// notification log per application namespace, and tracking records for
// exactly-once pipelined consumption. Every storage backend implements the
// same Manager interface with identical semantics; the reference
// implementation lives in es/adapters/memory.
package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrConflict indicates a position collision: the optimistic concurrency
	// gate. Callers re-read current state and retry with a fresh position.
	// This is the only error class an automated caller is expected to retry.
	ErrConflict = errors.New("record conflict")

	// ErrNotFound indicates an exact lookup miss.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidPosition indicates a caller contract violation: sequences are
	// indexed by non-negative integers only.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrNoItems indicates an attempt to record zero items.
	ErrNoItems = errors.New("no items to record")
)

// SequencedItem is the storage-level projection of a domain event: the owning
// sequence, an integer position within it, the topic naming the event type,
// and the serialized state. The manager never inspects State.
type SequencedItem struct {
	// SequenceID identifies one entity's event stream.
	SequenceID uuid.UUID

	// Position is the entity-local index within the sequence,
	// typically the event's originator version.
	Position int64

	// Topic is the stable type tag used to reconstruct the event type.
	Topic string

	// State is the opaque serialized event payload.
	State []byte
}

// Notification is one committed write in an application namespace's globally
// ordered log, reconstructed for downstream polling.
type Notification struct {
	// ID is strictly increasing and gapless within the namespace,
	// independent of sequence and position.
	ID int64

	// OriginatorID is the sequence the underlying item belongs to.
	OriginatorID uuid.UUID

	// OriginatorVersion is the item's position within its sequence.
	OriginatorVersion int64

	// Topic is the stored event type tag.
	Topic string

	// State is the opaque serialized event payload.
	State []byte
}

// Tracking is a downstream application's durable marker that it has applied
// one upstream notification. Its existence is the idempotency gate that makes
// re-delivery a no-op.
type Tracking struct {
	// UpstreamApplication names the namespace whose notification log was
	// consumed.
	UpstreamApplication string

	// PipelineID identifies the processing pipeline the consumer belongs to.
	PipelineID int

	// NotificationID is the consumed upstream notification.
	NotificationID int64
}

// ConflictError reports a write at an already-occupied position. It unwraps
// to ErrConflict, so both errors.Is(err, ErrConflict) and errors.As work.
type ConflictError struct {
	// SequenceID is the sequence the conflicting write targeted.
	SequenceID uuid.UUID

	// Position is the occupied position.
	Position int64

	// RecordCount is the number of records currently in the sequence, which
	// tells a retrying caller how far behind its view of the sequence is.
	RecordCount int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("record conflict: position %d of sequence %s is already occupied (%d records)",
		e.Position, e.SequenceID, e.RecordCount)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// IsConflict reports whether err is the retryable position-conflict class.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Manager is the sequenced record manager contract. A Manager is bound to one
// application namespace (and pipeline); all invariants hold per namespace:
//
//   - for a fixed sequence, positions are unique: a second write at an
//     occupied position fails with ConflictError and never overwrites;
//   - notification ids form a contiguous strictly increasing run starting at
//     1, assigned atomically with the item write;
//   - item storage and notification append commit as one unit, as do the
//     items and tracking record passed to WriteRecords.
type Manager interface {
	// ApplicationName returns the namespace this manager writes to.
	ApplicationName() string

	// PipelineID returns the processing pipeline this manager belongs to.
	PipelineID() int

	// Record appends sequenced items, assigning one notification per item.
	// All items commit or none do.
	Record(ctx context.Context, items ...SequencedItem) error

	// GetRecord returns the item at an exact (sequence, position) pair,
	// or ErrNotFound.
	GetRecord(ctx context.Context, sequenceID uuid.UUID, position int64) (SequencedItem, error)

	// GetRecords runs a bounded range query over one sequence's positions.
	// Positions missing inside the range are skipped; an empty or unknown
	// sequence yields an empty result.
	GetRecords(ctx context.Context, sequenceID uuid.UUID, q RangeQuery) ([]SequencedItem, error)

	// AllSequenceIDs enumerates the known sequences of the namespace.
	AllSequenceIDs(ctx context.Context) ([]uuid.UUID, error)

	// DeleteRecord removes one entry if present; absent entries are a
	// silent no-op. Exposed for compaction and testing only.
	DeleteRecord(ctx context.Context, sequenceID uuid.UUID, position int64) error

	// MaxNotificationID returns the highest assigned notification id,
	// or 0 when the log is empty.
	MaxNotificationID(ctx context.Context) (int64, error)

	// Notifications returns, in increasing id order, the notifications with
	// id in (start, stop] that exist. Gaps are tolerated.
	Notifications(ctx context.Context, start, stop int64) ([]Notification, error)

	// MaxTrackingID returns the highest notification id tracked for an
	// upstream application, or 0 when none has been tracked.
	MaxTrackingID(ctx context.Context, upstreamApplication string) (int64, error)

	// HasTracking reports whether the given upstream notification has
	// already been applied by the given pipeline.
	HasTracking(ctx context.Context, upstreamApplication string, pipelineID int, notificationID int64) (bool, error)

	// WriteRecords writes sequenced items and, when supplied, a tracking
	// record as one atomic unit. Items may be empty when only the tracking
	// record must commit. A tracking record that already exists fails with
	// ErrConflict, keeping re-delivery side-effect free.
	WriteRecords(ctx context.Context, items []SequencedItem, tracking *Tracking) error
}
