// Package memory provides the reference in-memory record manager.
// It realizes the exact contract every persistent backend must satisfy:
// per-sequence position uniqueness, gapless strictly increasing notification
// ids assigned atomically with each write, and atomic item+tracking commits.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/getseq/seqsourcing/es"
	"github.com/getseq/seqsourcing/es/record"
)

// Datastore holds in-memory record state shared by managers, partitioned by
// application name. Managers for different namespaces never contend: each
// namespace carries its own lock, and the notification-id counter lives under
// that lock, so "read max" and "assign next" are a single indivisible step.
type Datastore struct {
	mu   sync.Mutex
	apps map[string]*namespace
}

// NewDatastore creates an empty datastore.
func NewDatastore() *Datastore {
	return &Datastore{apps: make(map[string]*namespace)}
}

func (d *Datastore) namespace(application string) *namespace {
	d.mu.Lock()
	defer d.mu.Unlock()
	ns, ok := d.apps[application]
	if !ok {
		ns = newNamespace()
		d.apps[application] = ns
	}
	return ns
}

type trackingKey struct {
	pipelineID     int
	notificationID int64
}

// trackingScope identifies one consumer's offset: tracking records are scoped
// per (upstream, pipeline), so the high-water mark must be too.
type trackingScope struct {
	upstream   string
	pipelineID int
}

type storedNotification struct {
	id   int64
	item record.SequencedItem
}

// namespace is the state of one application namespace.
type namespace struct {
	mu                sync.Mutex
	sequences         map[uuid.UUID]map[int64]record.SequencedItem
	notifications     map[int64]storedNotification
	maxNotificationID int64
	tracking          map[string]map[trackingKey]struct{}
	trackingMax       map[trackingScope]int64
}

func newNamespace() *namespace {
	return &namespace{
		sequences:     make(map[uuid.UUID]map[int64]record.SequencedItem),
		notifications: make(map[int64]storedNotification),
		tracking:      make(map[string]map[trackingKey]struct{}),
		trackingMax:   make(map[trackingScope]int64),
	}
}

// Config configures a memory record manager.
// Configuration is immutable after construction.
type Config struct {
	// ApplicationName is the namespace this manager reads and writes.
	ApplicationName string

	// PipelineID identifies the processing pipeline this manager belongs to.
	PipelineID int

	// Logger is an optional logger for observability.
	// If nil, logging is disabled (zero overhead).
	Logger es.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ApplicationName: "app",
		PipelineID:      0,
		Logger:          nil,
	}
}

// Option is a functional option for configuring a Manager.
type Option func(*Config)

// WithApplicationName sets the application namespace.
func WithApplicationName(name string) Option {
	return func(c *Config) {
		c.ApplicationName = name
	}
}

// WithPipelineID sets the pipeline id stamped on tracking records.
func WithPipelineID(id int) Option {
	return func(c *Config) {
		c.PipelineID = id
	}
}

// WithLogger sets a logger for the manager.
func WithLogger(logger es.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// NewConfig creates a configuration with functional options applied over the
// defaults.
//
// Example:
//
//	config := memory.NewConfig(
//	    memory.WithApplicationName("orders"),
//	    memory.WithPipelineID(1),
//	)
func NewConfig(opts ...Option) Config {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// Manager is the in-memory record manager for one application namespace.
// It is safe for concurrent use by multiple logical writers in one process.
type Manager struct {
	ds     *Datastore
	config Config
}

var _ record.Manager = (*Manager)(nil)

// NewManager creates a record manager over the given datastore. Managers
// sharing a datastore see each other's namespaces, which is what lets a
// downstream application read an upstream's notification log.
func NewManager(ds *Datastore, config Config) *Manager {
	return &Manager{ds: ds, config: config}
}

// ApplicationName implements record.Manager.
func (m *Manager) ApplicationName() string { return m.config.ApplicationName }

// PipelineID implements record.Manager.
func (m *Manager) PipelineID() int { return m.config.PipelineID }

// Record implements record.Manager. Validation runs over the whole batch
// before any state changes, so a conflicting or invalid item leaves nothing
// behind: item storage and notification append are one atomic unit.
func (m *Manager) Record(ctx context.Context, items ...record.SequencedItem) error {
	if len(items) == 0 {
		return record.ErrNoItems
	}

	ns := m.ds.namespace(m.config.ApplicationName)
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if err := m.validate(ns, items); err != nil {
		return err
	}
	m.apply(ns, items)

	if m.config.Logger != nil {
		m.config.Logger.Info(ctx, "items recorded",
			"application", m.config.ApplicationName,
			"item_count", len(items),
			"max_notification_id", ns.maxNotificationID)
	}
	return nil
}

// validate checks positions and conflicts for a batch, including collisions
// between items of the same batch. Caller holds ns.mu.
func (m *Manager) validate(ns *namespace, items []record.SequencedItem) error {
	staged := make(map[uuid.UUID]map[int64]bool)
	for _, item := range items {
		if item.Position < 0 {
			return fmt.Errorf("%w: %d", record.ErrInvalidPosition, item.Position)
		}
		_, occupied := ns.sequences[item.SequenceID][item.Position]
		if occupied || staged[item.SequenceID][item.Position] {
			return &record.ConflictError{
				SequenceID:  item.SequenceID,
				Position:    item.Position,
				RecordCount: int64(len(ns.sequences[item.SequenceID])),
			}
		}
		if staged[item.SequenceID] == nil {
			staged[item.SequenceID] = make(map[int64]bool)
		}
		staged[item.SequenceID][item.Position] = true
	}
	return nil
}

// apply stores a validated batch and appends one notification per item.
// Caller holds ns.mu.
func (m *Manager) apply(ns *namespace, items []record.SequencedItem) {
	for _, item := range items {
		seq, ok := ns.sequences[item.SequenceID]
		if !ok {
			seq = make(map[int64]record.SequencedItem)
			ns.sequences[item.SequenceID] = seq
		}
		seq[item.Position] = item

		ns.maxNotificationID++
		ns.notifications[ns.maxNotificationID] = storedNotification{
			id:   ns.maxNotificationID,
			item: item,
		}
	}
}

// GetRecord implements record.Manager.
func (m *Manager) GetRecord(_ context.Context, sequenceID uuid.UUID, position int64) (record.SequencedItem, error) {
	ns := m.ds.namespace(m.config.ApplicationName)
	ns.mu.Lock()
	defer ns.mu.Unlock()

	item, ok := ns.sequences[sequenceID][position]
	if !ok {
		return record.SequencedItem{}, fmt.Errorf("%w: application %q sequence %s position %d",
			record.ErrNotFound, m.config.ApplicationName, sequenceID, position)
	}
	return item, nil
}

// GetRecords implements record.Manager.
func (m *Manager) GetRecords(_ context.Context, sequenceID uuid.UUID, q record.RangeQuery) ([]record.SequencedItem, error) {
	ns := m.ds.namespace(m.config.ApplicationName)
	ns.mu.Lock()
	defer ns.mu.Unlock()

	seq := ns.sequences[sequenceID]
	if len(seq) == 0 {
		return nil, nil
	}

	positions := make([]int64, 0, len(seq))
	for p := range seq {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	start, end := q.Bounds(positions[0], positions[len(positions)-1])

	var selected []int64
	for _, p := range positions {
		if p >= start && p < end {
			selected = append(selected, p)
		}
	}
	if q.QueryDescending {
		reversePositions(selected)
	}
	if q.Limit > 0 && len(selected) > q.Limit {
		selected = selected[:q.Limit]
	}
	if q.NeedsReverse() {
		reversePositions(selected)
	}

	items := make([]record.SequencedItem, 0, len(selected))
	for _, p := range selected {
		items = append(items, seq[p])
	}
	return items, nil
}

func reversePositions(s []int64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// AllSequenceIDs implements record.Manager. The result is sorted by the
// string form of the id for deterministic enumeration.
func (m *Manager) AllSequenceIDs(_ context.Context) ([]uuid.UUID, error) {
	ns := m.ds.namespace(m.config.ApplicationName)
	ns.mu.Lock()
	defer ns.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(ns.sequences))
	for id := range ns.sequences {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// DeleteRecord implements record.Manager. The notification log is append-only
// and keeps its entry; only the sequence record is removed.
func (m *Manager) DeleteRecord(_ context.Context, sequenceID uuid.UUID, position int64) error {
	ns := m.ds.namespace(m.config.ApplicationName)
	ns.mu.Lock()
	defer ns.mu.Unlock()

	delete(ns.sequences[sequenceID], position)
	return nil
}

// MaxNotificationID implements record.Manager.
func (m *Manager) MaxNotificationID(_ context.Context) (int64, error) {
	ns := m.ds.namespace(m.config.ApplicationName)
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.maxNotificationID, nil
}

// Notifications implements record.Manager.
func (m *Manager) Notifications(_ context.Context, start, stop int64) ([]record.Notification, error) {
	ns := m.ds.namespace(m.config.ApplicationName)
	ns.mu.Lock()
	defer ns.mu.Unlock()

	var out []record.Notification
	for id := start + 1; id <= stop; id++ {
		stored, ok := ns.notifications[id]
		if !ok {
			continue
		}
		out = append(out, record.Notification{
			ID:                stored.id,
			OriginatorID:      stored.item.SequenceID,
			OriginatorVersion: stored.item.Position,
			Topic:             stored.item.Topic,
			State:             stored.item.State,
		})
	}
	return out, nil
}

// MaxTrackingID implements record.Manager. The mark is scoped to this
// manager's pipeline; another pipeline's progress over the same upstream is
// invisible here.
func (m *Manager) MaxTrackingID(_ context.Context, upstreamApplication string) (int64, error) {
	ns := m.ds.namespace(m.config.ApplicationName)
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.trackingMax[trackingScope{upstreamApplication, m.config.PipelineID}], nil
}

// HasTracking implements record.Manager.
func (m *Manager) HasTracking(_ context.Context, upstreamApplication string, pipelineID int, notificationID int64) (bool, error) {
	ns := m.ds.namespace(m.config.ApplicationName)
	ns.mu.Lock()
	defer ns.mu.Unlock()

	_, ok := ns.tracking[upstreamApplication][trackingKey{pipelineID, notificationID}]
	return ok, nil
}

// WriteRecords implements record.Manager. Items and the tracking record
// commit together or not at all; a tracking record that already exists fails
// with ErrConflict before any item is stored, so re-applying an upstream
// notification leaves no duplicate side effect.
func (m *Manager) WriteRecords(ctx context.Context, items []record.SequencedItem, tracking *record.Tracking) error {
	ns := m.ds.namespace(m.config.ApplicationName)
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if err := m.validate(ns, items); err != nil {
		return err
	}
	if tracking != nil {
		key := trackingKey{tracking.PipelineID, tracking.NotificationID}
		if _, ok := ns.tracking[tracking.UpstreamApplication][key]; ok {
			return fmt.Errorf("notification %d from %q already tracked: %w",
				tracking.NotificationID, tracking.UpstreamApplication, record.ErrConflict)
		}
	}

	m.apply(ns, items)
	if tracking != nil {
		key := trackingKey{tracking.PipelineID, tracking.NotificationID}
		if ns.tracking[tracking.UpstreamApplication] == nil {
			ns.tracking[tracking.UpstreamApplication] = make(map[trackingKey]struct{})
		}
		ns.tracking[tracking.UpstreamApplication][key] = struct{}{}
		scope := trackingScope{tracking.UpstreamApplication, tracking.PipelineID}
		if tracking.NotificationID > ns.trackingMax[scope] {
			ns.trackingMax[scope] = tracking.NotificationID
		}
	}

	if m.config.Logger != nil {
		m.config.Logger.Debug(ctx, "records written",
			"application", m.config.ApplicationName,
			"item_count", len(items),
			"tracked", tracking != nil)
	}
	return nil
}
