// Package sqlite provides a SQLite-backed record manager.
//
// The package issues standard database/sql calls and is tested against the
// pure-Go modernc.org/sqlite driver; callers import the driver and hand the
// opened *sql.DB to NewManager. Schema comes from es/migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/getseq/seqsourcing/es"
	"github.com/getseq/seqsourcing/es/record"
)

// Config contains configuration for the SQLite record manager.
// Configuration is immutable after construction.
type Config struct {
	// ApplicationName is the namespace this manager reads and writes.
	ApplicationName string

	// PipelineID identifies the processing pipeline this manager belongs to.
	PipelineID int

	// Logger is an optional logger for observability.
	// If nil, logging is disabled (zero overhead).
	Logger es.Logger

	// RecordsTable is the name of the sequenced records table
	RecordsTable string

	// NotificationsTable is the name of the notification log table
	NotificationsTable string

	// NotificationHeadsTable is the name of the notification counter table
	NotificationHeadsTable string

	// TrackingTable is the name of the tracking records table
	TrackingTable string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ApplicationName:        "app",
		PipelineID:             0,
		Logger:                 nil,
		RecordsTable:           "sequenced_records",
		NotificationsTable:     "notification_records",
		NotificationHeadsTable: "notification_heads",
		TrackingTable:          "tracking_records",
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

// WithRecordsTable sets a custom sequenced records table name.
func WithRecordsTable(tableName string) Option {
	return func(c *Config) {
		c.RecordsTable = tableName
	}
}

// WithNotificationsTable sets a custom notification log table name.
func WithNotificationsTable(tableName string) Option {
	return func(c *Config) {
		c.NotificationsTable = tableName
	}
}

// WithNotificationHeadsTable sets a custom notification counter table name.
func WithNotificationHeadsTable(tableName string) Option {
	return func(c *Config) {
		c.NotificationHeadsTable = tableName
	}
}

// WithTrackingTable sets a custom tracking records table name.
func WithTrackingTable(tableName string) Option {
	return func(c *Config) {
		c.TrackingTable = tableName
	}
}

// NewConfig creates a manager configuration with functional options.
// It starts with the default configuration and applies the given options.
//
// Example:
//
//	config := sqlite.NewConfig(
//	    sqlite.WithApplicationName("orders"),
//	    sqlite.WithLogger(myLogger),
//	)
func NewConfig(opts ...Option) Config {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// Manager is a SQLite-backed record manager. Writes run in transactions
// managed internally, so item storage, notification append and tracking
// commit as one unit; SQLite's single-writer model serializes notification-id
// assignment, and the notification log's primary key is the safety net.
type Manager struct {
	db     *sql.DB
	config Config
}

var _ record.Manager = (*Manager)(nil)

// NewManager creates a SQLite record manager over an opened database.
func NewManager(db *sql.DB, config Config) *Manager {
	return &Manager{db: db, config: config}
}

// ApplicationName implements record.Manager.
func (m *Manager) ApplicationName() string { return m.config.ApplicationName }

// PipelineID implements record.Manager.
func (m *Manager) PipelineID() int { return m.config.PipelineID }

// Record implements record.Manager.
func (m *Manager) Record(ctx context.Context, items ...record.SequencedItem) error {
	if len(items) == 0 {
		return record.ErrNoItems
	}
	return m.inTx(ctx, func(tx *sql.Tx) error {
		return m.recordInTx(ctx, tx, items)
	})
}

func (m *Manager) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		//nolint:errcheck // Rollback error ignored: expected to fail if commit succeeds
		tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// recordInTx appends items and their notifications inside tx. The head row
// is read once, incremented per item, and written back at the end, so ids
// stay contiguous per namespace.
func (m *Manager) recordInTx(ctx context.Context, tx es.DBTX, items []record.SequencedItem) error {
	if len(items) == 0 {
		return nil
	}

	head, err := m.notificationHead(ctx, tx)
	if err != nil {
		return err
	}

	insertRecord := fmt.Sprintf(`
		INSERT INTO %s (application_name, sequence_id, position, topic, state)
		VALUES (?, ?, ?, ?, ?)
	`, m.config.RecordsTable)
	insertNotification := fmt.Sprintf(`
		INSERT INTO %s (application_name, notification_id, sequence_id, position, topic, state)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.config.NotificationsTable)

	for i := range items {
		item := &items[i]
		if item.Position < 0 {
			return fmt.Errorf("%w: %d", record.ErrInvalidPosition, item.Position)
		}

		_, err := tx.ExecContext(ctx, insertRecord,
			m.config.ApplicationName,
			item.SequenceID.String(),
			item.Position,
			item.Topic,
			item.State,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return m.conflictError(ctx, tx, item)
			}
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}

		head++
		_, err = tx.ExecContext(ctx, insertNotification,
			m.config.ApplicationName,
			head,
			item.SequenceID.String(),
			item.Position,
			item.Topic,
			item.State,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("notification id %d contention: %w", head, record.ErrConflict)
			}
			return fmt.Errorf("failed to insert notification %d: %w", head, err)
		}
	}

	upsertHead := fmt.Sprintf(`
		INSERT INTO %s (application_name, notification_id, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT (application_name)
		DO UPDATE SET notification_id = ?, updated_at = datetime('now')
	`, m.config.NotificationHeadsTable)
	if _, err := tx.ExecContext(ctx, upsertHead, m.config.ApplicationName, head, head); err != nil {
		return fmt.Errorf("failed to update notification head: %w", err)
	}

	if m.config.Logger != nil {
		m.config.Logger.Info(ctx, "items recorded",
			"application", m.config.ApplicationName,
			"item_count", len(items),
			"max_notification_id", head)
	}
	return nil
}

// notificationHead returns the current highest notification id, 0 when the
// namespace has no notifications yet.
func (m *Manager) notificationHead(ctx context.Context, tx es.DBTX) (int64, error) {
	query := fmt.Sprintf(`
		SELECT notification_id
		FROM %s
		WHERE application_name = ?
	`, m.config.NotificationHeadsTable)

	var head int64
	err := tx.QueryRowContext(ctx, query, m.config.ApplicationName).Scan(&head)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read notification head: %w", err)
	}
	return head, nil
}

// conflictError builds a ConflictError carrying the sequence's current
// record count.
func (m *Manager) conflictError(ctx context.Context, tx es.DBTX, item *record.SequencedItem) error {
	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s
		WHERE application_name = ? AND sequence_id = ?
	`, m.config.RecordsTable)

	var count int64
	if err := tx.QueryRowContext(ctx, countQuery, m.config.ApplicationName, item.SequenceID.String()).Scan(&count); err != nil {
		count = 0
	}

	if m.config.Logger != nil {
		m.config.Logger.Error(ctx, "position conflict",
			"application", m.config.ApplicationName,
			"sequence_id", item.SequenceID,
			"position", item.Position)
	}
	return &record.ConflictError{
		SequenceID:  item.SequenceID,
		Position:    item.Position,
		RecordCount: count,
	}
}

// GetRecord implements record.Manager.
func (m *Manager) GetRecord(ctx context.Context, sequenceID uuid.UUID, position int64) (record.SequencedItem, error) {
	query := fmt.Sprintf(`
		SELECT sequence_id, position, topic, state
		FROM %s
		WHERE application_name = ? AND sequence_id = ? AND position = ?
	`, m.config.RecordsTable)

	row := m.db.QueryRowContext(ctx, query, m.config.ApplicationName, sequenceID.String(), position)
	item, err := scanItem(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return record.SequencedItem{}, fmt.Errorf("%w: application %q sequence %s position %d",
				record.ErrNotFound, m.config.ApplicationName, sequenceID, position)
		}
		return record.SequencedItem{}, fmt.Errorf("failed to get record: %w", err)
	}
	return item, nil
}

// GetRecords implements record.Manager. Bounds translate directly to WHERE
// clauses: ANDing gt/gte (and lt/lte) is equivalent to taking the tightest
// bound of each pair.
func (m *Manager) GetRecords(ctx context.Context, sequenceID uuid.UUID, q record.RangeQuery) ([]record.SequencedItem, error) {
	query := fmt.Sprintf(`
		SELECT sequence_id, position, topic, state
		FROM %s
		WHERE application_name = ? AND sequence_id = ?
	`, m.config.RecordsTable)
	args := []interface{}{m.config.ApplicationName, sequenceID.String()}

	if q.Gt != nil {
		query += " AND position > ?"
		args = append(args, *q.Gt)
	}
	if q.Gte != nil {
		query += " AND position >= ?"
		args = append(args, *q.Gte)
	}
	if q.Lt != nil {
		query += " AND position < ?"
		args = append(args, *q.Lt)
	}
	if q.Lte != nil {
		query += " AND position <= ?"
		args = append(args, *q.Lte)
	}

	if q.QueryDescending {
		query += " ORDER BY position DESC"
	} else {
		query += " ORDER BY position ASC"
	}
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var items []record.SequencedItem
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if q.NeedsReverse() {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
	return items, nil
}

// scanItem reads one sequenced item from a row scanner.
func scanItem(scan func(dest ...interface{}) error) (record.SequencedItem, error) {
	var item record.SequencedItem
	var sequenceID string
	if err := scan(&sequenceID, &item.Position, &item.Topic, &item.State); err != nil {
		return record.SequencedItem{}, err
	}
	parsed, err := uuid.Parse(sequenceID)
	if err != nil {
		return record.SequencedItem{}, fmt.Errorf("failed to parse sequence id: %w", err)
	}
	item.SequenceID = parsed
	return item, nil
}

// AllSequenceIDs implements record.Manager.
func (m *Manager) AllSequenceIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT sequence_id
		FROM %s
		WHERE application_name = ?
		ORDER BY sequence_id ASC
	`, m.config.RecordsTable)

	rows, err := m.db.QueryContext(ctx, query, m.config.ApplicationName)
	if err != nil {
		return nil, fmt.Errorf("failed to query sequence ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan sequence id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sequence id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ids, nil
}

// DeleteRecord implements record.Manager.
func (m *Manager) DeleteRecord(ctx context.Context, sequenceID uuid.UUID, position int64) error {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE application_name = ? AND sequence_id = ? AND position = ?
	`, m.config.RecordsTable)

	if _, err := m.db.ExecContext(ctx, query, m.config.ApplicationName, sequenceID.String(), position); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// MaxNotificationID implements record.Manager.
func (m *Manager) MaxNotificationID(ctx context.Context) (int64, error) {
	return m.notificationHead(ctx, m.db)
}

// Notifications implements record.Manager.
func (m *Manager) Notifications(ctx context.Context, start, stop int64) ([]record.Notification, error) {
	query := fmt.Sprintf(`
		SELECT notification_id, sequence_id, position, topic, state
		FROM %s
		WHERE application_name = ? AND notification_id > ? AND notification_id <= ?
		ORDER BY notification_id ASC
	`, m.config.NotificationsTable)

	rows, err := m.db.QueryContext(ctx, query, m.config.ApplicationName, start, stop)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []record.Notification
	for rows.Next() {
		var n record.Notification
		var originatorID string
		if err := rows.Scan(&n.ID, &originatorID, &n.OriginatorVersion, &n.Topic, &n.State); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		parsed, err := uuid.Parse(originatorID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse originator id: %w", err)
		}
		n.OriginatorID = parsed
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// MaxTrackingID implements record.Manager. The mark is scoped to this
// manager's pipeline; another pipeline's progress over the same upstream is
// invisible here.
func (m *Manager) MaxTrackingID(ctx context.Context, upstreamApplication string) (int64, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(MAX(notification_id), 0)
		FROM %s
		WHERE application_name = ? AND upstream_application_name = ? AND pipeline_id = ?
	`, m.config.TrackingTable)

	var maxID int64
	err := m.db.QueryRowContext(ctx, query,
		m.config.ApplicationName, upstreamApplication, m.config.PipelineID).Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("failed to read max tracking id: %w", err)
	}
	return maxID, nil
}

// HasTracking implements record.Manager.
func (m *Manager) HasTracking(ctx context.Context, upstreamApplication string, pipelineID int, notificationID int64) (bool, error) {
	query := fmt.Sprintf(`
		SELECT 1
		FROM %s
		WHERE application_name = ? AND upstream_application_name = ?
		  AND pipeline_id = ? AND notification_id = ?
	`, m.config.TrackingTable)

	var one int
	err := m.db.QueryRowContext(ctx, query,
		m.config.ApplicationName, upstreamApplication, pipelineID, notificationID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check tracking record: %w", err)
	}
	return true, nil
}

// WriteRecords implements record.Manager.
func (m *Manager) WriteRecords(ctx context.Context, items []record.SequencedItem, tracking *record.Tracking) error {
	return m.inTx(ctx, func(tx *sql.Tx) error {
		if err := m.recordInTx(ctx, tx, items); err != nil {
			return err
		}
		if tracking == nil {
			return nil
		}

		insert := fmt.Sprintf(`
			INSERT INTO %s (application_name, upstream_application_name, pipeline_id, notification_id)
			VALUES (?, ?, ?, ?)
		`, m.config.TrackingTable)
		_, err := tx.ExecContext(ctx, insert,
			m.config.ApplicationName,
			tracking.UpstreamApplication,
			tracking.PipelineID,
			tracking.NotificationID,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("notification %d from %q already tracked: %w",
					tracking.NotificationID, tracking.UpstreamApplication, record.ErrConflict)
			}
			return fmt.Errorf("failed to insert tracking record: %w", err)
		}
		return nil
	})
}

// IsUniqueViolation checks if an error is a SQLite unique constraint
// violation. Exported for testing purposes.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "UNIQUE constraint failed") ||
		strings.Contains(errMsg, "unique constraint") ||
		strings.Contains(errMsg, "constraint failed")
}
