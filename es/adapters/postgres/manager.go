// Package postgres provides a PostgreSQL-backed record manager.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/getseq/seqsourcing/es"
	"github.com/getseq/seqsourcing/es/record"
)

// Config contains configuration for the Postgres record manager.
// Configuration is immutable after construction.
type Config struct {
	// ApplicationName is the namespace this manager reads and writes.
	ApplicationName string

	// PipelineID identifies the processing pipeline this manager belongs to.
	PipelineID int

	// Logger is an optional logger for observability.
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

// NewConfig creates a manager configuration with functional options applied
// over the defaults.
func NewConfig(opts ...Option) Config {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// Manager is a PostgreSQL-backed record manager. Notification ids are
// assigned by locking the namespace's head row (SELECT ... FOR UPDATE) inside
// the same transaction as the inserts, which serializes concurrent writers on
// the counter without skipping or duplicating ids; the notification log's
// primary key is the safety net for the first write of a namespace.
type Manager struct {
	db     *sql.DB
	config Config
}

var _ record.Manager = (*Manager)(nil)

// NewManager creates a Postgres record manager over an opened database.
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

func (m *Manager) recordInTx(ctx context.Context, tx es.DBTX, items []record.SequencedItem) error {
	if len(items) == 0 {
		return nil
	}

	head, err := m.lockNotificationHead(ctx, tx)
	if err != nil {
		return err
	}

	insertRecord := fmt.Sprintf(`
		INSERT INTO %s (application_name, sequence_id, position, topic, state)
		VALUES ($1, $2, $3, $4, $5)
	`, m.config.RecordsTable)
	insertNotification := fmt.Sprintf(`
		INSERT INTO %s (application_name, notification_id, sequence_id, position, topic, state)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.config.NotificationsTable)

	for i := range items {
		item := &items[i]
		if item.Position < 0 {
			return fmt.Errorf("%w: %d", record.ErrInvalidPosition, item.Position)
		}

		_, err := tx.ExecContext(ctx, insertRecord,
			m.config.ApplicationName,
			item.SequenceID,
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
			item.SequenceID,
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
		VALUES ($1, $2, NOW())
		ON CONFLICT (application_name)
		DO UPDATE SET notification_id = $2, updated_at = NOW()
	`, m.config.NotificationHeadsTable)
	if _, err := tx.ExecContext(ctx, upsertHead, m.config.ApplicationName, head); err != nil {
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

// lockNotificationHead reads the namespace's head row under a row lock,
// returning 0 when the namespace has no notifications yet.
func (m *Manager) lockNotificationHead(ctx context.Context, tx es.DBTX) (int64, error) {
	query := fmt.Sprintf(`
		SELECT notification_id
		FROM %s
		WHERE application_name = $1
		FOR UPDATE
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

func (m *Manager) conflictError(ctx context.Context, tx es.DBTX, item *record.SequencedItem) error {
	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s
		WHERE application_name = $1 AND sequence_id = $2
	`, m.config.RecordsTable)

	var count int64
	if err := tx.QueryRowContext(ctx, countQuery, m.config.ApplicationName, item.SequenceID).Scan(&count); err != nil {
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
		WHERE application_name = $1 AND sequence_id = $2 AND position = $3
	`, m.config.RecordsTable)

	var item record.SequencedItem
	err := m.db.QueryRowContext(ctx, query, m.config.ApplicationName, sequenceID, position).
		Scan(&item.SequenceID, &item.Position, &item.Topic, &item.State)
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
		WHERE application_name = $1 AND sequence_id = $2
	`, m.config.RecordsTable)
	args := []interface{}{m.config.ApplicationName, sequenceID}

	appendBound := func(op string, v int64) {
		args = append(args, v)
		query += fmt.Sprintf(" AND position %s $%d", op, len(args))
	}
	if q.Gt != nil {
		appendBound(">", *q.Gt)
	}
	if q.Gte != nil {
		appendBound(">=", *q.Gte)
	}
	if q.Lt != nil {
		appendBound("<", *q.Lt)
	}
	if q.Lte != nil {
		appendBound("<=", *q.Lte)
	}

	if q.QueryDescending {
		query += " ORDER BY position DESC"
	} else {
		query += " ORDER BY position ASC"
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var items []record.SequencedItem
	for rows.Next() {
		var item record.SequencedItem
		if err := rows.Scan(&item.SequenceID, &item.Position, &item.Topic, &item.State); err != nil {
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

// AllSequenceIDs implements record.Manager.
func (m *Manager) AllSequenceIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT sequence_id
		FROM %s
		WHERE application_name = $1
		ORDER BY sequence_id ASC
	`, m.config.RecordsTable)

	rows, err := m.db.QueryContext(ctx, query, m.config.ApplicationName)
	if err != nil {
		return nil, fmt.Errorf("failed to query sequence ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan sequence id: %w", err)
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
		WHERE application_name = $1 AND sequence_id = $2 AND position = $3
	`, m.config.RecordsTable)

	if _, err := m.db.ExecContext(ctx, query, m.config.ApplicationName, sequenceID, position); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// MaxNotificationID implements record.Manager.
func (m *Manager) MaxNotificationID(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`
		SELECT notification_id
		FROM %s
		WHERE application_name = $1
	`, m.config.NotificationHeadsTable)

	var head int64
	err := m.db.QueryRowContext(ctx, query, m.config.ApplicationName).Scan(&head)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read notification head: %w", err)
	}
	return head, nil
}

// Notifications implements record.Manager.
func (m *Manager) Notifications(ctx context.Context, start, stop int64) ([]record.Notification, error) {
	query := fmt.Sprintf(`
		SELECT notification_id, sequence_id, position, topic, state
		FROM %s
		WHERE application_name = $1 AND notification_id > $2 AND notification_id <= $3
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
		if err := rows.Scan(&n.ID, &n.OriginatorID, &n.OriginatorVersion, &n.Topic, &n.State); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
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
		WHERE application_name = $1 AND upstream_application_name = $2 AND pipeline_id = $3
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
		WHERE application_name = $1 AND upstream_application_name = $2
		  AND pipeline_id = $3 AND notification_id = $4
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
			VALUES ($1, $2, $3, $4)
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

// IsUniqueViolation checks if an error is a PostgreSQL unique constraint
// violation. Exported for testing purposes.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	return false
}
