package migrations

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config configures schema generation.
type Config struct {
	// OutputFolder is the directory where the migration file will be written
	OutputFolder string

	// OutputFilename is the name of the migration file
	OutputFilename string

	// RecordsTable is the name of the sequenced records table
	RecordsTable string

	// NotificationsTable is the name of the notification log table
	NotificationsTable string

	// NotificationHeadsTable is the name of the per-namespace notification
	// counter table
	NotificationHeadsTable string

	// TrackingTable is the name of the tracking records table
	TrackingTable string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:           "migrations",
		OutputFilename:         fmt.Sprintf("%s_init_record_store.sql", timestamp),
		RecordsTable:           "sequenced_records",
		NotificationsTable:     "notification_records",
		NotificationHeadsTable: "notification_heads",
		TrackingTable:          "tracking_records",
	}
}

// GeneratePostgres generates a PostgreSQL migration file.
func GeneratePostgres(config *Config) error {
	return writeMigration(config, PostgresSQL(config))
}

// GenerateSQLite generates a SQLite migration file.
func GenerateSQLite(config *Config) error {
	return writeMigration(config, SQLiteSQL(config))
}

func writeMigration(config *Config, sql string) error {
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}
	return nil
}

// PostgresSQL returns the PostgreSQL schema as a string. Exported so tests
// and tools can apply the schema directly without a file round trip.
func PostgresSQL(config *Config) string {
	return fmt.Sprintf(`-- Record Store Infrastructure Migration
-- Generated: %s

-- Sequenced records store one entry per (sequence, position) in append-only
-- fashion; the primary key is the optimistic concurrency gate
CREATE TABLE IF NOT EXISTS %s (
    application_name TEXT NOT NULL,
    sequence_id UUID NOT NULL,
    position BIGINT NOT NULL,
    topic TEXT NOT NULL,
    state BYTEA NOT NULL,

    PRIMARY KEY (application_name, sequence_id, position)
);

-- Notification log: one globally ordered entry per committed write,
-- numbered contiguously per application namespace
CREATE TABLE IF NOT EXISTS %s (
    application_name TEXT NOT NULL,
    notification_id BIGINT NOT NULL,
    sequence_id UUID NOT NULL,
    position BIGINT NOT NULL,
    topic TEXT NOT NULL,
    state BYTEA NOT NULL,

    PRIMARY KEY (application_name, notification_id)
);

-- Notification heads hold the highest assigned notification id per
-- namespace; updated in the same transaction as the notification insert,
-- giving a single transactional increment
CREATE TABLE IF NOT EXISTS %s (
    application_name TEXT PRIMARY KEY,
    notification_id BIGINT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Index for observability
CREATE INDEX IF NOT EXISTS idx_%s_updated
    ON %s (updated_at);

-- Tracking records mark consumed upstream notifications per pipeline
CREATE TABLE IF NOT EXISTS %s (
    application_name TEXT NOT NULL,
    upstream_application_name TEXT NOT NULL,
    pipeline_id INT NOT NULL,
    notification_id BIGINT NOT NULL,

    PRIMARY KEY (application_name, upstream_application_name, pipeline_id, notification_id)
);
`,
		time.Now().Format(time.RFC3339),
		config.RecordsTable,
		config.NotificationsTable,
		config.NotificationHeadsTable,
		config.NotificationHeadsTable, config.NotificationHeadsTable,
		config.TrackingTable,
	)
}

// SQLiteSQL returns the SQLite schema as a string.
func SQLiteSQL(config *Config) string {
	return fmt.Sprintf(`-- Record Store Infrastructure Migration for SQLite
-- Generated: %s

-- Sequenced records store one entry per (sequence, position) in append-only
-- fashion; the primary key is the optimistic concurrency gate
CREATE TABLE IF NOT EXISTS %s (
    application_name TEXT NOT NULL,
    sequence_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    topic TEXT NOT NULL,
    state BLOB NOT NULL,

    PRIMARY KEY (application_name, sequence_id, position)
);

-- Notification log: one globally ordered entry per committed write,
-- numbered contiguously per application namespace
CREATE TABLE IF NOT EXISTS %s (
    application_name TEXT NOT NULL,
    notification_id INTEGER NOT NULL,
    sequence_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    topic TEXT NOT NULL,
    state BLOB NOT NULL,

    PRIMARY KEY (application_name, notification_id)
);

-- Notification heads hold the highest assigned notification id per
-- namespace; updated in the same transaction as the notification insert,
-- giving a single transactional increment
CREATE TABLE IF NOT EXISTS %s (
    application_name TEXT PRIMARY KEY,
    notification_id INTEGER NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Index for observability
CREATE INDEX IF NOT EXISTS idx_%s_updated
    ON %s (updated_at);

-- Tracking records mark consumed upstream notifications per pipeline
CREATE TABLE IF NOT EXISTS %s (
    application_name TEXT NOT NULL,
    upstream_application_name TEXT NOT NULL,
    pipeline_id INTEGER NOT NULL,
    notification_id INTEGER NOT NULL,

    PRIMARY KEY (application_name, upstream_application_name, pipeline_id, notification_id)
);
`,
		time.Now().Format(time.RFC3339),
		config.RecordsTable,
		config.NotificationsTable,
		config.NotificationHeadsTable,
		config.NotificationHeadsTable, config.NotificationHeadsTable,
		config.TrackingTable,
	)
}
