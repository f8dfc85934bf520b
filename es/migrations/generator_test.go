package migrations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGeneratePostgres(t *testing.T) {
	tmpDir := t.TempDir()

	config := Config{
		OutputFolder:           tmpDir,
		OutputFilename:         "test_migration.sql",
		RecordsTable:           "sequenced_records",
		NotificationsTable:     "notification_records",
		NotificationHeadsTable: "notification_heads",
		TrackingTable:          "tracking_records",
	}

	err := GeneratePostgres(&config)
	if err != nil {
		t.Fatalf("GeneratePostgres failed: %v", err)
	}

	// Verify file was created
	outputPath := filepath.Join(tmpDir, config.OutputFilename)
	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}

	sql := string(content)

	// Verify essential components are present
	requiredStrings := []string{
		"CREATE TABLE IF NOT EXISTS sequenced_records",
		"CREATE TABLE IF NOT EXISTS notification_records",
		"CREATE TABLE IF NOT EXISTS notification_heads",
		"CREATE TABLE IF NOT EXISTS tracking_records",
		"application_name TEXT NOT NULL",
		"sequence_id UUID NOT NULL",
		"position BIGINT NOT NULL",
		"topic TEXT NOT NULL",
		"state BYTEA NOT NULL",
		"notification_id BIGINT NOT NULL",
		"upstream_application_name TEXT NOT NULL",
		"pipeline_id INT NOT NULL",
		"PRIMARY KEY (application_name, sequence_id, position)",
		"PRIMARY KEY (application_name, notification_id)",
		"PRIMARY KEY (application_name, upstream_application_name, pipeline_id, notification_id)",
		"updated_at TIMESTAMPTZ NOT NULL",
		"idx_notification_heads_updated",
	}

	for _, required := range requiredStrings {
		if !strings.Contains(sql, required) {
			t.Errorf("Generated SQL missing required string: %s", required)
		}
	}
}

func TestGeneratePostgres_CustomTableNames(t *testing.T) {
	tmpDir := t.TempDir()

	config := Config{
		OutputFolder:           tmpDir,
		OutputFilename:         "custom_migration.sql",
		RecordsTable:           "custom_records",
		NotificationsTable:     "custom_notifications",
		NotificationHeadsTable: "custom_heads",
		TrackingTable:          "custom_tracking",
	}

	err := GeneratePostgres(&config)
	if err != nil {
		t.Fatalf("GeneratePostgres failed: %v", err)
	}

	outputPath := filepath.Join(tmpDir, config.OutputFilename)
	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}

	sql := string(content)

	// Verify custom table names are used
	for _, table := range []string{"custom_records", "custom_notifications", "custom_heads", "custom_tracking"} {
		if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("Custom table name %s not used", table)
		}
	}
}

func TestGenerateSQLite(t *testing.T) {
	tmpDir := t.TempDir()

	config := DefaultConfig()
	config.OutputFolder = tmpDir
	config.OutputFilename = "sqlite_migration.sql"

	err := GenerateSQLite(&config)
	if err != nil {
		t.Fatalf("GenerateSQLite failed: %v", err)
	}

	outputPath := filepath.Join(tmpDir, config.OutputFilename)
	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}

	sql := string(content)

	// SQLite uses TEXT uuids, INTEGER positions and BLOB state
	requiredStrings := []string{
		"CREATE TABLE IF NOT EXISTS sequenced_records",
		"sequence_id TEXT NOT NULL",
		"position INTEGER NOT NULL",
		"state BLOB NOT NULL",
		"CREATE TABLE IF NOT EXISTS notification_heads",
		"CREATE TABLE IF NOT EXISTS tracking_records",
	}

	for _, required := range requiredStrings {
		if !strings.Contains(sql, required) {
			t.Errorf("Generated SQL missing required string: %s", required)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.RecordsTable != "sequenced_records" {
		t.Errorf("RecordsTable = %q, want sequenced_records", config.RecordsTable)
	}
	if config.OutputFolder != "migrations" {
		t.Errorf("OutputFolder = %q, want migrations", config.OutputFolder)
	}
	if !strings.HasSuffix(config.OutputFilename, "_init_record_store.sql") {
		t.Errorf("OutputFilename = %q, want timestamped _init_record_store.sql", config.OutputFilename)
	}
}
