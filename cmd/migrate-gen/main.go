// Command migrate-gen generates SQL migration files for the record store.
//
// Usage:
//
//	go run github.com/getseq/seqsourcing/cmd/migrate-gen -output migrations -filename init.sql
//
// Or with go generate:
//
//	//go:generate go run github.com/getseq/seqsourcing/cmd/migrate-gen -output migrations
//
// Generate migrations for different database adapters:
//
//	go run github.com/getseq/seqsourcing/cmd/migrate-gen -adapter postgres -output migrations
//	go run github.com/getseq/seqsourcing/cmd/migrate-gen -adapter sqlite -output migrations
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/getseq/seqsourcing/es/migrations"
)

func main() {
	var (
		adapter            = flag.String("adapter", "postgres", "Database adapter: postgres or sqlite")
		outputFolder       = flag.String("output", "migrations", "Output folder for migration file")
		outputFilename     = flag.String("filename", "", "Output filename (default: timestamp-based)")
		recordsTable       = flag.String("records-table", "sequenced_records", "Name of sequenced records table")
		notificationsTable = flag.String("notifications-table", "notification_records", "Name of notification log table")
		headsTable         = flag.String("heads-table", "notification_heads", "Name of notification counter table")
		trackingTable      = flag.String("tracking-table", "tracking_records", "Name of tracking records table")
	)

	flag.Parse()

	config := migrations.DefaultConfig()
	config.OutputFolder = *outputFolder
	config.RecordsTable = *recordsTable
	config.NotificationsTable = *notificationsTable
	config.NotificationHeadsTable = *headsTable
	config.TrackingTable = *trackingTable

	if *outputFilename != "" {
		config.OutputFilename = *outputFilename
	}

	var err error
	switch *adapter {
	case "postgres":
		err = migrations.GeneratePostgres(&config)
	case "sqlite":
		err = migrations.GenerateSQLite(&config)
	default:
		fmt.Fprintf(os.Stderr, "Error: unsupported adapter '%s'. Supported adapters are: postgres, sqlite\n", *adapter)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s migration: %s/%s\n", *adapter, config.OutputFolder, config.OutputFilename)
}
