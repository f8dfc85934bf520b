// Package seqsourcing provides the persistence core of an event sourcing
// framework: sequenced record storage with optimistic concurrency, a globally
// ordered notification log, and tracking records for exactly-once pipelined
// consumption.
//
// This package serves as the main entry point for the seqsourcing library.
// For the actual functionality, see the es package and its subpackages:
//
//	es                  - Domain event model, topics, event bus, mutator
//	es/record           - Record manager contract and range queries
//	es/adapters/memory  - Reference in-memory record manager
//	es/adapters/sqlite  - SQLite record manager
//	es/adapters/postgres - PostgreSQL record manager
//	es/pipeline         - Notification followers for downstream applications
//	es/migrations       - Schema generation for the SQL adapters
//
// Quick Start:
//
//  1. Create a record manager:
//     ds := memory.NewDatastore()
//     manager := memory.NewManager(ds, memory.NewConfig(memory.WithApplicationName("orders")))
//
//  2. Record sequenced items:
//     err := manager.Record(ctx, record.SequencedItem{SequenceID: id, Position: 0, Topic: topic, State: state})
//
//  3. Follow the notification log downstream:
//     follower := pipeline.NewFollower(upstream, downstream, pipeline.DefaultConfig())
//     follower.Run(ctx, myReactor)
//
// See the examples directory for complete working examples.
package seqsourcing

// Version returns the current version of the library.
func Version() string {
	return "0.1.0-dev"
}
