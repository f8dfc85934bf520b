// Package es provides core event sourcing infrastructure.
//
// # Overview
//
// This package defines the fundamental types for event-sourced applications:
//   - DomainEvent: immutable attribute-carrying domain events
//   - Topic: string identifiers connecting stored state to Go types
//   - Bus: synchronous publish/subscribe for in-process event distribution
//   - Mutator: per-event-type dispatch for folding events into state
//   - DBTX: database transaction abstraction for SQL adapters
//
// Persistence lives in the record package and its adapters; pipelined
// cross-application consumption lives in the pipeline package.
//
// # Design Philosophy
//
// Clean Architecture: Core types are database-agnostic. Infrastructure
// concerns (like PostgreSQL) are isolated in adapter packages.
//
// Immutability: Domain events are constructed once with all their attributes
// and never modified. Equality, hashing, and formatting are defined over the
// attribute map, so two events with the same type and attributes are
// interchangeable.
//
// Explicit registration: Topics map qualified names to registered Go types.
// Nothing is resolved by scanning or reflection over unregistered packages;
// a type must be registered before its topic can be resolved.
//
// # Quick Start
//
// 1. Define and register an event type:
//
//	type OrderCreated struct {
//	    es.DomainEvent
//	}
//
//	func init() {
//	    es.RegisterTopic(OrderCreated{})
//	}
//
// 2. Construct events:
//
//	ev, err := es.NewVersionedEntityEvent(orderID, 0, es.Attrs{"sku": "A-1"})
//
// 3. Record them (see the record package and its adapters):
//
//	manager := memory.NewManager(datastore, memory.NewConfig(
//	    memory.WithApplicationName("orders"),
//	))
//	err := manager.Record(ctx, item)
//
// 4. Fold events into state:
//
//	mutator := es.NewMutator()
//	mutator.Register(OrderCreated{}, applyCreated)
//	state, err := mutator.Fold(nil, events...)
//
// # Optimistic Concurrency
//
// Record managers enforce uniqueness of (sequence, position). Writing an
// event at an occupied position fails the whole batch with a ConflictError,
// which prevents race conditions when multiple processes modify the same
// entity. Retry by re-reading the sequence and rebasing.
//
// # Notifications and Pipelines
//
// Every recorded item also lands in a per-application notification log with
// contiguous ids starting at 1. Downstream applications follow the log with
// the pipeline package, which pairs each consumed notification with a
// tracking record in the same transaction for exactly-once processing.
package es
