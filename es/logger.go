package es

import "context"

// Logger is a minimal structured logging interface for observability.
// It is optional everywhere it appears: a nil logger disables logging with
// zero overhead. Implement it to plug in your preferred logging library.
type Logger interface {
	// Debug logs verbose operational detail.
	Debug(ctx context.Context, msg string, keyvals ...interface{})

	// Info logs significant events during normal operation.
	Info(ctx context.Context, msg string, keyvals ...interface{})

	// Error logs failures that require attention.
	Error(ctx context.Context, msg string, keyvals ...interface{})
}

// NoOpLogger discards everything. It can stand in when a non-nil Logger is
// required but no logging is desired.
type NoOpLogger struct{}

// Debug implements Logger.
func (NoOpLogger) Debug(_ context.Context, _ string, _ ...interface{}) {}

// Info implements Logger.
func (NoOpLogger) Info(_ context.Context, _ string, _ ...interface{}) {}

// Error implements Logger.
func (NoOpLogger) Error(_ context.Context, _ string, _ ...interface{}) {}

var _ Logger = NoOpLogger{}
