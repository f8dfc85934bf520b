// Package pipeline provides tooling for driving downstream applications from
// an upstream notification log with exactly-once semantics. A Follower reads
// unseen notifications in batches, hands each one to a Reactor, and commits
// the reactor's output atomically with a tracking record so that replays of
// the same notification become no-ops.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getseq/seqsourcing/es"
	"github.com/getseq/seqsourcing/es/record"
)

var (
	// ErrNoFollowers indicates that no followers were provided to run.
	ErrNoFollowers = errors.New("no followers provided")

	// ErrFollowerStopped indicates the follower was stopped due to an error.
	ErrFollowerStopped = errors.New("follower stopped")
)

// Reactor consumes upstream notifications and produces items for the
// downstream application. Returning an empty slice is valid: the notification
// is still marked consumed, so the reactor will not see it again.
type Reactor interface {
	// Name returns the unique name of this reactor.
	Name() string

	// Handle processes a single upstream notification and returns the
	// sequenced items to write downstream. Return an error to stop
	// processing.
	Handle(ctx context.Context, notification record.Notification) ([]record.SequencedItem, error)
}

// Config configures a Follower.
type Config struct {
	// BatchSize is the number of notifications to read per batch
	BatchSize int

	// PollInterval is how long Run waits after draining the log before
	// polling again
	PollInterval time.Duration

	// Logger is an optional logger for observability
	Logger es.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:    100,
		PollInterval: time.Second,
	}
}

// Option is a functional option for configuring a Follower.
type Option func(*Config)

// WithBatchSize sets the number of notifications read per batch.
func WithBatchSize(n int) Option {
	return func(c *Config) {
		c.BatchSize = n
	}
}

// WithPollInterval sets the idle polling interval for Run.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		c.PollInterval = d
	}
}

// WithLogger sets a logger for the follower.
func WithLogger(logger es.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// NewConfig creates a follower configuration with functional options applied
// over the defaults.
func NewConfig(opts ...Option) Config {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// Follower pulls notifications from an upstream application's log and writes
// reactor output into a downstream application. Progress is stored in the
// downstream manager's tracking records, so a restarted follower resumes from
// the highest tracked notification id.
type Follower struct {
	upstream   record.Manager
	downstream record.Manager
	config     Config
}

// NewFollower creates a follower from an upstream and a downstream manager.
func NewFollower(upstream, downstream record.Manager, config Config) *Follower {
	return &Follower{
		upstream:   upstream,
		downstream: downstream,
		config:     config,
	}
}

// CatchUp processes unseen upstream notifications until the log is drained,
// then returns the number of notifications handled. Useful for tests, CLIs
// and request-scoped synchronization.
func (f *Follower) CatchUp(ctx context.Context, reactor Reactor) (int, error) {
	total := 0
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		n, err := f.processBatch(ctx, reactor)
		if err != nil {
			return total, err
		}
		total += n
		if n == 0 {
			return total, nil
		}
	}
}

// Run processes notifications until the context is canceled, polling at the
// configured interval when the upstream log is drained. Returns
// ErrFollowerStopped wrapping the cause if the reactor or a manager fails.
func (f *Follower) Run(ctx context.Context, reactor Reactor) error {
	for {
		n, err := f.processBatch(ctx, reactor)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFollowerStopped, err)
		}
		if n > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.config.PollInterval):
		}
	}
}

// processBatch reads one batch of unseen notifications and applies the
// reactor to each. Returns the number of notifications handled.
func (f *Follower) processBatch(ctx context.Context, reactor Reactor) (int, error) {
	upstreamName := f.upstream.ApplicationName()

	last, err := f.downstream.MaxTrackingID(ctx, upstreamName)
	if err != nil {
		return 0, fmt.Errorf("failed to read tracking position: %w", err)
	}

	batchSize := f.config.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultConfig().BatchSize
	}

	notifications, err := f.upstream.Notifications(ctx, last, last+int64(batchSize))
	if err != nil {
		return 0, fmt.Errorf("failed to read notifications: %w", err)
	}

	handled := 0
	for _, n := range notifications {
		select {
		case <-ctx.Done():
			return handled, ctx.Err()
		default:
		}

		// The max tracking id can lag individual tracked ids when
		// batches interleave across processes, so check each one.
		seen, err := f.downstream.HasTracking(ctx, upstreamName, f.downstream.PipelineID(), n.ID)
		if err != nil {
			return handled, fmt.Errorf("failed to check tracking record: %w", err)
		}
		if seen {
			continue
		}

		items, err := reactor.Handle(ctx, n)
		if err != nil {
			return handled, fmt.Errorf("reactor %q failed at notification %d: %w", reactor.Name(), n.ID, err)
		}

		tracking := record.Tracking{
			UpstreamApplication: upstreamName,
			PipelineID:          f.downstream.PipelineID(),
			NotificationID:      n.ID,
		}
		err = f.downstream.WriteRecords(ctx, items, &tracking)
		if err != nil {
			// Another process consumed this notification between the
			// HasTracking check and the write. Its output is committed,
			// so skip it here.
			if record.IsConflict(err) {
				if f.config.Logger != nil {
					f.config.Logger.Debug(ctx, "notification already consumed",
						"upstream", upstreamName,
						"notification_id", n.ID)
				}
				continue
			}
			return handled, fmt.Errorf("failed to write records for notification %d: %w", n.ID, err)
		}
		handled++
	}

	if handled > 0 && f.config.Logger != nil {
		f.config.Logger.Debug(ctx, "batch processed",
			"upstream", upstreamName,
			"downstream", f.downstream.ApplicationName(),
			"handled", handled)
	}
	return handled, nil
}
