package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// FollowerRunner pairs a follower with its reactor.
type FollowerRunner struct {
	Follower *Follower
	Reactor  Reactor
}

// Runner orchestrates multiple followers concurrently. It is storage-agnostic
// and works with any record manager implementation.
//
// Example:
//
//	runner := pipeline.NewRunner()
//	err := runner.Run(ctx, []pipeline.FollowerRunner{
//	    {Follower: orders, Reactor: &Reservations{}},
//	    {Follower: payments, Reactor: &Receipts{}},
//	})
type Runner struct{}

// NewRunner creates a new follower runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Run runs multiple followers concurrently until the context is canceled.
// Each follower runs in its own goroutine. If a follower returns an error,
// all others are canceled and the error is returned, ensuring fail-fast
// behavior.
//
// This method is safe to call from CLIs and does not assume single-process
// ownership. Coordination happens via the downstream tracking records.
func (r *Runner) Run(ctx context.Context, runners []FollowerRunner) error {
	if len(runners) == 0 {
		return ErrNoFollowers
	}

	for i, runner := range runners {
		if runner.Follower == nil {
			return fmt.Errorf("follower at index %d is nil", i)
		}
		if runner.Reactor == nil {
			return fmt.Errorf("reactor at index %d is nil", i)
		}
	}

	// Create a context that we can cancel if any follower fails
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errChan := make(chan error, len(runners))

	for _, runner := range runners {
		wg.Add(1)
		go func(fr FollowerRunner) {
			defer wg.Done()

			err := fr.Follower.Run(ctx, fr.Reactor)

			// Only report errors that aren't from context cancellation
			if err != nil && !errors.Is(err, context.Canceled) {
				errChan <- fmt.Errorf("follower %q failed: %w", fr.Reactor.Name(), err)
			}
		}(runner)
	}

	go func() {
		wg.Wait()
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			cancel()
			return err
		}
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
