// Package retry creates uniquely named cloud resources with bounded retries.
//
// Each call runs a small state machine:
//
//	Attempting -> Success (terminal)
//	           -> FatalFailure (terminal)
//	           -> RetryableFailure -> Cleanup -> Delay -> Rename -> Attempting
//
// The loop is bounded by Policy.MaxRetries. Classification of failures is
// done by the creation function (see Transient); the loop only reads the tag.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Renamable is a resource configuration that carries its own name. WithName
// must return a copy and leave the receiver untouched.
type Renamable[C any] interface {
	ResourceName() string
	WithName(name string) C
}

// CreateFunc performs one blocking create-or-update call for cfg.
type CreateFunc[C, H any] func(ctx context.Context, cfg C) (H, error)

// CleanupFunc deletes the resource with the given name, blocking until done.
type CleanupFunc func(ctx context.Context, name string) error

// Creator holds what stays fixed across calls of Create.
type Creator struct {
	Policy   Policy
	Observer Observer

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewCreator returns a Creator for policy that reports to the given observers.
func NewCreator(policy Policy, observers ...Observer) *Creator {
	return &Creator{
		Policy:   policy,
		Observer: Observers(observers),
	}
}

// Create runs create for cfg until it succeeds, fails fatally, or the retry
// budget is spent. It returns the handle and the configuration of the
// successful attempt, so the caller learns the final name.
//
// Between attempts it deletes whatever may exist under the failed name
// (errors are reported to the observer and otherwise ignored), waits
// Policy.RetryDelay and renames the configuration with Policy.NextName.
// At most Policy.MaxRetries+1 attempts and Policy.MaxRetries cleanups run.
//
// Errors: a fatal error is returned as soon as it happens, wrapped with the
// attempt context. When the budget is spent the error wraps both
// ErrRetriesExhausted and the last failure.
func Create[C Renamable[C], H any](ctx context.Context, c *Creator, cfg C, create CreateFunc[C, H], cleanup CleanupFunc) (H, C, error) {
	var zero H

	p := c.Policy
	maxRetries := max(p.MaxRetries, 0)
	original := cfg.ResourceName()

	for attempt := 0; ; attempt++ {
		name := cfg.ResourceName()

		// 1. Pre-check: stop if the caller gave up.
		if err := ctx.Err(); err != nil {
			return zero, cfg, fmt.Errorf("creating %s %q cancelled before attempt %d: %w", p.Kind, name, attempt+1, err)
		}

		// 2. Attempt
		started := c.now()
		handle, err := create(ctx, cfg)
		record := Attempt{
			Kind:     p.Kind,
			Index:    attempt + 1,
			Name:     name,
			Err:      err,
			Started:  started,
			Duration: c.now().Sub(started),
		}

		if err == nil {
			record.Outcome = OutcomeSuccess
			c.attemptFinished(record)
			return handle, cfg, nil
		}

		// 3. Decision
		if !IsTransient(err) {
			record.Outcome = OutcomeFatal
			c.attemptFinished(record)
			return zero, cfg, fmt.Errorf("creating %s %q failed on attempt %d: %w", p.Kind, name, attempt+1, err)
		}

		record.Outcome = OutcomeRetryable
		if attempt >= maxRetries {
			c.attemptFinished(record)
			return zero, cfg, fmt.Errorf("creating %s %q failed after %d attempts: %w: %w", p.Kind, name, attempt+1, ErrRetriesExhausted, err)
		}

		record.WillRetry = true
		c.attemptFinished(record)

		// 4. Best-effort cleanup of whatever the failed attempt left behind
		if cleanup != nil {
			c.cleanupFinished(Cleanup{Kind: p.Kind, Name: name, Err: cleanup(ctx, name)})
		}

		// 5. Delay
		if err := c.sleep(ctx, p.RetryDelay); err != nil {
			return zero, cfg, fmt.Errorf("creating %s %q: retry wait aborted: %w", p.Kind, name, err)
		}

		// 6. Rename for the next attempt
		cfg = cfg.WithName(p.NextName(original, attempt+1, c.now()))
	}
}

func (c *Creator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Creator) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

func (c *Creator) attemptFinished(a Attempt) {
	if c.Observer != nil {
		c.Observer.AttemptFinished(a)
	}
}

func (c *Creator) cleanupFinished(cl Cleanup) {
	if c.Observer != nil {
		c.Observer.CleanupFinished(cl)
	}
}

// SleepContext waits for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
