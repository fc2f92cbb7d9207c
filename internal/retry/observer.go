package retry

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/naming"
)

// Outcome is the classification of a single creation attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Attempt records one pass through the retry loop.
type Attempt struct {
	Kind naming.Kind
	// Index is 1-based.
	Index    int
	Name     string
	Outcome  Outcome
	Err      error
	Started  time.Time
	Duration time.Duration
	// WillRetry is true when another attempt follows this one.
	WillRetry bool
}

// Cleanup records one best-effort delete issued between attempts.
type Cleanup struct {
	Kind naming.Kind
	Name string
	Err  error
}

// Observer receives retry events synchronously from the retry loop.
type Observer interface {
	AttemptFinished(a Attempt)
	CleanupFinished(c Cleanup)
}

// Observers fans events out to every non-nil member.
type Observers []Observer

func (o Observers) AttemptFinished(a Attempt) {
	for _, obs := range o {
		if obs != nil {
			obs.AttemptFinished(a)
		}
	}
}

func (o Observers) CleanupFinished(c Cleanup) {
	for _, obs := range o {
		if obs != nil {
			obs.CleanupFinished(c)
		}
	}
}

// LogObserver writes retry events to a structured logger.
type LogObserver struct {
	Logger *slog.Logger
}

func (l LogObserver) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l LogObserver) AttemptFinished(a Attempt) {
	log := l.logger().With(
		"resource_kind", a.Kind,
		"resource_name", a.Name,
		"attempt", a.Index,
		"outcome", a.Outcome.String(),
		"duration", a.Duration.Round(time.Millisecond),
	)

	switch {
	case a.Outcome == OutcomeSuccess:
		log.Info("Resource created successfully")
	case a.WillRetry:
		log.Warn("Transient creation failure, scheduling cleanup and retry", "error", a.Err)
	default:
		log.Error("Resource creation failed; giving up", "error", a.Err)
	}
}

func (l LogObserver) CleanupFinished(c Cleanup) {
	log := l.logger().With("resource_kind", c.Kind, "resource_name", c.Name)
	if c.Err != nil {
		// The retry continues; the abandoned resource may need a sweep.
		log.Warn("Cleanup of abandoned resource failed; continuing", "error", c.Err)
		return
	}
	log.Info("Abandoned resource cleaned up")
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	attempts []Attempt
	cleanups []Cleanup
}

func (r *Recorder) AttemptFinished(a Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
}

func (r *Recorder) CleanupFinished(c Cleanup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanups = append(r.cleanups, c)
}

// Attempts returns a copy of the recorded attempts in order.
func (r *Recorder) Attempts() []Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.attempts)
}

// Cleanups returns a copy of the recorded cleanups in order.
func (r *Recorder) Cleanups() []Cleanup {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.cleanups)
}

// AttemptsFor returns the recorded attempts of one resource kind.
func (r *Recorder) AttemptsFor(kind naming.Kind) []Attempt {
	var out []Attempt
	for _, a := range r.Attempts() {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}
