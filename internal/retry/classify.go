package retry

import (
	"context"
	"errors"
	"strings"
)

// ErrRetriesExhausted is wrapped into the error returned once every allowed
// attempt failed with a transient error.
var ErrRetriesExhausted = errors.New("retries exhausted")

// TransientError tags a creation failure as safe to retry under a new name.
// Any error that is not (or does not wrap) a TransientError is fatal.
type TransientError struct {
	// Reason is a short, stable description of why the failure is transient,
	// e.g. the matched message pattern or the HTTP status.
	Reason string
	Err    error
}

// Error keeps the underlying message intact so callers see what the cloud reported.
func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient marks err as retryable. A nil err stays nil.
func Transient(reason string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Reason: reason, Err: err}
}

// IsTransient reports whether err (or anything it wraps) was marked retryable.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// Classifier turns a raw creation error into either a TransientError or the
// error itself (fatal). Classification happens at the boundary that talks to
// the cloud API, never inside the retry loop.
type Classifier interface {
	Classify(err error) error
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(err error) error

func (f ClassifierFunc) Classify(err error) error {
	return f(err)
}

// PatternClassifier marks errors whose message contains one of Patterns
// (case-insensitive) as transient.
//
// Matching on message text is tied to the wording of the service's errors;
// prefer status codes or error codes where the API provides them.
type PatternClassifier struct {
	Patterns []string
}

func (c PatternClassifier) Classify(err error) error {
	if err == nil || IsTransient(err) {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range c.Patterns {
		if strings.Contains(msg, strings.ToLower(pattern)) {
			return Transient(pattern, err)
		}
	}
	return err
}

var (
	// EndpointPatterns lists known transient endpoint provisioning failures.
	EndpointPatterns = PatternClassifier{Patterns: []string{
		"has not been created successfully",
		"endpoint is being deleted",
		"already exists",
		"provisioning failed",
		"resource conflict",
		"timeout",
	}}

	// DeploymentPatterns lists known transient deployment provisioning failures.
	DeploymentPatterns = PatternClassifier{Patterns: []string{
		"deployment failed",
		"image build failed",
		"timeout",
		"resource temporarily unavailable",
		"provisioning failed",
	}}
)

// Classified wraps a creation function so its errors pass through cl.
func Classified[C, H any](create CreateFunc[C, H], cl Classifier) CreateFunc[C, H] {
	return func(ctx context.Context, cfg C) (H, error) {
		handle, err := create(ctx, cfg)
		if err != nil {
			return handle, cl.Classify(err)
		}
		return handle, nil
	}
}
