package livescore

import (
	"time"

	crerr "github.com/cockroachdb/errors"
)

var (
	// ErrUpstreamUnavailable marks transient network or provider failures.
	ErrUpstreamUnavailable = crerr.New("upstream unavailable")
	// ErrRateLimited marks requests rejected by the provider or the local budget.
	ErrRateLimited = crerr.New("rate limited")
	// ErrMalformedSnapshot marks payloads that do not fit the snapshot schema.
	ErrMalformedSnapshot = crerr.New("malformed snapshot")
	// ErrPublishFailure marks a batch the publisher could not deliver.
	ErrPublishFailure = crerr.New("publish failure")
)

type retryAfterError struct {
	cause error
	after time.Duration
}

func (e *retryAfterError) Error() string { return e.cause.Error() }
func (e *retryAfterError) Unwrap() error { return e.cause }

// RateLimited marks err as ErrRateLimited and records how long the caller
// should wait before asking again. A non-positive wait leaves the cooldown to
// the scheduler.
func RateLimited(err error, retryAfter time.Duration) error {
	if err == nil {
		err = ErrRateLimited
	}
	marked := crerr.Mark(err, ErrRateLimited)
	if retryAfter <= 0 {
		return marked
	}
	return &retryAfterError{cause: marked, after: retryAfter}
}

// RetryAfter extracts the wait recorded by RateLimited.
func RetryAfter(err error) (time.Duration, bool) {
	var target *retryAfterError
	if crerr.As(err, &target) {
		return target.after, true
	}
	return 0, false
}

// Unavailable marks err as a transient upstream failure.
func Unavailable(err error) error {
	if err == nil {
		return ErrUpstreamUnavailable
	}
	return crerr.Mark(err, ErrUpstreamUnavailable)
}

// Malformed marks err as a data-quality failure for one snapshot.
func Malformed(err error) error {
	if err == nil {
		return ErrMalformedSnapshot
	}
	return crerr.Mark(err, ErrMalformedSnapshot)
}

type failureKind string

const (
	failureUnavailable failureKind = "upstream_unavailable"
	failureRateLimited failureKind = "rate_limited"
	failureMalformed   failureKind = "malformed_snapshot"
)

// classify maps any fetch error onto the taxonomy. Unknown errors are treated
// as transient so they are retried with backoff.
func classify(err error) failureKind {
	switch {
	case crerr.Is(err, ErrMalformedSnapshot):
		return failureMalformed
	case crerr.Is(err, ErrRateLimited):
		return failureRateLimited
	default:
		return failureUnavailable
	}
}
