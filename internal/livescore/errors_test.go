package livescore

import (
	"errors"
	"fmt"
	"testing"
	"time"

	crerr "github.com/cockroachdb/errors"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want failureKind
	}{
		{name: "unknown error is transient", err: errors.New("boom"), want: failureUnavailable},
		{name: "unavailable", err: Unavailable(errors.New("timeout")), want: failureUnavailable},
		{name: "rate limited", err: RateLimited(errors.New("429"), 0), want: failureRateLimited},
		{name: "wrapped rate limited", err: fmt.Errorf("fetch m1: %w", RateLimited(nil, time.Minute)), want: failureRateLimited},
		{name: "malformed", err: Malformed(errors.New("bad minute")), want: failureMalformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classify(tc.err); got != tc.want {
				t.Fatalf("classify(%v)=%s want=%s", tc.err, got, tc.want)
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("fetch: %w", RateLimited(errors.New("status 429"), 90*time.Second))
	wait, ok := RetryAfter(err)
	if !ok || wait != 90*time.Second {
		t.Fatalf("unexpected retry after: %s %v", wait, ok)
	}
	if !crerr.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limited mark to survive wrapping")
	}

	if _, ok := RetryAfter(RateLimited(errors.New("status 429"), 0)); ok {
		t.Fatalf("expected no retry after without a wait")
	}
}
