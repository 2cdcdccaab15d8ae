package fotmob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/matchthread-live/internal/domain/match"
	"github.com/riskibarqy/matchthread-live/internal/livescore"
	"github.com/riskibarqy/matchthread-live/internal/platform/ratelimit"
	"github.com/riskibarqy/matchthread-live/internal/platform/resilience"
)

const liveDetailsPayload = `{
  "general": {"matchId": 4506123, "started": true, "finished": false},
  "header": {
    "teams": [{"name": "Shamrock Rovers", "score": 2}, {"name": "Bohemians", "score": 1}],
    "status": {
      "utcTime": "2026-10-19T19:45:00.000Z",
      "started": true, "finished": false, "cancelled": false,
      "liveTime": {"short": "67'", "maxTime": 90}
    }
  },
  "content": {"matchFacts": {"events": {"events": [
    {"type": "Goal", "isHome": true, "nameStr": "Jack Byrne", "time": 12, "isPenalty": true},
    {"type": "Card", "isHome": false, "nameStr": "Keith Buckley", "time": 30, "card": "Yellow"},
    {"type": "Half", "time": 45, "overloadTime": 2, "halfStrShort": "HT"},
    {"type": "Goal", "isHome": false, "nameStr": "Dylan Connolly", "time": 45, "overloadTime": 1},
    {"type": "Goal", "isHome": true, "nameStr": "Danny Grant", "time": 60, "ownGoal": true},
    {"type": "Card", "isHome": false, "nameStr": "Jordan Flores", "time": 64, "card": "YellowRed"},
    {"type": "Substitution", "isHome": true, "time": 65}
  ]}}}
}`

type budgetFunc func() error

func (f budgetFunc) Acquire() error { return f() }

func newTestClient(t *testing.T, server *httptest.Server, mutate func(*ClientConfig)) *Client {
	t.Helper()

	cfg := ClientConfig{
		HTTPClient:   server.Client(),
		BaseURL:      server.URL,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		},
		Now: func() time.Time { return time.Date(2026, 10, 19, 20, 52, 0, 0, time.UTC) },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewClient(cfg)
}

func TestFetchSnapshot_MapsLiveMatch(t *testing.T) {
	t.Parallel()

	var gotQuery, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/matchDetails" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("matchId")
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(liveDetailsPayload))
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)
	snapshot, err := client.FetchSnapshot(context.Background(), "4506123")
	if err != nil {
		t.Fatalf("fetch snapshot: %v", err)
	}

	if gotQuery != "4506123" {
		t.Fatalf("unexpected matchId query: %q", gotQuery)
	}
	if gotAgent != defaultUserAgent {
		t.Fatalf("expected browser user agent, got=%q", gotAgent)
	}
	if snapshot.Status != match.StatusInPlay {
		t.Fatalf("expected IN_PLAY, got=%s", snapshot.Status)
	}
	if snapshot.HomeScore != 2 || snapshot.AwayScore != 1 {
		t.Fatalf("unexpected score %d-%d", snapshot.HomeScore, snapshot.AwayScore)
	}
	if snapshot.Minute == nil || *snapshot.Minute != 67 {
		t.Fatalf("expected minute 67, got=%v", snapshot.Minute)
	}
	if snapshot.FetchedAt.IsZero() {
		t.Fatalf("expected fetched_at to be set")
	}
	if err := match.Validate(snapshot); err != nil {
		t.Fatalf("expected valid snapshot: %v", err)
	}

	wantTypes := []match.EventType{
		match.EventGoal,
		match.EventYellowCard,
		match.EventGoal,
		match.EventPeriodEnd,
		match.EventGoal,
		match.EventRedCard,
	}
	if len(snapshot.Events) != len(wantTypes) {
		t.Fatalf("expected %d events, got=%d (%+v)", len(wantTypes), len(snapshot.Events), snapshot.Events)
	}
	for i, want := range wantTypes {
		if snapshot.Events[i].Type != want {
			t.Fatalf("event %d: expected %s, got=%s", i, want, snapshot.Events[i].Type)
		}
	}
	if snapshot.Events[0].Detail != match.DetailPenalty {
		t.Fatalf("expected penalty detail, got=%q", snapshot.Events[0].Detail)
	}
	if snapshot.Events[2].Team != match.SideAway || snapshot.Events[2].ExtraMinute != 1 {
		t.Fatalf("unexpected stoppage-time goal: %+v", snapshot.Events[2])
	}
	if snapshot.Events[4].Detail != match.DetailOwnGoal || snapshot.Events[4].Team != match.SideHome {
		t.Fatalf("unexpected own goal: %+v", snapshot.Events[4])
	}
}

func TestFetchSnapshot_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(liveDetailsPayload))
	}))
	defer server.Close()

	client := newTestClient(t, server, nil)
	if _, err := client.FetchSnapshot(context.Background(), "4506123"); err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got=%d", calls.Load())
	}
}

func TestFetchSnapshot_ClassifiesFailures(t *testing.T) {
	t.Parallel()

	t.Run("exhausted retries are unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := newTestClient(t, server, nil).FetchSnapshot(context.Background(), "1")
		if !crerr.Is(err, livescore.ErrUpstreamUnavailable) {
			t.Fatalf("expected unavailable, got=%v", err)
		}
	})

	t.Run("not found is not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		_, err := newTestClient(t, server, nil).FetchSnapshot(context.Background(), "1")
		if !crerr.Is(err, livescore.ErrUpstreamUnavailable) {
			t.Fatalf("expected unavailable, got=%v", err)
		}
		if calls.Load() != 1 {
			t.Fatalf("expected a single call, got=%d", calls.Load())
		}
	})

	t.Run("429 carries retry-after", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Retry-After", "120")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := newTestClient(t, server, nil).FetchSnapshot(context.Background(), "1")
		if !crerr.Is(err, livescore.ErrRateLimited) {
			t.Fatalf("expected rate limited, got=%v", err)
		}
		wait, ok := livescore.RetryAfter(err)
		if !ok || wait != 2*time.Minute {
			t.Fatalf("expected retry-after 2m, got=%s ok=%v", wait, ok)
		}
		if calls.Load() != 1 {
			t.Fatalf("expected no retry when provider names a wait, got=%d calls", calls.Load())
		}
	})

	t.Run("garbage body is malformed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>blocked</html>`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server, nil).FetchSnapshot(context.Background(), "1")
		if !crerr.Is(err, livescore.ErrMalformedSnapshot) {
			t.Fatalf("expected malformed, got=%v", err)
		}
	})

	t.Run("missing teams is malformed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"header": {"teams": []}}`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server, nil).FetchSnapshot(context.Background(), "1")
		if !crerr.Is(err, livescore.ErrMalformedSnapshot) {
			t.Fatalf("expected malformed, got=%v", err)
		}
	})

	t.Run("payload for another match is malformed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(liveDetailsPayload))
		}))
		defer server.Close()

		_, err := newTestClient(t, server, nil).FetchSnapshot(context.Background(), "999")
		if !crerr.Is(err, livescore.ErrMalformedSnapshot) {
			t.Fatalf("expected malformed, got=%v", err)
		}
	})
}

func TestFetchSnapshot_BudgetExhaustedIsRateLimited(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(liveDetailsPayload))
	}))
	defer server.Close()

	client := newTestClient(t, server, func(cfg *ClientConfig) {
		cfg.Budget = budgetFunc(func() error {
			return &ratelimit.LimitError{Scope: ratelimit.ScopeMinute, Used: 10, Limit: 10, RetryAfter: 40 * time.Second}
		})
	})

	_, err := client.FetchSnapshot(context.Background(), "4506123")
	if !crerr.Is(err, livescore.ErrRateLimited) {
		t.Fatalf("expected rate limited, got=%v", err)
	}
	if wait, _ := livescore.RetryAfter(err); wait != 40*time.Second {
		t.Fatalf("expected retry-after 40s, got=%s", wait)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no request once the budget is spent, got=%d", calls.Load())
	}
}

func TestFetchSnapshot_CircuitOpensAfterTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server, func(cfg *ClientConfig) {
		cfg.MaxRetries = 0
		cfg.CircuitBreaker.FailureThreshold = 2
	})

	for i := 0; i < 2; i++ {
		if _, err := client.FetchSnapshot(context.Background(), "1"); err == nil {
			t.Fatalf("expected failure on call %d", i+1)
		}
	}
	if client.Breaker().State() != resilience.CircuitStateOpen {
		t.Fatalf("expected open breaker, got=%s", client.Breaker().State())
	}

	_, err := client.FetchSnapshot(context.Background(), "1")
	if !crerr.Is(err, livescore.ErrUpstreamUnavailable) || !crerr.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected unavailable circuit-open error, got=%v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected open breaker to short-circuit, got=%d calls", calls.Load())
	}
}
