package livescore

import (
	"context"
	"time"

	"github.com/riskibarqy/matchthread-live/internal/domain/match"
	"github.com/riskibarqy/matchthread-live/internal/platform/logging"
)

// FixtureSource fetches the current state of one match.
type FixtureSource interface {
	FetchSnapshot(ctx context.Context, id match.ID) (match.Snapshot, error)
}

// FetchResult carries one match outcome of a batched fetch.
type FetchResult struct {
	Snapshot match.Snapshot
	Err      error
}

// BatchFixtureSource is implemented by sources that can fetch several matches
// in one upstream call. Ids missing from the result are treated as upstream
// failures.
type BatchFixtureSource interface {
	FixtureSource
	FetchBatch(ctx context.Context, ids []match.ID) (map[match.ID]FetchResult, error)
}

// Publisher delivers one ordered batch of notifications. Delivery is
// at-least-once; a returned error does not roll the cache back.
type Publisher interface {
	Publish(ctx context.Context, notifications []Notification) error
}

// BudgetAdvisor suggests the per-match live polling interval the remaining
// upstream request budget can sustain with active matches polled side by side.
type BudgetAdvisor interface {
	PollingInterval(active int) time.Duration
}

// Recorder receives scheduler measurements.
type Recorder interface {
	ObserveTick(duration time.Duration, report TickReport)
	FetchFailed(kind string)
	NotificationsEmitted(kind Kind, count int)
	CacheSize(entries int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTick(time.Duration, TickReport) {}
func (nopRecorder) FetchFailed(string)                    {}
func (nopRecorder) NotificationsEmitted(Kind, int)        {}
func (nopRecorder) CacheSize(int)                         {}

// LogPublisher writes notifications to the structured log. It is the fallback
// when no forum publisher is configured.
type LogPublisher struct {
	logger *logging.Logger
}

func NewLogPublisher(logger *logging.Logger) *LogPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, notifications []Notification) error {
	for _, item := range notifications {
		p.logger.InfoContext(ctx, "match update",
			"match_id", item.MatchID.String(),
			"kind", string(item.Kind),
			"summary", item.Summary,
			"status", string(item.Snapshot.Status),
		)
	}
	return nil
}
