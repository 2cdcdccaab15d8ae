package livescore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/matchthread-live/internal/domain/match"
	"github.com/riskibarqy/matchthread-live/internal/platform/logging"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("matchthread-live/internal/livescore")

type Config struct {
	TickInterval      time.Duration
	LiveInterval      time.Duration
	PendingInterval   time.Duration
	PreKickoffLead    time.Duration
	MaxBackoff        time.Duration
	FailureThreshold  int
	RateLimitCooldown time.Duration
	MalformedCooldown time.Duration
	FetchWorkers      int
	TickTimeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		TickInterval:      30 * time.Second,
		LiveInterval:      time.Minute,
		PendingInterval:   10 * time.Minute,
		PreKickoffLead:    15 * time.Minute,
		MaxBackoff:        30 * time.Minute,
		FailureThreshold:  3,
		RateLimitCooldown: 2 * time.Minute,
		MalformedCooldown: 5 * time.Minute,
		FetchWorkers:      4,
		TickTimeout:       45 * time.Second,
	}
}

// Normalize fills unset fields from DefaultConfig.
func (c Config) Normalize() Config {
	defaults := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = defaults.TickInterval
	}
	if c.LiveInterval <= 0 {
		c.LiveInterval = defaults.LiveInterval
	}
	if c.PendingInterval <= 0 {
		c.PendingInterval = defaults.PendingInterval
	}
	if c.PreKickoffLead < 0 {
		c.PreKickoffLead = defaults.PreKickoffLead
	}
	if c.MaxBackoff < c.LiveInterval {
		c.MaxBackoff = max(defaults.MaxBackoff, c.LiveInterval)
	}
	if c.FailureThreshold < 1 {
		c.FailureThreshold = defaults.FailureThreshold
	}
	if c.RateLimitCooldown <= 0 {
		c.RateLimitCooldown = defaults.RateLimitCooldown
	}
	if c.MalformedCooldown <= 0 {
		c.MalformedCooldown = defaults.MalformedCooldown
	}
	if c.FetchWorkers < 1 {
		c.FetchWorkers = defaults.FetchWorkers
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = defaults.TickTimeout
	}
	return c
}

// Tracked is one match the updater should follow.
type Tracked struct {
	MatchID   match.ID
	KickoffAt time.Time
}

type Phase string

const (
	PhasePending Phase = "pending"
	PhaseLive    Phase = "live"
	PhaseEnded   Phase = "ended"
	// PhaseDone matches are never polled again.
	PhaseDone Phase = "done"
)

// TrackingState is the scheduler's view of one match.
type TrackingState struct {
	MatchID             match.ID
	Phase               Phase
	KickoffAt           time.Time
	NextPollAt          time.Time
	Interval            time.Duration
	ConsecutiveFailures int
}

type tracker struct {
	kickoffAt  time.Time
	phase      Phase
	nextPollAt time.Time
	interval   time.Duration
	failures   int
}

type TickReport struct {
	Due           int
	Fetched       int
	Failed        int
	Notifications int
	Evicted       int
}

type UpdaterDeps struct {
	Source    FixtureSource
	Publisher Publisher
	Cache     *Cache
	Budget    BudgetAdvisor
	Recorder  Recorder
	Logger    *logging.Logger
	Now       func() time.Time
}

// Updater polls tracked matches, diffs them against the cache and publishes
// the resulting notifications once per tick.
type Updater struct {
	cfg       Config
	source    FixtureSource
	publisher Publisher
	cache     *Cache
	budget    BudgetAdvisor
	recorder  Recorder
	logger    *logging.Logger
	now       func() time.Time

	mu             sync.Mutex
	tracked        map[match.ID]*tracker
	gameweekClosed bool

	tickMu   sync.Mutex
	running  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewUpdater(cfg Config, deps UpdaterDeps) *Updater {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	cache := deps.Cache
	if cache == nil {
		cache = NewCache()
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = NewLogPublisher(logger)
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Updater{
		cfg:       cfg.Normalize(),
		source:    deps.Source,
		publisher: publisher,
		cache:     cache,
		budget:    deps.Budget,
		recorder:  recorder,
		logger:    logger,
		now:       now,
		tracked:   make(map[match.ID]*tracker),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Cache exposes the score cache owned by the updater.
func (u *Updater) Cache() *Cache {
	return u.cache
}

// SetTracked replaces the tracked set. New matches start pending and are first
// due at kickoff minus PreKickoffLead (immediately when the kickoff is unknown
// or close), dropped matches are evicted from the cache, and matches that
// already ended keep their state.
func (u *Updater) SetTracked(items []Tracked) {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	next := make(map[match.ID]*tracker, len(items))
	added := 0
	for _, item := range items {
		if item.MatchID == "" {
			continue
		}
		if existing, ok := u.tracked[item.MatchID]; ok {
			if !item.KickoffAt.IsZero() && !item.KickoffAt.Equal(existing.kickoffAt) {
				existing.kickoffAt = item.KickoffAt
				if existing.phase == PhasePending && existing.failures == 0 {
					existing.nextPollAt = u.firstPollAt(item.KickoffAt, now)
				}
			}
			next[item.MatchID] = existing
			continue
		}
		next[item.MatchID] = &tracker{
			kickoffAt:  item.KickoffAt,
			phase:      PhasePending,
			nextPollAt: u.firstPollAt(item.KickoffAt, now),
		}
		added++
	}

	removed := make([]match.ID, 0)
	for id := range u.tracked {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	u.cache.Evict(removed...)
	// Entries not tracked at all (e.g. left over from a previous gameweek).
	for _, id := range u.cache.IDs() {
		if _, ok := next[id]; !ok {
			u.cache.Evict(id)
		}
	}

	u.tracked = next
	if added > 0 || len(next) == 0 {
		u.gameweekClosed = false
	}
	u.recorder.CacheSize(u.cache.Len())

	if added > 0 || len(removed) > 0 {
		u.logger.Info("tracked matches updated", "tracked", len(next), "added", added, "removed", len(removed))
	}
}

// Tracking returns the scheduler state of one match.
func (u *Updater) Tracking(id match.ID) (TrackingState, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	t, ok := u.tracked[id]
	if !ok {
		return TrackingState{}, false
	}
	return t.state(id), true
}

// TrackedStates lists the scheduler state of every tracked match ordered by id.
func (u *Updater) TrackedStates() []TrackingState {
	u.mu.Lock()
	defer u.mu.Unlock()

	out := make([]TrackingState, 0, len(u.tracked))
	for id, t := range u.tracked {
		out = append(out, t.state(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out
}

func (t *tracker) state(id match.ID) TrackingState {
	return TrackingState{
		MatchID:             id,
		Phase:               t.phase,
		KickoffAt:           t.kickoffAt,
		NextPollAt:          t.nextPollAt,
		Interval:            t.interval,
		ConsecutiveFailures: t.failures,
	}
}

// Tick runs one polling cycle. Per-match failures are absorbed; the returned
// error is only set when the batch could not be published, in which case the
// cache still holds the new snapshots.
func (u *Updater) Tick(ctx context.Context) (TickReport, error) {
	u.tickMu.Lock()
	defer u.tickMu.Unlock()

	startedAt := u.now()
	ctx, span := tracer.Start(ctx, "livescore.Tick")
	defer span.End()

	var report TickReport
	due := u.dueMatches(startedAt)
	report.Due = len(due)
	span.SetAttributes(attribute.Int("livescore.due", len(due)))
	if len(due) == 0 {
		return report, nil
	}
	if u.source == nil {
		return report, crerr.New("fixture source is not configured")
	}

	results := u.fetch(ctx, due)

	batch := make([]Notification, 0, len(due))
	touched := make([]match.ID, 0, len(due))
	applyAt := u.now()

	u.mu.Lock()
	for _, id := range due {
		t, ok := u.tracked[id]
		if !ok {
			// Dropped by SetTracked while the fetch was in flight.
			continue
		}

		result := results[id]
		if result.Err == nil {
			result.Err = u.checkSnapshot(id, result.Snapshot)
		}
		if result.Err != nil {
			report.Failed++
			u.failure(ctx, id, t, result.Err, applyAt)
			continue
		}
		report.Fetched++

		previous, existed := u.cache.Upsert(id, result.Snapshot)
		var previousEntry *Entry
		if existed {
			previousEntry = &previous
		}
		notifications := Compare(previousEntry, result.Snapshot)
		if len(notifications) > 0 {
			batch = append(batch, notifications...)
			touched = append(touched, id)
		}
		u.success(id, t, result.Snapshot, applyAt)
	}
	report.Evicted = u.closeGameweekLocked()
	u.mu.Unlock()

	report.Notifications = len(batch)
	for kind, count := range countKinds(batch) {
		u.recorder.NotificationsEmitted(kind, count)
	}

	var publishErr error
	if len(batch) > 0 {
		if err := u.publisher.Publish(ctx, batch); err != nil {
			publishErr = crerr.Mark(crerr.Wrapf(err, "publish %d notifications", len(batch)), ErrPublishFailure)
			span.RecordError(publishErr)
			span.SetStatus(codes.Error, "publish failed")
			u.logger.ErrorContext(ctx, "publish notifications failed", "notifications", len(batch), "error", publishErr)
		} else {
			u.cache.MarkPublished(touched, u.now())
		}
	}

	span.SetAttributes(
		attribute.Int("livescore.fetched", report.Fetched),
		attribute.Int("livescore.failed", report.Failed),
		attribute.Int("livescore.notifications", report.Notifications),
	)
	u.recorder.CacheSize(u.cache.Len())
	u.recorder.ObserveTick(u.now().Sub(startedAt), report)
	return report, publishErr
}

func (u *Updater) dueMatches(now time.Time) []match.ID {
	u.mu.Lock()
	defer u.mu.Unlock()

	out := make([]match.ID, 0, len(u.tracked))
	for id, t := range u.tracked {
		if t.phase == PhaseDone {
			continue
		}
		if !now.Before(t.nextPollAt) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (u *Updater) fetch(ctx context.Context, ids []match.ID) map[match.ID]FetchResult {
	if batcher, ok := u.source.(BatchFixtureSource); ok {
		return u.fetchBatch(ctx, batcher, ids)
	}

	out := make(map[match.ID]FetchResult, len(ids))
	slots := make([]FetchResult, len(ids))

	pool, err := ants.NewPool(min(u.cfg.FetchWorkers, len(ids)))
	if err != nil {
		for _, id := range ids {
			out[id] = FetchResult{Err: Unavailable(fmt.Errorf("create fetch pool: %w", err))}
		}
		return out
	}
	defer pool.Release()

	var workers sync.WaitGroup
	for i, id := range ids {
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			slots[i] = u.fetchOne(ctx, id)
		}); err != nil {
			workers.Done()
			slots[i] = FetchResult{Err: Unavailable(fmt.Errorf("submit fetch: %w", err))}
		}
	}
	workers.Wait()

	for i, id := range ids {
		out[id] = slots[i]
	}
	return out
}

func (u *Updater) fetchOne(ctx context.Context, id match.ID) FetchResult {
	var result FetchResult
	var catcher panics.Catcher
	catcher.Try(func() {
		result.Snapshot, result.Err = u.source.FetchSnapshot(ctx, id)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		u.logger.ErrorContext(ctx, "fixture fetch panicked", "match_id", id.String(), "panic", recovered.String())
		return FetchResult{Err: Unavailable(recovered.AsError())}
	}
	return result
}

func (u *Updater) fetchBatch(ctx context.Context, source BatchFixtureSource, ids []match.ID) map[match.ID]FetchResult {
	var (
		results map[match.ID]FetchResult
		err     error
	)
	var catcher panics.Catcher
	catcher.Try(func() {
		results, err = source.FetchBatch(ctx, ids)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		err = Unavailable(recovered.AsError())
	}

	out := make(map[match.ID]FetchResult, len(ids))
	for _, id := range ids {
		if err != nil {
			out[id] = FetchResult{Err: err}
			continue
		}
		result, ok := results[id]
		if !ok {
			result = FetchResult{Err: Unavailable(fmt.Errorf("match %s missing from batch response", id))}
		}
		out[id] = result
	}
	return out
}

// checkSnapshot rejects snapshots that fail validation, and snapshots whose
// timeline drops or rewrites events the cache has already seen. Timelines only
// grow.
func (u *Updater) checkSnapshot(id match.ID, snapshot match.Snapshot) error {
	if snapshot.MatchID != id {
		return Malformed(fmt.Errorf("snapshot for %q returned for match %q", snapshot.MatchID, id))
	}
	if err := match.Validate(snapshot); err != nil {
		return Malformed(crerr.Wrapf(err, "validate snapshot %s", id))
	}
	cached, ok := u.cache.Get(id)
	if !ok {
		return nil
	}
	if len(snapshot.Events) < cached.LastEventCount {
		return Malformed(fmt.Errorf("match %s event list shrank from %d to %d", id, cached.LastEventCount, len(snapshot.Events)))
	}
	for i, seen := range cached.LastSnapshot.Events {
		if !sameOccurrence(seen, snapshot.Events[i]) {
			return Malformed(fmt.Errorf("match %s event %d rewritten from %s %s to %s %s",
				id, i, seen.Type, seen.Clock(), snapshot.Events[i].Type, snapshot.Events[i].Clock()))
		}
	}
	return nil
}

// sameOccurrence ignores player names, which the provider corrects in place.
func sameOccurrence(a, b match.Event) bool {
	return a.Type == b.Type && a.Team == b.Team && a.Minute == b.Minute && a.ExtraMinute == b.ExtraMinute
}

// firstPollAt holds a pending match back until the pre-kickoff lead.
func (u *Updater) firstPollAt(kickoffAt, now time.Time) time.Time {
	if kickoffAt.IsZero() {
		return now
	}
	if lead := kickoffAt.Add(-u.cfg.PreKickoffLead); lead.After(now) {
		return lead
	}
	return now
}

// activeLocked counts the matches polled at the live interval: live ones and
// pending ones inside the pre-kickoff lead. Caller holds u.mu.
func (u *Updater) activeLocked(now time.Time) int {
	active := 0
	for _, t := range u.tracked {
		switch t.phase {
		case PhaseLive:
			active++
		case PhasePending:
			if !now.Before(u.firstPollAt(t.kickoffAt, now)) {
				active++
			}
		}
	}
	return active
}

// liveInterval is the base live polling interval, slowed down when the
// request budget cannot cover every active match at that rate. Caller holds
// u.mu.
func (u *Updater) liveInterval(now time.Time) time.Duration {
	interval := u.cfg.LiveInterval
	if u.budget != nil {
		if advised := u.budget.PollingInterval(u.activeLocked(now)); advised > interval {
			interval = advised
		}
	}
	return interval
}

func (u *Updater) baseInterval(t *tracker, now time.Time) time.Duration {
	if t.phase == PhasePending && !t.kickoffAt.IsZero() && now.Before(t.kickoffAt.Add(-u.cfg.PreKickoffLead)) {
		return max(u.cfg.PendingInterval, u.liveInterval(now))
	}
	return u.liveInterval(now)
}

func (u *Updater) success(id match.ID, t *tracker, snapshot match.Snapshot, now time.Time) {
	t.failures = 0

	switch {
	case snapshot.Status.IsLive():
		if t.phase != PhaseLive {
			u.logger.Info("match is live", "match_id", id.String(), "status", string(snapshot.Status))
		}
		t.phase = PhaseLive
		t.interval = u.liveInterval(now)
	case snapshot.Status.IsTerminal():
		if t.phase == PhaseEnded {
			t.phase = PhaseDone
			t.interval = 0
			u.logger.Info("match tracking finished", "match_id", id.String(), "status", string(snapshot.Status))
			return
		}
		// One more poll to pick up late corrections.
		t.phase = PhaseEnded
		t.interval = u.cfg.LiveInterval
	default:
		t.interval = u.baseInterval(t, now)
		if t.phase == PhasePending && !t.kickoffAt.IsZero() {
			// Land on the lead, then on kickoff itself.
			for _, mark := range []time.Time{t.kickoffAt.Add(-u.cfg.PreKickoffLead), t.kickoffAt} {
				if now.Before(mark) && mark.Sub(now) < t.interval {
					t.interval = mark.Sub(now)
					break
				}
			}
		}
	}
	t.nextPollAt = now.Add(t.interval)
}

func (u *Updater) failure(ctx context.Context, id match.ID, t *tracker, err error, now time.Time) {
	kind := classify(err)
	u.recorder.FetchFailed(string(kind))

	base := u.baseInterval(t, now)
	if kind == failureMalformed {
		t.interval = max(base, u.cfg.MalformedCooldown)
		t.nextPollAt = now.Add(t.interval)
		u.logger.ErrorContext(ctx, "rejected malformed snapshot",
			"match_id", id.String(),
			"retry_at", t.nextPollAt,
			"error", err,
		)
		return
	}

	t.failures++
	interval := base
	if t.failures >= u.cfg.FailureThreshold {
		for i := 0; i <= t.failures-u.cfg.FailureThreshold && interval < u.cfg.MaxBackoff; i++ {
			interval *= 2
		}
		interval = min(interval, u.cfg.MaxBackoff)
	}
	if kind == failureRateLimited {
		wait := u.cfg.RateLimitCooldown
		if retryAfter, ok := RetryAfter(err); ok {
			wait = retryAfter
		}
		interval = max(interval, wait)
	}

	t.interval = interval
	t.nextPollAt = now.Add(interval)
	u.logger.WarnContext(ctx, "fixture fetch failed",
		"match_id", id.String(),
		"kind", string(kind),
		"consecutive_failures", t.failures,
		"next_poll_in", interval,
		"error", err,
	)
}

// closeGameweekLocked evicts every cache entry once all tracked matches are
// done. Caller holds u.mu.
func (u *Updater) closeGameweekLocked() int {
	if u.gameweekClosed || len(u.tracked) == 0 {
		return 0
	}
	ids := make([]match.ID, 0, len(u.tracked))
	for id, t := range u.tracked {
		if t.phase != PhaseDone {
			return 0
		}
		ids = append(ids, id)
	}

	u.cache.Evict(ids...)
	u.gameweekClosed = true
	u.logger.Info("all tracked matches finished, cache evicted", "matches", len(ids))
	return len(ids)
}

func countKinds(batch []Notification) map[Kind]int {
	out := make(map[Kind]int, 4)
	for _, item := range batch {
		out[item.Kind]++
	}
	return out
}

// Run ticks until ctx is cancelled or Stop is called. An in-flight tick is
// always allowed to finish; ticks run detached from ctx cancellation and are
// bounded by TickTimeout.
func (u *Updater) Run(ctx context.Context) error {
	if !u.running.CompareAndSwap(false, true) {
		return crerr.New("updater is already running")
	}
	defer close(u.doneCh)

	ticker := time.NewTicker(u.cfg.TickInterval)
	defer ticker.Stop()

	u.logger.Info("live updater started", "tick_interval", u.cfg.TickInterval, "live_interval", u.cfg.LiveInterval)
	u.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			u.shutdown()
			return nil
		case <-u.stopCh:
			u.shutdown()
			return nil
		case <-ticker.C:
			u.runTick(ctx)
		}
	}
}

func (u *Updater) runTick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.cfg.TickTimeout)
	defer cancel()

	report, err := u.Tick(tickCtx)
	if err != nil {
		// Already logged by Tick.
		return
	}
	if report.Due > 0 {
		u.logger.Debug("tick completed",
			"due", report.Due,
			"fetched", report.Fetched,
			"failed", report.Failed,
			"notifications", report.Notifications,
		)
	}
}

// Stop halts the loop after the in-flight tick and clears the cache. It waits
// until the loop has exited or ctx is done.
func (u *Updater) Stop(ctx context.Context) error {
	u.stopOnce.Do(func() { close(u.stopCh) })
	if !u.running.Load() {
		u.shutdown()
		return nil
	}
	select {
	case <-u.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *Updater) shutdown() {
	u.tickMu.Lock()
	defer u.tickMu.Unlock()

	u.mu.Lock()
	u.tracked = make(map[match.ID]*tracker)
	u.mu.Unlock()
	u.cache.Clear()
	u.recorder.CacheSize(0)
	u.logger.Info("live updater stopped")
}
