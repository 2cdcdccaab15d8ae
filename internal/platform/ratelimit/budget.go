package ratelimit

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/matchthread-live/internal/platform/logging"
)

var ErrLimitExceeded = crerr.New("request budget exhausted")

const (
	ScopeDaily  = "daily"
	ScopeMinute = "minute"
)

// LimitError reports which window rejected a request and when it reopens.
type LimitError struct {
	Scope      string
	Used       int
	Limit      int
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return "request budget exhausted: " + e.Scope + " limit reached"
}

func (e *LimitError) Is(target error) bool {
	return target == ErrLimitExceeded
}

type Config struct {
	DailyLimit     int
	PerMinuteLimit int
	// StatsFile persists the daily counter across restarts. Empty disables it.
	StatsFile string
	// Location decides where the daily window resets.
	Location *time.Location
	// Now overrides the clock. Nil uses time.Now.
	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{
		DailyLimit:     100,
		PerMinuteLimit: 10,
	}
}

type Stats struct {
	DailyCalls      int           `json:"daily_calls"`
	DailyLimit      int           `json:"daily_limit"`
	RemainingDaily  int           `json:"remaining_daily"`
	MinuteCalls     int           `json:"per_minute_calls"`
	PerMinuteLimit  int           `json:"per_minute_limit"`
	PollingInterval time.Duration `json:"polling_interval"`
	ResetAt         time.Time     `json:"reset_time"`
}

type persistedStats struct {
	DailyCalls int       `json:"daily_calls"`
	ResetTime  time.Time `json:"reset_time"`
	Timestamp  time.Time `json:"timestamp"`
}

// Budget tracks upstream request usage against a daily and a per-minute cap.
type Budget struct {
	mu          sync.Mutex
	cfg         Config
	dailyCalls  int
	resetAt     time.Time
	minuteCalls []time.Time
	logger      *logging.Logger
	now         func() time.Time
}

func New(cfg Config, logger *logging.Logger) *Budget {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return newBudget(cfg, logger, now)
}

func newBudget(cfg Config, logger *logging.Logger, now func() time.Time) *Budget {
	defaults := DefaultConfig()
	if cfg.DailyLimit < 1 {
		cfg.DailyLimit = defaults.DailyLimit
	}
	if cfg.PerMinuteLimit < 1 {
		cfg.PerMinuteLimit = defaults.PerMinuteLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}

	b := &Budget{
		cfg:     cfg,
		logger:  logger,
		now:     now,
		resetAt: now(),
	}
	b.load()
	return b
}

// Acquire takes one request slot or returns a *LimitError.
func (b *Budget) Acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.rollDayLocked(now)
	b.pruneMinuteLocked(now)

	if b.dailyCalls >= b.cfg.DailyLimit {
		return &LimitError{
			Scope:      ScopeDaily,
			Used:       b.dailyCalls,
			Limit:      b.cfg.DailyLimit,
			RetryAfter: b.nextDay(now).Sub(now),
		}
	}
	if len(b.minuteCalls) >= b.cfg.PerMinuteLimit {
		return &LimitError{
			Scope:      ScopeMinute,
			Used:       len(b.minuteCalls),
			Limit:      b.cfg.PerMinuteLimit,
			RetryAfter: b.minuteCalls[0].Add(time.Minute).Sub(now),
		}
	}

	b.dailyCalls++
	b.minuteCalls = append(b.minuteCalls, now)
	b.saveLocked(now)
	return nil
}

// PollingInterval is the per-match live polling interval when active matches
// are polled side by side. The tiers assume about six hours of polling at six
// calls per hour, and the interval grows with active so the combined request
// rate stays within that allowance.
func (b *Budget) PollingInterval(active int) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollDayLocked(b.now())
	return pollingInterval(b.cfg.DailyLimit-b.dailyCalls) * time.Duration(max(active, 1))
}

func pollingInterval(remaining int) time.Duration {
	switch {
	case remaining > 36:
		return 5 * time.Minute
	case remaining > 18:
		return 10 * time.Minute
	default:
		return 15 * time.Minute
	}
}

func (b *Budget) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.rollDayLocked(now)
	b.pruneMinuteLocked(now)
	remaining := b.cfg.DailyLimit - b.dailyCalls
	return Stats{
		DailyCalls:      b.dailyCalls,
		DailyLimit:      b.cfg.DailyLimit,
		RemainingDaily:  remaining,
		MinuteCalls:     len(b.minuteCalls),
		PerMinuteLimit:  b.cfg.PerMinuteLimit,
		PollingInterval: pollingInterval(remaining),
		ResetAt:         b.resetAt,
	}
}

func (b *Budget) sameDay(a, c time.Time) bool {
	return a.In(b.cfg.Location).Format(time.DateOnly) == c.In(b.cfg.Location).Format(time.DateOnly)
}

func (b *Budget) nextDay(now time.Time) time.Time {
	local := now.In(b.cfg.Location)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, b.cfg.Location)
}

func (b *Budget) rollDayLocked(now time.Time) {
	if b.sameDay(b.resetAt, now) {
		return
	}
	b.dailyCalls = 0
	b.resetAt = now
	b.saveLocked(now)
}

func (b *Budget) pruneMinuteLocked(now time.Time) {
	keep := b.minuteCalls[:0]
	for _, at := range b.minuteCalls {
		if now.Sub(at) < time.Minute {
			keep = append(keep, at)
		}
	}
	b.minuteCalls = keep
}

func (b *Budget) load() {
	if b.cfg.StatsFile == "" {
		return
	}
	raw, err := os.ReadFile(b.cfg.StatsFile)
	if err != nil {
		if !os.IsNotExist(err) {
			b.logger.Warn("could not read api stats", "path", b.cfg.StatsFile, "error", err)
		}
		return
	}

	var stored persistedStats
	if err := sonic.Unmarshal(raw, &stored); err != nil {
		b.logger.Warn("could not decode api stats", "path", b.cfg.StatsFile, "error", err)
		return
	}
	if b.sameDay(stored.ResetTime, b.now()) {
		b.dailyCalls = max(stored.DailyCalls, 0)
		b.resetAt = stored.ResetTime
	}
}

func (b *Budget) saveLocked(now time.Time) {
	if b.cfg.StatsFile == "" {
		return
	}
	raw, err := sonic.Marshal(persistedStats{
		DailyCalls: b.dailyCalls,
		ResetTime:  b.resetAt,
		Timestamp:  now,
	})
	if err != nil {
		b.logger.Warn("could not encode api stats", "error", err)
		return
	}

	tmp := b.cfg.StatsFile + ".tmp"
	if dir := filepath.Dir(b.cfg.StatsFile); dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		b.logger.Warn("could not write api stats", "path", b.cfg.StatsFile, "error", err)
		return
	}
	if err := os.Rename(tmp, b.cfg.StatsFile); err != nil {
		b.logger.Warn("could not replace api stats", "path", b.cfg.StatsFile, "error", err)
	}
}
