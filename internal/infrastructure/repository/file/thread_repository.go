package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/matchthread-live/internal/domain/match"
	"github.com/riskibarqy/matchthread-live/internal/domain/thread"
)

// The posting scripts write naive local timestamps, not RFC 3339.
var postedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	time.DateOnly,
}

type cacheEntry struct {
	PostID     string         `json:"post_id"`
	MatchDates []string       `json:"match_dates"`
	Round      flexText       `json:"round,omitempty"`
	PostedAt   string         `json:"posted_at,omitempty"`
	UpdatedAt  string         `json:"updated_at,omitempty"`
	Matches    []cacheFixture `json:"matches,omitempty"`
}

type cacheFixture struct {
	MatchID   flexText  `json:"match_id"`
	KickoffAt time.Time `json:"kickoff_at"`
}

// ThreadRepository keeps threads in the JSON cache shared with the posting
// scripts, keyed by competition.
type ThreadRepository struct {
	path string
	loc  *time.Location
	now  func() time.Time
	mu   sync.Mutex
}

var _ thread.Repository = (*ThreadRepository)(nil)

// NewThreadRepository reads and writes path. Naive posted_at values are read
// in loc.
func NewThreadRepository(path string, loc *time.Location) *ThreadRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &ThreadRepository{path: path, loc: loc, now: time.Now}
}

func (r *ThreadRepository) List(ctx context.Context) ([]thread.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.readLocked()
	if err != nil {
		return nil, err
	}

	competitions := make([]string, 0, len(entries))
	for competition := range entries {
		competitions = append(competitions, competition)
	}
	sort.Strings(competitions)

	out := make([]thread.Thread, 0, len(entries))
	for _, competition := range competitions {
		out = append(out, r.toThread(competition, entries[competition]))
	}
	return out, nil
}

func (r *ThreadRepository) GetByCompetition(ctx context.Context, competition string) (thread.Thread, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.readLocked()
	if err != nil {
		return thread.Thread{}, false, err
	}
	competition = strings.TrimSpace(competition)
	entry, ok := entries[competition]
	if !ok {
		return thread.Thread{}, false, nil
	}
	return r.toThread(competition, entry), true, nil
}

func (r *ThreadRepository) Upsert(ctx context.Context, item thread.Thread) error {
	competition := strings.TrimSpace(item.Competition)
	if competition == "" {
		return fmt.Errorf("thread competition is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.readLocked()
	if err != nil {
		return err
	}

	now := r.now()
	postedAt := item.CreatedAt
	if postedAt.IsZero() {
		postedAt = now
	}
	matchDates := slices.Sorted(slices.Values(item.MatchDates))
	if matchDates == nil {
		matchDates = []string{}
	}
	entry := cacheEntry{
		PostID:     item.PostID,
		MatchDates: matchDates,
		Round:      flexText(item.Round),
		PostedAt:   postedAt.In(r.loc).Format(time.RFC3339),
		UpdatedAt:  now.In(r.loc).Format(time.RFC3339),
		Matches:    make([]cacheFixture, 0, len(item.Matches)),
	}
	for _, fixture := range item.Matches {
		entry.Matches = append(entry.Matches, cacheFixture{
			MatchID:   flexText(fixture.MatchID),
			KickoffAt: fixture.KickoffAt.UTC(),
		})
	}
	entries[competition] = entry

	return r.writeLocked(entries)
}

func (r *ThreadRepository) readLocked() (map[string]cacheEntry, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]cacheEntry{}, nil
		}
		return nil, fmt.Errorf("read thread cache %s: %w", r.path, err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return map[string]cacheEntry{}, nil
	}

	entries := make(map[string]cacheEntry)
	if err := sonic.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode thread cache %s: %w", r.path, err)
	}
	return entries, nil
}

func (r *ThreadRepository) writeLocked(entries map[string]cacheEntry) error {
	raw, err := sonic.ConfigStd.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode thread cache: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create thread cache dir: %w", err)
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write thread cache: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace thread cache: %w", err)
	}
	return nil
}

func (r *ThreadRepository) toThread(competition string, entry cacheEntry) thread.Thread {
	out := thread.Thread{
		Competition: competition,
		PostID:      entry.PostID,
		Round:       string(entry.Round),
		MatchDates:  append([]string(nil), entry.MatchDates...),
		Matches:     make([]thread.Fixture, 0, len(entry.Matches)),
		CreatedAt:   r.parseTimestamp(entry.PostedAt),
		UpdatedAt:   r.parseTimestamp(entry.UpdatedAt),
	}
	for _, fixture := range entry.Matches {
		id := match.ID(strings.TrimSpace(string(fixture.MatchID)))
		if id == "" {
			continue
		}
		out.Matches = append(out.Matches, thread.Fixture{MatchID: id, KickoffAt: fixture.KickoffAt})
	}
	return out
}

func (r *ThreadRepository) parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range postedAtLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, r.loc); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// flexText accepts strings and bare numbers, e.g. "Round 3" or 30.
type flexText string

func (t *flexText) UnmarshalJSON(raw []byte) error {
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		*t = ""
		return nil
	}
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		var decoded string
		if err := sonic.Unmarshal(raw, &decoded); err != nil {
			return err
		}
		*t = flexText(decoded)
		return nil
	}
	*t = flexText(text)
	return nil
}
