package livescore

import (
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/matchthread-live/internal/domain/match"
)

// Entry is what the audience has already been told about one match.
type Entry struct {
	MatchID         match.ID
	LastSnapshot    match.Snapshot
	LastEventCount  int
	LastPublishedAt *time.Time
	// EndAnnounced is set once a MatchEnded notification has been produced.
	EndAnnounced bool
}

func (e Entry) clone() Entry {
	out := e
	out.LastSnapshot = e.LastSnapshot.Clone()
	if e.LastPublishedAt != nil {
		at := *e.LastPublishedAt
		out.LastPublishedAt = &at
	}
	return out
}

type slot struct {
	mu    sync.Mutex
	entry *Entry
}

// Cache holds the last-known snapshot per match. Writers for the same match
// are serialised on a per-key lock; unrelated matches never contend beyond the
// short map lookup.
type Cache struct {
	mu    sync.Mutex
	slots map[match.ID]*slot
}

func NewCache() *Cache {
	return &Cache{slots: make(map[match.ID]*slot)}
}

func (c *Cache) slotFor(id match.ID, create bool) *slot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[id]
	if !ok && create {
		s = &slot{}
		c.slots[id] = s
	}
	return s
}

// Get returns a copy of the entry for id.
func (c *Cache) Get(id match.ID) (Entry, bool) {
	s := c.slotFor(id, false)
	if s == nil {
		return Entry{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == nil {
		return Entry{}, false
	}
	return s.entry.clone(), true
}

// Upsert stores snapshot as the latest state of id and returns the entry it
// replaced. LastEventCount never decreases and EndAnnounced is sticky.
func (c *Cache) Upsert(id match.ID, snapshot match.Snapshot) (Entry, bool) {
	s := c.slotFor(id, true)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := Entry{
		MatchID:        id,
		LastSnapshot:   snapshot.Clone(),
		LastEventCount: len(snapshot.Events),
	}

	var previous Entry
	existed := s.entry != nil
	if existed {
		previous = s.entry.clone()
		if previous.LastEventCount > next.LastEventCount {
			next.LastEventCount = previous.LastEventCount
		}
		next.LastPublishedAt = previous.LastPublishedAt
		next.EndAnnounced = previous.EndAnnounced
	}
	if snapshot.Status == match.StatusFinished {
		next.EndAnnounced = true
	}

	s.entry = &next
	return previous, existed
}

// MarkPublished stamps the entries of ids with the time their notifications
// were delivered.
func (c *Cache) MarkPublished(ids []match.ID, at time.Time) {
	for _, id := range ids {
		s := c.slotFor(id, false)
		if s == nil {
			continue
		}
		s.mu.Lock()
		if s.entry != nil {
			stamp := at
			s.entry.LastPublishedAt = &stamp
		}
		s.mu.Unlock()
	}
}

// Evict drops the entries of ids. Unknown ids are ignored.
func (c *Cache) Evict(ids ...match.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		delete(c.slots, id)
	}
}

// Len returns the number of cached matches.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, s := range c.slots {
		s.mu.Lock()
		if s.entry != nil {
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// IDs lists cached match ids in ascending order.
func (c *Cache) IDs() []match.ID {
	c.mu.Lock()
	out := make([]match.ID, 0, len(c.slots))
	for id := range c.slots {
		out = append(out, id)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.slots = make(map[match.ID]*slot)
	c.mu.Unlock()
}
