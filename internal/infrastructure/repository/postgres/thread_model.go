package postgres

import (
	"time"

	"github.com/lib/pq"
	"github.com/riskibarqy/matchthread-live/internal/domain/match"
	"github.com/riskibarqy/matchthread-live/internal/domain/thread"
)

const (
	threadsTable  = "match_threads"
	fixturesTable = "match_thread_fixtures"
)

type threadTableModel struct {
	ID          int64          `db:"id"`
	Competition string         `db:"competition"`
	PostID      string         `db:"post_id"`
	Round       string         `db:"round"`
	MatchDates  pq.StringArray `db:"match_dates"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	DeletedAt   *time.Time     `db:"deleted_at"`
}

type threadInsertModel struct {
	Competition string         `db:"competition"`
	PostID      string         `db:"post_id"`
	Round       string         `db:"round"`
	MatchDates  pq.StringArray `db:"match_dates"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

type fixtureTableModel struct {
	ID        int64     `db:"id"`
	ThreadID  int64     `db:"thread_id"`
	MatchID   string    `db:"match_id"`
	KickoffAt time.Time `db:"kickoff_at"`
	CreatedAt time.Time `db:"created_at"`
}

type fixtureInsertModel struct {
	ThreadID  int64     `db:"thread_id"`
	MatchID   string    `db:"match_id"`
	KickoffAt time.Time `db:"kickoff_at"`
	CreatedAt time.Time `db:"created_at"`
}

func toThread(row threadTableModel, fixtures []fixtureTableModel) thread.Thread {
	out := thread.Thread{
		Competition: row.Competition,
		PostID:      row.PostID,
		Round:       row.Round,
		MatchDates:  append([]string(nil), row.MatchDates...),
		Matches:     make([]thread.Fixture, 0, len(fixtures)),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	for _, item := range fixtures {
		out.Matches = append(out.Matches, thread.Fixture{
			MatchID:   match.ID(item.MatchID),
			KickoffAt: item.KickoffAt.UTC(),
		})
	}
	return out
}

func toThreadInsert(item thread.Thread, now time.Time) threadInsertModel {
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return threadInsertModel{
		Competition: item.Competition,
		PostID:      item.PostID,
		Round:       item.Round,
		MatchDates:  pq.StringArray(append([]string{}, item.MatchDates...)),
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}
}

func toFixtureInserts(threadID int64, items []thread.Fixture, now time.Time) []fixtureInsertModel {
	out := make([]fixtureInsertModel, 0, len(items))
	seen := make(map[match.ID]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.MatchID]; dup || item.MatchID == "" {
			continue
		}
		seen[item.MatchID] = struct{}{}
		out = append(out, fixtureInsertModel{
			ThreadID:  threadID,
			MatchID:   item.MatchID.String(),
			KickoffAt: item.KickoffAt.UTC(),
			CreatedAt: now,
		})
	}
	return out
}
