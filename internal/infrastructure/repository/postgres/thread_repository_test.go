package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/riskibarqy/matchthread-live/internal/domain/match"
	"github.com/riskibarqy/matchthread-live/internal/domain/thread"
)

func TestToFixtureInserts_DropsDuplicatesAndBlankIDs(t *testing.T) {
	kickoff := time.Date(2026, 10, 19, 19, 45, 0, 0, time.FixedZone("IST", 3600))
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	rows := toFixtureInserts(7, []thread.Fixture{
		{MatchID: "100", KickoffAt: kickoff},
		{MatchID: "", KickoffAt: kickoff},
		{MatchID: "100", KickoffAt: kickoff.Add(time.Hour)},
		{MatchID: "101", KickoffAt: kickoff},
	}, now)

	if len(rows) != 2 {
		t.Fatalf("expected 2 fixture rows, got=%d", len(rows))
	}
	if rows[0].ThreadID != 7 || rows[0].MatchID != "100" || rows[1].MatchID != "101" {
		t.Fatalf("unexpected fixture rows: %+v", rows)
	}
	if rows[0].KickoffAt.Location() != time.UTC || !rows[0].KickoffAt.Equal(kickoff) {
		t.Fatalf("expected kickoff stored in UTC, got=%s", rows[0].KickoffAt)
	}
}

func TestToThreadInsert_KeepsCreatedAt(t *testing.T) {
	created := time.Date(2026, 10, 13, 8, 0, 0, 0, time.UTC)
	now := created.Add(48 * time.Hour)

	row := toThreadInsert(thread.Thread{Competition: thread.CompetitionFAICup, PostID: "abc", CreatedAt: created}, now)
	if !row.CreatedAt.Equal(created) || !row.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected timestamps: %+v", row)
	}
	if row.MatchDates == nil {
		t.Fatalf("expected empty, non-nil match dates for the NOT NULL column")
	}

	fresh := toThreadInsert(thread.Thread{Competition: thread.CompetitionFAICup}, now)
	if !fresh.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at to default to now, got=%s", fresh.CreatedAt)
	}
}

func TestUpsertThreadSuffix_TargetsActiveCompetition(t *testing.T) {
	if !strings.Contains(upsertThreadSuffix, "ON CONFLICT (competition) WHERE deleted_at IS NULL") {
		t.Fatalf("upsert must target the partial unique index: %s", upsertThreadSuffix)
	}
	if !strings.HasSuffix(strings.TrimSpace(upsertThreadSuffix), "RETURNING id") {
		t.Fatalf("upsert must return the thread id: %s", upsertThreadSuffix)
	}
}

// TestThreadRepository_Postgres runs against a disposable database named by
// TEST_DB_URL.
func TestThreadRepository_Postgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("TEST_DB_URL"))
	if dsn == "" {
		t.Skip("TEST_DB_URL not set")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	schema, err := os.ReadFile("../../../../db/migrations/1792368000_create_match_threads.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	if _, err := db.ExecContext(ctx, "TRUNCATE match_thread_fixtures, match_threads"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	repo := NewThreadRepository(db)
	kickoff := time.Date(2026, 10, 19, 18, 45, 0, 0, time.UTC)
	item := thread.Thread{
		Competition: thread.CompetitionPremierDivision,
		PostID:      "1abcde",
		Round:       "Round 30",
		MatchDates:  []string{"2026-10-19"},
		Matches: []thread.Fixture{
			{MatchID: "4506123", KickoffAt: kickoff},
			{MatchID: "4506124", KickoffAt: kickoff},
		},
	}
	if err := repo.Upsert(ctx, item); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	item.PostID = "2fghij"
	item.Matches = item.Matches[:1]
	if err := repo.Upsert(ctx, item); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, ok, err := repo.GetByCompetition(ctx, thread.CompetitionPremierDivision)
	if err != nil || !ok {
		t.Fatalf("get by competition: ok=%v err=%v", ok, err)
	}
	if got.PostID != "2fghij" || len(got.Matches) != 1 || got.Matches[0].MatchID != match.ID("4506123") {
		t.Fatalf("unexpected stored thread: %+v", got)
	}
	if !got.HasMatchesOn("2026-10-19") {
		t.Fatalf("expected match dates to round-trip: %+v", got.MatchDates)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one thread, got=%d", len(all))
	}

	if _, ok, err := repo.GetByCompetition(ctx, thread.CompetitionFAICup); err != nil || ok {
		t.Fatalf("expected missing competition, ok=%v err=%v", ok, err)
	}
}
