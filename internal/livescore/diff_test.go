package livescore

import (
	"strings"
	"testing"

	"github.com/riskibarqy/matchthread-live/internal/domain/match"
)

func entryFor(snapshot match.Snapshot) *Entry {
	cache := NewCache()
	cache.Upsert(snapshot.MatchID, snapshot)
	entry, _ := cache.Get(snapshot.MatchID)
	return &entry
}

func TestCompare_SingleGoal(t *testing.T) {
	t.Parallel()

	previous := entryFor(snapshotOf("m1", match.StatusInPlay, 0, 0))
	incoming := snapshotOf("m1", match.StatusInPlay, 1, 0, goal(match.SideHome, "Jack Byrne", 4))

	got := Compare(previous, incoming)
	if !sameKinds(got, KindScoreChanged) {
		t.Fatalf("unexpected notifications: %v", kinds(got))
	}
	if got[0].Summary != "GOAL! Shamrock Rovers 1-0 Bohemians - Jack Byrne (4')" {
		t.Fatalf("unexpected summary: %q", got[0].Summary)
	}
	if got[0].MatchID != "m1" || got[0].Snapshot.HomeScore != 1 {
		t.Fatalf("notification does not carry the incoming snapshot: %+v", got[0])
	}
}

func TestCompare_LateJoinFinishedMatch(t *testing.T) {
	t.Parallel()

	incoming := snapshotOf("m1", match.StatusFinished, 2, 1,
		goal(match.SideHome, "A", 10),
		goal(match.SideAway, "B", 30),
		goal(match.SideHome, "C", 80),
	)

	got := Compare(nil, incoming)
	if !sameKinds(got, KindStatusChanged, KindMatchEnded) {
		t.Fatalf("unexpected notifications: %v", kinds(got))
	}
	if !strings.Contains(got[0].Summary, "2-1") {
		t.Fatalf("expected current score in late-join summary, got %q", got[0].Summary)
	}
}

func TestCompare_IdenticalInputIsIdempotent(t *testing.T) {
	t.Parallel()

	snapshot := snapshotOf("m1", match.StatusInPlay, 1, 0, goal(match.SideHome, "A", 10))
	if got := Compare(entryFor(snapshot), snapshot); len(got) != 0 {
		t.Fatalf("expected no notifications, got %v", kinds(got))
	}
}

func TestCompare_ScoreChangeWithoutGoalEvent(t *testing.T) {
	t.Parallel()

	previous := entryFor(snapshotOf("m1", match.StatusInPlay, 0, 0))
	got := Compare(previous, snapshotOf("m1", match.StatusInPlay, 0, 1))
	if !sameKinds(got, KindScoreChanged) {
		t.Fatalf("unexpected notifications: %v", kinds(got))
	}
	if !strings.HasPrefix(got[0].Summary, "Score update: Shamrock Rovers 0-1 Bohemians") {
		t.Fatalf("unexpected summary: %q", got[0].Summary)
	}
}

func TestCompare_MultipleGoalsWalkTheScore(t *testing.T) {
	t.Parallel()

	previous := entryFor(snapshotOf("m1", match.StatusInPlay, 0, 0))
	incoming := snapshotOf("m1", match.StatusInPlay, 1, 1,
		goal(match.SideAway, "B", 12),
		match.Event{Type: match.EventGoal, Team: match.SideHome, Player: "C", Minute: 45, ExtraMinute: 2, Detail: match.DetailPenalty},
	)

	got := Compare(previous, incoming)
	if !sameKinds(got, KindScoreChanged, KindScoreChanged) {
		t.Fatalf("unexpected notifications: %v", kinds(got))
	}
	if !strings.Contains(got[0].Summary, "0-1") {
		t.Fatalf("expected first goal at 0-1, got %q", got[0].Summary)
	}
	if !strings.HasSuffix(got[1].Summary, "1-1 Bohemians - C (P 45+2')") {
		t.Fatalf("unexpected penalty summary: %q", got[1].Summary)
	}
}

func TestCompare_OwnGoalDetail(t *testing.T) {
	t.Parallel()

	previous := entryFor(snapshotOf("m1", match.StatusInPlay, 0, 0))
	incoming := snapshotOf("m1", match.StatusInPlay, 1, 0,
		match.Event{Type: match.EventGoal, Team: match.SideHome, Player: "D", Minute: 33, Detail: match.DetailOwnGoal},
	)

	got := Compare(previous, incoming)
	if len(got) != 1 || !strings.HasSuffix(got[0].Summary, "D (OG 33')") {
		t.Fatalf("unexpected own goal notifications: %+v", got)
	}
}

func TestCompare_OrderingAcrossKinds(t *testing.T) {
	t.Parallel()

	previous := entryFor(snapshotOf("m1", match.StatusScheduled, 0, 0))
	incoming := snapshotOf("m1", match.StatusInPlay, 1, 0,
		goal(match.SideHome, "A", 3),
		match.Event{Type: match.EventYellowCard, Team: match.SideAway, Player: "Y", Minute: 5},
		redCard(match.SideAway, "B", 8),
	)

	got := Compare(previous, incoming)
	if !sameKinds(got, KindStatusChanged, KindScoreChanged, KindCardIssued) {
		t.Fatalf("unexpected notifications: %v", kinds(got))
	}
	if !strings.HasPrefix(got[0].Summary, "Kick-off") {
		t.Fatalf("expected kick-off first, got %q", got[0].Summary)
	}
	if got[2].Summary != "Red card: B (Bohemians) 8'" {
		t.Fatalf("unexpected red card summary: %q", got[2].Summary)
	}
}

func TestCompare_HalfTimeComesAfterCards(t *testing.T) {
	t.Parallel()

	previous := entryFor(snapshotOf("m1", match.StatusInPlay, 0, 0))
	incoming := snapshotOf("m1", match.StatusPaused, 0, 0, redCard(match.SideHome, "A", 45))

	got := Compare(previous, incoming)
	if !sameKinds(got, KindCardIssued, KindStatusChanged) {
		t.Fatalf("unexpected notifications: %v", kinds(got))
	}
	if !strings.HasPrefix(got[1].Summary, "Half-time") {
		t.Fatalf("unexpected half-time summary: %q", got[1].Summary)
	}
}

func TestCompare_YellowCardsAreNotNotified(t *testing.T) {
	t.Parallel()

	previous := entryFor(snapshotOf("m1", match.StatusInPlay, 0, 0))
	incoming := snapshotOf("m1", match.StatusInPlay, 0, 0,
		match.Event{Type: match.EventYellowCard, Team: match.SideAway, Player: "Y", Minute: 5},
	)

	if got := Compare(previous, incoming); len(got) != 0 {
		t.Fatalf("expected no notifications for a yellow card, got %v", kinds(got))
	}
}

func TestCompare_MatchEndedOnlyOnce(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	live := snapshotOf("m1", match.StatusInPlay, 1, 0, goal(match.SideHome, "A", 10))
	cache.Upsert("m1", live)

	finished := snapshotOf("m1", match.StatusFinished, 1, 0, goal(match.SideHome, "A", 10))
	previous, _ := cache.Upsert("m1", finished)
	got := Compare(&previous, finished)
	if !sameKinds(got, KindMatchEnded) {
		t.Fatalf("unexpected notifications at full time: %v", kinds(got))
	}

	corrected := snapshotOf("m1", match.StatusFinished, 1, 1,
		goal(match.SideHome, "A", 10),
		goal(match.SideAway, "B", 90),
	)
	previous, _ = cache.Upsert("m1", corrected)
	got = Compare(&previous, corrected)
	if !sameKinds(got, KindScoreChanged) {
		t.Fatalf("expected only the correction after full time, got %v", kinds(got))
	}

	// Flip-flop through a bogus live status and back.
	reopened := corrected
	reopened.Status = match.StatusInPlay
	previous, _ = cache.Upsert("m1", reopened)
	Compare(&previous, reopened)
	previous, _ = cache.Upsert("m1", corrected)
	for _, item := range Compare(&previous, corrected) {
		if item.Kind == KindMatchEnded {
			t.Fatalf("match ended announced twice")
		}
	}
}

func TestCompare_PostponedAndFirstSightings(t *testing.T) {
	t.Parallel()

	if got := Compare(nil, snapshotOf("m1", match.StatusScheduled, 0, 0)); len(got) != 0 {
		t.Fatalf("expected nothing for an unstarted match, got %v", kinds(got))
	}

	got := Compare(nil, snapshotOf("m1", match.StatusPaused, 1, 0))
	if !sameKinds(got, KindStatusChanged) || !strings.HasSuffix(got[0].Summary, "(HT)") {
		t.Fatalf("unexpected late join at half-time: %+v", got)
	}

	previous := entryFor(snapshotOf("m1", match.StatusScheduled, 0, 0))
	got = Compare(previous, snapshotOf("m1", match.StatusPostponed, 0, 0))
	if !sameKinds(got, KindStatusChanged) || got[0].Summary != "Postponed: Shamrock Rovers v Bohemians" {
		t.Fatalf("unexpected postponement notifications: %+v", got)
	}
}

func TestCompare_SecondHalfKickOff(t *testing.T) {
	t.Parallel()

	previous := entryFor(snapshotOf("m1", match.StatusPaused, 1, 0, goal(match.SideHome, "A", 10)))
	got := Compare(previous, snapshotOf("m1", match.StatusInPlay, 1, 0, goal(match.SideHome, "A", 10)))
	if !sameKinds(got, KindStatusChanged) || got[0].Summary != "Second half under way: Shamrock Rovers 1-0 Bohemians" {
		t.Fatalf("unexpected second half notifications: %+v", got)
	}
}
