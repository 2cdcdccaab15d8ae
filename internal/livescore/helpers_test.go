package livescore

import (
	"time"

	"github.com/riskibarqy/matchthread-live/internal/domain/match"
)

var kickoff = time.Date(2026, 10, 16, 19, 45, 0, 0, time.UTC)

func snapshotOf(id match.ID, status match.Status, home, away int, events ...match.Event) match.Snapshot {
	return match.Snapshot{
		MatchID:   id,
		Status:    status,
		HomeTeam:  "Shamrock Rovers",
		AwayTeam:  "Bohemians",
		HomeScore: home,
		AwayScore: away,
		Events:    events,
		FetchedAt: kickoff,
	}
}

func goal(side match.Side, player string, minute int) match.Event {
	return match.Event{Type: match.EventGoal, Team: side, Player: player, Minute: minute}
}

func redCard(side match.Side, player string, minute int) match.Event {
	return match.Event{Type: match.EventRedCard, Team: side, Player: player, Minute: minute}
}

func kinds(items []Notification) []Kind {
	out := make([]Kind, 0, len(items))
	for _, item := range items {
		out = append(out, item.Kind)
	}
	return out
}

func sameKinds(got []Notification, want ...Kind) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i].Kind != want[i] {
			return false
		}
	}
	return true
}
