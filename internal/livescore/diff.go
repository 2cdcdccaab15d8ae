package livescore

import (
	"github.com/riskibarqy/matchthread-live/internal/domain/match"
)

// Compare classifies the change between what was last cached for a match and
// a freshly fetched snapshot. Notifications come out in a fixed order: status
// changes into play, goals, red cards, status changes out of play, and
// MatchEnded last.
func Compare(previous *Entry, incoming match.Snapshot) []Notification {
	if previous != nil && unchanged(*previous, incoming) {
		return nil
	}

	out := make([]Notification, 0, 2)
	emit := func(kind Kind, text string) {
		out = append(out, Notification{
			MatchID:  incoming.MatchID,
			Kind:     kind,
			Summary:  text,
			Snapshot: incoming,
		})
	}

	if previous == nil {
		if incoming.Status.IsLive() || incoming.Status == match.StatusFinished {
			emit(KindStatusChanged, firstSeenSummary(incoming))
		}
	} else {
		before := previous.LastSnapshot
		statusChanged := before.Status != incoming.Status
		fresh := newEvents(previous.LastEventCount, incoming.Events)

		if statusChanged && incoming.Status == match.StatusInPlay {
			emit(KindStatusChanged, intoPlaySummary(before.Status, incoming))
		}

		if !before.SameScore(incoming) {
			for _, text := range scoreChanges(before, incoming, fresh) {
				emit(KindScoreChanged, text)
			}
		}

		for _, event := range fresh {
			if event.Type == match.EventRedCard {
				emit(KindCardIssued, redCardSummary(incoming, event))
			}
		}

		if statusChanged {
			switch incoming.Status {
			case match.StatusPaused, match.StatusPostponed, match.StatusCancelled:
				emit(KindStatusChanged, outOfPlaySummary(incoming))
			}
		}
	}

	if incoming.Status == match.StatusFinished && !endAlreadyReported(previous) {
		emit(KindMatchEnded, fullTimeSummary(incoming))
	}

	return out
}

func unchanged(previous Entry, incoming match.Snapshot) bool {
	before := previous.LastSnapshot
	return before.Status == incoming.Status &&
		before.SameScore(incoming) &&
		len(incoming.Events) == previous.LastEventCount
}

func endAlreadyReported(previous *Entry) bool {
	if previous == nil {
		return false
	}
	return previous.EndAnnounced || previous.LastSnapshot.Status == match.StatusFinished
}

// newEvents returns the events appended since the cached count.
func newEvents(seen int, events []match.Event) []match.Event {
	if seen < 0 {
		seen = 0
	}
	if seen >= len(events) {
		return nil
	}
	return events[seen:]
}

// scoreChanges renders one line per new goal, walking the score forward from
// the cached scoreline. A change no goal event accounts for (missing events,
// corrections) gets a closing score update carrying the incoming scoreline.
func scoreChanges(before, incoming match.Snapshot, fresh []match.Event) []string {
	home, away := before.HomeScore, before.AwayScore
	lines := make([]string, 0, 1)
	for _, event := range fresh {
		if event.Type != match.EventGoal {
			continue
		}
		switch event.Team {
		case match.SideHome:
			home++
		case match.SideAway:
			away++
		}
		lines = append(lines, goalSummary(incoming, event, home, away))
	}

	if home != incoming.HomeScore || away != incoming.AwayScore {
		lines = append(lines, scoreUpdateSummary(incoming))
	}
	return lines
}
