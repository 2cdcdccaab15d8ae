package livescore

import (
	"strconv"

	"github.com/riskibarqy/matchthread-live/internal/domain/match"
	"github.com/valyala/bytebufferpool"
)

type Kind string

const (
	KindScoreChanged  Kind = "score_changed"
	KindCardIssued    Kind = "card_issued"
	KindStatusChanged Kind = "status_changed"
	KindMatchEnded    Kind = "match_ended"
)

// Notification is one reportable change, consumed once by a Publisher.
type Notification struct {
	MatchID  match.ID
	Kind     Kind
	Summary  string
	Snapshot match.Snapshot
}

type summary struct {
	buf *bytebufferpool.ByteBuffer
}

func newSummary() *summary {
	return &summary{buf: bytebufferpool.Get()}
}

func (s *summary) text(v string) *summary {
	_, _ = s.buf.WriteString(v)
	return s
}

func (s *summary) scoreline(snapshot match.Snapshot, home, away int) *summary {
	return s.text(match.NormalizeTeamName(snapshot.HomeTeam)).
		text(" ").text(strconv.Itoa(home)).text("-").text(strconv.Itoa(away)).text(" ").
		text(match.NormalizeTeamName(snapshot.AwayTeam))
}

func (s *summary) fixture(snapshot match.Snapshot) *summary {
	return s.text(match.NormalizeTeamName(snapshot.HomeTeam)).
		text(" v ").
		text(match.NormalizeTeamName(snapshot.AwayTeam))
}

func (s *summary) String() string {
	out := s.buf.String()
	bytebufferpool.Put(s.buf)
	s.buf = nil
	return out
}

func clockLabel(snapshot match.Snapshot) string {
	switch snapshot.Status {
	case match.StatusPaused:
		return "HT"
	case match.StatusFinished:
		return "FT"
	}
	if snapshot.Minute != nil && *snapshot.Minute > 0 {
		return strconv.Itoa(*snapshot.Minute) + "'"
	}
	return ""
}

func firstSeenSummary(snapshot match.Snapshot) string {
	s := newSummary()
	switch {
	case snapshot.Status == match.StatusFinished:
		s.text("Result: ").scoreline(snapshot, snapshot.HomeScore, snapshot.AwayScore)
	case snapshot.Status == match.StatusInPlay && snapshot.HomeScore == 0 && snapshot.AwayScore == 0 &&
		(snapshot.Minute == nil || *snapshot.Minute <= 1):
		return s.text("Kick-off: ").fixture(snapshot).String()
	default:
		s.text("Live: ").scoreline(snapshot, snapshot.HomeScore, snapshot.AwayScore)
	}
	if label := clockLabel(snapshot); label != "" {
		s.text(" (").text(label).text(")")
	}
	return s.String()
}

func intoPlaySummary(previous match.Status, snapshot match.Snapshot) string {
	s := newSummary()
	switch previous {
	case match.StatusScheduled:
		return s.text("Kick-off: ").fixture(snapshot).String()
	case match.StatusPaused:
		s.text("Second half under way: ")
	default:
		s.text("Play resumed: ")
	}
	return s.scoreline(snapshot, snapshot.HomeScore, snapshot.AwayScore).String()
}

func outOfPlaySummary(snapshot match.Snapshot) string {
	s := newSummary()
	switch snapshot.Status {
	case match.StatusPaused:
		return s.text("Half-time: ").scoreline(snapshot, snapshot.HomeScore, snapshot.AwayScore).String()
	case match.StatusPostponed:
		return s.text("Postponed: ").fixture(snapshot).String()
	default:
		return s.text("Cancelled: ").fixture(snapshot).String()
	}
}

func goalSummary(snapshot match.Snapshot, event match.Event, home, away int) string {
	s := newSummary().text("GOAL! ").scoreline(snapshot, home, away)
	if event.Player != "" {
		s.text(" - ").text(event.Player).text(" (")
		switch event.Detail {
		case match.DetailPenalty:
			s.text("P ")
		case match.DetailOwnGoal:
			s.text("OG ")
		}
		s.text(event.Clock()).text(")")
	} else {
		s.text(" (").text(event.Clock()).text(")")
	}
	return s.String()
}

func scoreUpdateSummary(snapshot match.Snapshot) string {
	s := newSummary().text("Score update: ").scoreline(snapshot, snapshot.HomeScore, snapshot.AwayScore)
	if label := clockLabel(snapshot); label != "" {
		s.text(" (").text(label).text(")")
	}
	return s.String()
}

func redCardSummary(snapshot match.Snapshot, event match.Event) string {
	s := newSummary().text("Red card: ")
	if event.Player != "" {
		s.text(event.Player).text(" ")
	}
	if event.Team != "" {
		s.text("(").text(match.NormalizeTeamName(snapshot.TeamName(event.Team))).text(") ")
	}
	return s.text(event.Clock()).String()
}

func fullTimeSummary(snapshot match.Snapshot) string {
	return newSummary().text("Full time: ").scoreline(snapshot, snapshot.HomeScore, snapshot.AwayScore).String()
}
