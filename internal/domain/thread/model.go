package thread

import (
	"slices"
	"strings"
	"time"

	"github.com/riskibarqy/matchthread-live/internal/domain/match"
)

const (
	CompetitionPremierDivision = "premier_division"
	CompetitionFirstDivision   = "first_division"
	CompetitionFAICup          = "fai_cup"
)

// Thread is a published discussion thread for one competition round.
type Thread struct {
	Competition string
	PostID      string
	Round       string
	MatchDates  []string
	Matches     []Fixture
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Fixture is one match tracked by a thread.
type Fixture struct {
	MatchID   match.ID
	KickoffAt time.Time
}

// HasMatchesOn reports whether the thread lists the given calendar date
// (YYYY-MM-DD).
func (t Thread) HasMatchesOn(date string) bool {
	date = strings.TrimSpace(date)
	if date == "" {
		return false
	}
	return slices.Contains(t.MatchDates, date)
}

// FixturesOn returns the fixtures that kick off on the given date in loc.
func (t Thread) FixturesOn(date string, loc *time.Location) []Fixture {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]Fixture, 0, len(t.Matches))
	for _, item := range t.Matches {
		if item.KickoffAt.In(loc).Format(time.DateOnly) == date {
			out = append(out, item)
		}
	}
	return out
}
