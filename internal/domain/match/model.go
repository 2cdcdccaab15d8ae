package match

import (
	"strings"
	"time"
)

// ID identifies one fixture at the upstream provider.
type ID string

func (id ID) String() string {
	return string(id)
}

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusInPlay    Status = "IN_PLAY"
	StatusPaused    Status = "PAUSED"
	StatusFinished  Status = "FINISHED"
	StatusPostponed Status = "POSTPONED"
	StatusCancelled Status = "CANCELLED"
)

// IsLive reports whether the ball is (or was just) in play.
func (s Status) IsLive() bool {
	return s == StatusInPlay || s == StatusPaused
}

// IsTerminal reports whether the match will not produce further updates.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFinished, StatusPostponed, StatusCancelled:
		return true
	default:
		return false
	}
}

type EventType string

const (
	EventGoal        EventType = "GOAL"
	EventRedCard     EventType = "RED_CARD"
	EventYellowCard  EventType = "YELLOW_CARD"
	EventPeriodStart EventType = "PERIOD_START"
	EventPeriodEnd   EventType = "PERIOD_END"
	EventFullTime    EventType = "FULL_TIME"
)

type Side string

const (
	SideHome Side = "home"
	SideAway Side = "away"
)

const (
	DetailPenalty = "penalty"
	DetailOwnGoal = "own_goal"
)

// Event is one entry of a match timeline. Team is the side credited with the
// event, so an own goal carries the side that benefits from it.
type Event struct {
	Type        EventType `validate:"required,oneof=GOAL RED_CARD YELLOW_CARD PERIOD_START PERIOD_END FULL_TIME"`
	Team        Side      `validate:"omitempty,oneof=home away"`
	Player      string
	Minute      int `validate:"gte=0,lte=200"`
	ExtraMinute int `validate:"gte=0,lte=60"`
	Detail      string
}

// Snapshot is a point-in-time read of one match. Treat it as immutable.
type Snapshot struct {
	MatchID   ID        `validate:"required"`
	Status    Status    `validate:"required,oneof=SCHEDULED IN_PLAY PAUSED FINISHED POSTPONED CANCELLED"`
	HomeTeam  string    `validate:"required"`
	AwayTeam  string    `validate:"required"`
	HomeScore int       `validate:"gte=0"`
	AwayScore int       `validate:"gte=0"`
	Minute    *int      `validate:"omitempty,gte=0,lte=200"`
	Events    []Event   `validate:"dive"`
	FetchedAt time.Time `validate:"required"`
}

// Clone returns a copy that shares no mutable state with s.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Minute != nil {
		minute := *s.Minute
		out.Minute = &minute
	}
	if s.Events != nil {
		out.Events = make([]Event, len(s.Events))
		copy(out.Events, s.Events)
	}
	return out
}

// SameScore reports whether both snapshots show the same scoreline.
func (s Snapshot) SameScore(other Snapshot) bool {
	return s.HomeScore == other.HomeScore && s.AwayScore == other.AwayScore
}

func (s Snapshot) TeamName(side Side) string {
	if side == SideAway {
		return s.AwayTeam
	}
	return s.HomeTeam
}

var normalisedTeamNames = map[string]string{
	"St Patrick's Athl.": "St Patrick's Athletic",
	"Dundalk":            "Dundalk FC",
	"Kerry":              "Kerry FC",
	"Waterford":          "Waterford FC",
	"Wexford":            "Wexford FC",
}

// NormalizeTeamName maps provider short names onto the names used in threads.
func NormalizeTeamName(name string) string {
	name = strings.TrimSpace(name)
	if mapped, ok := normalisedTeamNames[name]; ok {
		return mapped
	}
	return name
}
