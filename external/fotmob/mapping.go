package fotmob

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/matchthread-live/internal/domain/match"
)

var clockDigitsRegex = regexp.MustCompile(`[^\d+]`)

var postponedReasons = map[string]struct{}{
	"pp":     {},
	"ppd":    {},
	"postp.": {},
	"postp":  {},
}

func mapStatus(status matchStatus) match.Status {
	reason := strings.ToLower(strings.TrimSpace(status.Reason.Short))
	if _, ok := postponedReasons[reason]; ok {
		return match.StatusPostponed
	}
	switch {
	case status.Cancelled:
		return match.StatusCancelled
	case status.Finished:
		return match.StatusFinished
	case !status.Started:
		return match.StatusScheduled
	}

	if strings.Contains(strings.ToUpper(status.LiveTime.Short), "HT") {
		return match.StatusPaused
	}
	return match.StatusInPlay
}

// elapsedMinute parses clocks such as "45+2'" into the base minute.
func elapsedMinute(status matchStatus) *int {
	if !status.Started || status.Finished {
		return nil
	}
	short := strings.TrimSpace(status.LiveTime.Short)
	if short == "" || strings.EqualFold(short, "HT") || strings.EqualFold(short, "FT") {
		return nil
	}

	clean := clockDigitsRegex.ReplaceAllString(short, "")
	base, _, _ := strings.Cut(clean, "+")
	if base == "" {
		return nil
	}
	minute, err := strconv.Atoi(base)
	if err != nil {
		return nil
	}
	return &minute
}

func mapEvents(items []matchEvent) []match.Event {
	out := make([]match.Event, 0, len(items))
	for _, item := range items {
		side := match.SideAway
		if item.IsHome {
			side = match.SideHome
		}

		event := match.Event{
			Team:        side,
			Player:      strings.TrimSpace(item.NameStr),
			Minute:      max(item.Time, 0),
			ExtraMinute: max(item.OverloadTime, 0),
		}

		switch strings.ToLower(item.Type) {
		case "goal":
			event.Type = match.EventGoal
			switch {
			case item.OwnGoal:
				event.Detail = match.DetailOwnGoal
			case item.IsPenalty || item.GoalDescriptionKey == "penalty":
				event.Detail = match.DetailPenalty
			}
		case "card":
			switch strings.ToLower(item.Card) {
			case "red", "yellowred":
				event.Type = match.EventRedCard
			case "yellow":
				event.Type = match.EventYellowCard
			default:
				continue
			}
		case "half":
			event.Team = ""
			event.Player = ""
			switch strings.ToUpper(item.HalfStrShort) {
			case "HT":
				event.Type = match.EventPeriodEnd
			case "FT":
				event.Type = match.EventFullTime
			default:
				continue
			}
		default:
			continue
		}
		out = append(out, event)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Minute != out[j].Minute {
			return out[i].Minute < out[j].Minute
		}
		return out[i].ExtraMinute < out[j].ExtraMinute
	})
	return out
}

func toSnapshot(id match.ID, payload matchDetailsEnvelope, fetchedAt time.Time) (match.Snapshot, error) {
	teams := payload.Header.Teams
	if len(teams) < 2 {
		return match.Snapshot{}, fmt.Errorf("match %s: expected 2 teams in header, got %d", id, len(teams))
	}
	if returned := strings.TrimSpace(string(payload.General.MatchID)); returned != "" && returned != id.String() {
		return match.Snapshot{}, fmt.Errorf("match %s: payload belongs to match %s", id, returned)
	}

	status := mapStatus(payload.Header.Status)
	snapshot := match.Snapshot{
		MatchID:   id,
		Status:    status,
		HomeTeam:  match.NormalizeTeamName(teams[0].Name),
		AwayTeam:  match.NormalizeTeamName(teams[1].Name),
		Minute:    elapsedMinute(payload.Header.Status),
		Events:    mapEvents(payload.Content.MatchFacts.Events.Events),
		FetchedAt: fetchedAt,
	}
	if teams[0].Score != nil {
		snapshot.HomeScore = *teams[0].Score
	}
	if teams[1].Score != nil {
		snapshot.AwayScore = *teams[1].Score
	}
	return snapshot, nil
}
