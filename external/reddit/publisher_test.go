package reddit_test

import (
	"context"
	"strings"
	"testing"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/matchthread-live/external/reddit"
	"github.com/riskibarqy/matchthread-live/internal/domain/match"
	"github.com/riskibarqy/matchthread-live/internal/livescore"
	"github.com/riskibarqy/matchthread-live/internal/platform/logging"
	redditmock "github.com/riskibarqy/matchthread-live/internal/mocks/reddit"
	"github.com/stretchr/testify/mock"
)

func note(id match.ID, home, away int, summary string) livescore.Notification {
	minute := 30
	return livescore.Notification{
		MatchID: id,
		Kind:    livescore.KindScoreChanged,
		Summary: summary,
		Snapshot: match.Snapshot{
			MatchID:   id,
			Status:    match.StatusInPlay,
			HomeTeam:  "Home " + id.String(),
			AwayTeam:  "Away " + id.String(),
			HomeScore: home,
			AwayScore: away,
			Minute:    &minute,
		},
	}
}

func TestPublisher_EditsEachPostOnce(t *testing.T) {
	t.Parallel()

	editor := redditmock.NewPostEditor(t)
	publisher := reddit.NewPublisher(editor, logging.NewNop())
	publisher.SetRoutes(map[match.ID]string{"1": "premier", "2": "premier", "3": "first"})

	editor.On("PostBody", mock.Anything, "premier").Return("Premier Division thread", nil).Once()
	editor.On("PostBody", mock.Anything, "first").Return("First Division thread", nil).Once()
	editor.On("EditPost", mock.Anything, "premier", mock.MatchedBy(func(body string) bool {
		return strings.HasPrefix(body, "Premier Division thread") &&
			strings.Contains(body, "> **Home 1 1-0 Away 1** (30')") &&
			strings.Contains(body, "> **Home 2 0-1 Away 2** (30')") &&
			strings.Index(body, "* goal in 1") < strings.Index(body, "* goal in 2")
	})).Return(nil).Once()
	editor.On("EditPost", mock.Anything, "first", mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "* goal in 3") && !strings.Contains(body, "goal in 1")
	})).Return(nil).Once()

	err := publisher.Publish(context.Background(), []livescore.Notification{
		note("1", 1, 0, "goal in 1"),
		note("3", 1, 0, "goal in 3"),
		note("2", 0, 1, "goal in 2"),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestPublisher_FailedPostDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	editor := redditmock.NewPostEditor(t)
	publisher := reddit.NewPublisher(editor, logging.NewNop())
	publisher.SetRoutes(map[match.ID]string{"1": "premier", "3": "first"})

	readErr := crerr.New("reddit status=503")
	editor.On("PostBody", mock.Anything, "premier").Return("", readErr).Once()
	editor.On("PostBody", mock.Anything, "first").Return("", nil).Once()
	editor.On("EditPost", mock.Anything, "first", mock.Anything).Return(nil).Once()

	err := publisher.Publish(context.Background(), []livescore.Notification{
		note("1", 1, 0, "goal in 1"),
		note("3", 1, 0, "goal in 3"),
	})
	if !crerr.Is(err, readErr) {
		t.Fatalf("expected read error to be reported, got=%v", err)
	}
}

func TestPublisher_SkipsUnroutedAndUnchanged(t *testing.T) {
	t.Parallel()

	editor := redditmock.NewPostEditor(t)
	publisher := reddit.NewPublisher(editor, logging.NewNop())

	if err := publisher.Publish(context.Background(), []livescore.Notification{note("9", 1, 0, "goal in 9")}); err != nil {
		t.Fatalf("expected unrouted notifications to be skipped, got=%v", err)
	}

	publisher.SetRoutes(map[match.ID]string{"1": "premier"})
	var published string
	editor.On("PostBody", mock.Anything, "premier").Return("thread", nil).Once()
	editor.On("EditPost", mock.Anything, "premier", mock.Anything).Run(func(args mock.Arguments) {
		published = args.String(2)
	}).Return(nil).Once()

	batch := []livescore.Notification{note("1", 1, 0, "goal in 1")}
	if err := publisher.Publish(context.Background(), batch); err != nil {
		t.Fatalf("publish: %v", err)
	}

	editor.On("PostBody", mock.Anything, "premier").Return(published, nil).Once()
	if err := publisher.Publish(context.Background(), batch); err != nil {
		t.Fatalf("republish: %v", err)
	}
}
