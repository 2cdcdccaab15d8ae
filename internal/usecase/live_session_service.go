package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/riskibarqy/matchthread-live/internal/domain/match"
	"github.com/riskibarqy/matchthread-live/internal/domain/thread"
	"github.com/riskibarqy/matchthread-live/internal/livescore"
	"github.com/riskibarqy/matchthread-live/internal/platform/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("matchthread-live/internal/usecase")

// LiveTracker receives the set of matches the updater should follow.
type LiveTracker interface {
	SetTracked(items []livescore.Tracked)
}

// RouteSetter receives the match to post mapping used when publishing.
type RouteSetter interface {
	SetRoutes(routes map[match.ID]string)
}

type LiveSessionConfig struct {
	RefreshInterval time.Duration
	Location        *time.Location
}

type LiveSessionResult struct {
	Date         string   `json:"date"`
	Competitions []string `json:"competitions"`
	Matches      int      `json:"matches"`
}

// LiveSessionService feeds today's threads from the registry into the live
// updater and the publisher.
type LiveSessionService struct {
	threadRepo thread.Repository
	tracker    LiveTracker
	routes     RouteSetter
	cfg        LiveSessionConfig
	logger     *logging.Logger
	now        func() time.Time
}

func NewLiveSessionService(
	threadRepo thread.Repository,
	tracker LiveTracker,
	routes RouteSetter,
	cfg LiveSessionConfig,
	logger *logging.Logger,
) *LiveSessionService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 10 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &LiveSessionService{
		threadRepo: threadRepo,
		tracker:    tracker,
		routes:     routes,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Refresh loads the threads with matches on today's local date and replaces
// the tracked set. On a registry error the previous tracked set is left
// untouched.
func (s *LiveSessionService) Refresh(ctx context.Context) (LiveSessionResult, error) {
	ctx, span := tracer.Start(ctx, "usecase.LiveSessionService.Refresh")
	defer span.End()

	today := s.now().In(s.cfg.Location).Format(time.DateOnly)
	result := LiveSessionResult{Date: today, Competitions: []string{}}

	threads, err := s.threadRepo.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list threads")
		return result, fmt.Errorf("%w: list threads: %v", ErrDependencyUnavailable, err)
	}

	tracked := make([]livescore.Tracked, 0, 16)
	routes := make(map[match.ID]string, 16)
	for _, item := range threads {
		if !item.HasMatchesOn(today) {
			continue
		}
		if strings.TrimSpace(item.PostID) == "" {
			s.logger.WarnContext(ctx, "skipping thread without post id", "competition", item.Competition)
			continue
		}

		fixtures := item.FixturesOn(today, s.cfg.Location)
		if len(fixtures) == 0 {
			s.logger.WarnContext(ctx, "thread has matches today but no tracked fixtures", "competition", item.Competition, "date", today)
			continue
		}
		for _, fixture := range fixtures {
			if existing, dup := routes[fixture.MatchID]; dup {
				s.logger.WarnContext(ctx, "match listed in more than one thread", "match_id", fixture.MatchID.String(), "post_id", existing, "ignored_post_id", item.PostID)
				continue
			}
			routes[fixture.MatchID] = item.PostID
			tracked = append(tracked, livescore.Tracked{MatchID: fixture.MatchID, KickoffAt: fixture.KickoffAt})
		}
		result.Competitions = append(result.Competitions, item.Competition)
	}
	sort.Strings(result.Competitions)
	result.Matches = len(tracked)

	if s.routes != nil {
		s.routes.SetRoutes(routes)
	}
	s.tracker.SetTracked(tracked)

	span.SetAttributes(
		attribute.String("live_session.date", today),
		attribute.Int("live_session.matches", result.Matches),
	)
	s.logger.InfoContext(ctx, "live session refreshed", "date", today, "competitions", result.Competitions, "matches", result.Matches)
	return result, nil
}

// Run refreshes immediately and then every RefreshInterval until ctx ends.
func (s *LiveSessionService) Run(ctx context.Context) {
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.ErrorContext(ctx, "live session refresh failed", "error", err)
	}

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil {
				s.logger.ErrorContext(ctx, "live session refresh failed", "error", err)
			}
		}
	}
}
