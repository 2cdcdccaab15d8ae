package app

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/matchthread-live/external/fotmob"
	"github.com/riskibarqy/matchthread-live/external/reddit"
	"github.com/riskibarqy/matchthread-live/internal/config"
	"github.com/riskibarqy/matchthread-live/internal/domain/thread"
	"github.com/riskibarqy/matchthread-live/internal/infrastructure/repository/file"
	"github.com/riskibarqy/matchthread-live/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/matchthread-live/internal/livescore"
	"github.com/riskibarqy/matchthread-live/internal/metrics"
	"github.com/riskibarqy/matchthread-live/internal/observability"
	"github.com/riskibarqy/matchthread-live/internal/platform/logging"
	"github.com/riskibarqy/matchthread-live/internal/platform/ratelimit"
	"github.com/riskibarqy/matchthread-live/internal/platform/resilience"
	"github.com/riskibarqy/matchthread-live/internal/usecase"
	"github.com/sourcegraph/conc"
)

// App owns the live updater process: registry, upstream clients, scheduler
// and the metrics server.
type App struct {
	cfg     config.Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	db      *sqlx.DB

	updater *livescore.Updater
	session *usecase.LiveSessionService

	metricsServer *http.Server
	stopping      atomic.Bool
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	m := metrics.New()

	threadRepo, db, err := newThreadRepository(cfg, logger)
	if err != nil {
		return nil, err
	}

	budget := ratelimit.New(ratelimit.Config{
		DailyLimit:     cfg.APIDailyLimit,
		PerMinuteLimit: cfg.APIPerMinuteLimit,
		StatsFile:      cfg.APIStatsFile,
		Location:       cfg.LiveTimezone,
	}, logger.With("component", "budget"))
	m.WatchBudget(budget)

	source := fotmob.NewClient(fotmob.ClientConfig{
		BaseURL:     cfg.FotMobBaseURL,
		Timeout:     cfg.FotMobTimeout,
		MaxRetries:  cfg.FotMobMaxRetries,
		MinInterval: cfg.FotMobMinInterval,
		Budget:      budget,
		Logger:      logger.With("component", "fotmob"),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.FotMobCircuitEnabled,
			FailureThreshold: cfg.FotMobCircuitFailureCount,
			OpenTimeout:      cfg.FotMobCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.FotMobCircuitHalfOpenMaxReq,
		},
		OnBreakerState: breakerLogger(logger, m),
	})
	m.TrackBreaker("fotmob", source.Breaker().State())

	publisher, routes := newPublisher(cfg, logger, m)

	deps := livescore.UpdaterDeps{
		Source:    source,
		Publisher: publisher,
		Recorder:  m,
		Logger:    logger.With("component", "updater"),
	}
	if cfg.APIAdaptivePolling {
		deps.Budget = budget
	}
	updater := livescore.NewUpdater(livescore.Config{
		TickInterval:      cfg.LiveTickInterval,
		LiveInterval:      cfg.LivePollInterval,
		PendingInterval:   cfg.LivePendingInterval,
		PreKickoffLead:    cfg.LivePreKickoffLead,
		MaxBackoff:        cfg.LiveMaxBackoff,
		FailureThreshold:  cfg.LiveFailureCount,
		RateLimitCooldown: cfg.LiveRateLimitWait,
		MalformedCooldown: cfg.LiveMalformedWait,
		FetchWorkers:      cfg.LiveFetchWorkers,
		TickTimeout:       cfg.LiveTickTimeout,
	}, deps)

	session := usecase.NewLiveSessionService(threadRepo, updater, routes, usecase.LiveSessionConfig{
		RefreshInterval: cfg.LiveRegistryRefresh,
		Location:        cfg.LiveTimezone,
	}, logger.With("component", "session"))

	return &App{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		db:      db,
		updater: updater,
		session: session,
	}, nil
}

func newThreadRepository(cfg config.Config, logger *logging.Logger) (thread.Repository, *sqlx.DB, error) {
	switch cfg.ThreadStore {
	case config.ThreadStorePostgres:
		db, err := openThreadDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("thread registry configured", "store", cfg.ThreadStore, "db_name", dbNameFromURL(cfg.DBURL))
		return postgres.NewThreadRepository(db), db, nil
	default:
		logger.Info("thread registry configured", "store", config.ThreadStoreFile, "path", cfg.ThreadStoreFile)
		return file.NewThreadRepository(cfg.ThreadStoreFile, cfg.LiveTimezone), nil, nil
	}
}

// newPublisher returns the Reddit publisher when enabled. Otherwise updates
// go to the log and there is no route table to maintain.
func newPublisher(cfg config.Config, logger *logging.Logger, m *metrics.Metrics) (livescore.Publisher, usecase.RouteSetter) {
	if !cfg.RedditEnabled {
		logger.Info("reddit publishing disabled", "reason", "REDDIT_ENABLED=false")
		return livescore.NewLogPublisher(logger.With("component", "publisher")), nil
	}

	client := reddit.NewClient(reddit.ClientConfig{
		AuthURL:      cfg.RedditAuthURL,
		BaseURL:      cfg.RedditBaseURL,
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		Username:     cfg.RedditUsername,
		Password:     cfg.RedditPassword,
		UserAgent:    cfg.RedditUserAgent,
		Timeout:      cfg.RedditTimeout,
		Logger:       logger.With("component", "reddit"),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.RedditCircuitEnabled,
			FailureThreshold: cfg.RedditCircuitFailureCount,
			OpenTimeout:      cfg.RedditCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.RedditCircuitHalfOpenMaxReq,
		},
		OnBreakerState: breakerLogger(logger, m),
	})
	m.TrackBreaker("reddit", client.Breaker().State())

	publisher := reddit.NewPublisher(client, logger.With("component", "publisher"))
	return publisher, publisher
}

func breakerLogger(logger *logging.Logger, m *metrics.Metrics) resilience.StateChangeFunc {
	return func(name string, from, to resilience.CircuitState) {
		logger.Warn("circuit breaker state changed", "breaker", name, "from", string(from), "to", string(to))
		m.BreakerStateChanged(name, from, to)
	}
}

// Updater exposes the scheduler, mostly for tests and status reporting.
func (a *App) Updater() *livescore.Updater {
	return a.updater
}

// Run starts the metrics server, the registry refresh loop and the updater,
// and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	srv, err := observability.StartMetricsServer(a.cfg, a.metrics.Handler(), a.status, a.logger)
	if err != nil {
		return err
	}
	a.metricsServer = srv

	var wg conc.WaitGroup
	wg.Go(func() {
		a.session.Run(ctx)
	})
	wg.Go(func() {
		if err := a.updater.Run(ctx); err != nil {
			a.logger.Error("live updater exited", "error", err)
		}
	})
	wg.Wait()
	return nil
}

func (a *App) status() error {
	if a.stopping.Load() {
		return crerr.New("shutting down")
	}
	return nil
}

// Shutdown stops the updater after its in-flight tick, then closes the
// metrics server and the database.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopping.Store(true)

	var errs error
	if err := a.updater.Stop(ctx); err != nil {
		errs = crerr.CombineErrors(errs, crerr.Wrap(err, "stop updater"))
	}

	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = max(time.Until(deadline), time.Second)
	}
	if err := observability.StopServer(a.metricsServer, a.logger, timeout); err != nil {
		errs = crerr.CombineErrors(errs, crerr.Wrap(err, "stop metrics server"))
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = crerr.CombineErrors(errs, crerr.Wrap(err, "close database"))
		}
	}
	return errs
}
