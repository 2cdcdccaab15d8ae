package fotmob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/matchthread-live/internal/domain/match"
	"github.com/riskibarqy/matchthread-live/internal/livescore"
	"github.com/riskibarqy/matchthread-live/internal/platform/logging"
	"github.com/riskibarqy/matchthread-live/internal/platform/ratelimit"
	"github.com/riskibarqy/matchthread-live/internal/platform/resilience"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL   = "https://www.fotmob.com/api"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxBodyBytes     = 4 << 20
)

var (
	errFotMobTransient   = crerr.New("fotmob transient failure")
	errFotMobRateLimited = crerr.New("fotmob rate limited")
)

// Budget is the request allowance shared by every outbound call.
type Budget interface {
	Acquire() error
}

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	MinInterval    time.Duration
	Budget         Budget
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
	OnBreakerState resilience.StateChangeFunc
	Now            func() time.Time
}

// Client reads match details from FotMob and maps them onto snapshots.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	userAgent      string
	maxRetries     int
	retryBackoff   time.Duration
	minInterval    time.Duration
	budget         Budget
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.Group[[]byte]
	now            func() time.Time

	paceMu      sync.Mutex
	lastRequest time.Time
}

var _ livescore.FixtureSource = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	breakerCfg := cfg.CircuitBreaker.Normalize()

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		userAgent:      userAgent,
		maxRetries:     max(cfg.MaxRetries, 0),
		retryBackoff:   retryBackoff,
		minInterval:    max(cfg.MinInterval, 0),
		budget:         cfg.Budget,
		logger:         logger,
		breaker:        resilience.NewCircuitBreakerFromConfig("fotmob", breakerCfg, cfg.OnBreakerState),
		circuitEnabled: breakerCfg.Enabled,
		now:            now,
	}
}

// Breaker exposes the upstream circuit for status reporting.
func (c *Client) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

// FetchSnapshot implements livescore.FixtureSource.
func (c *Client) FetchSnapshot(ctx context.Context, id match.ID) (match.Snapshot, error) {
	if strings.TrimSpace(id.String()) == "" {
		return match.Snapshot{}, livescore.Malformed(fmt.Errorf("match id is required"))
	}

	var payload matchDetailsEnvelope
	if err := c.doJSON(ctx, "/matchDetails", map[string]string{"matchId": id.String()}, &payload); err != nil {
		return match.Snapshot{}, fmt.Errorf("fetch match details match_id=%s: %w", id, err)
	}

	snapshot, err := toSnapshot(id, payload, c.now())
	if err != nil {
		return match.Snapshot{}, livescore.Malformed(err)
	}
	return snapshot, nil
}

func (c *Client) doJSON(ctx context.Context, path string, query map[string]string, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "fotmob circuit breaker rejected request", "state", c.breaker.State())
			return livescore.Unavailable(crerr.Wrap(err, "fotmob is temporarily unavailable"))
		}
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}
	fullURL := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	raw, err, _ := c.flight.Do(fullURL, func() ([]byte, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			c.breaker.Record(reqErr, isFotMobCircuitFailure)
		}
		return raw, reqErr
	})
	if err != nil {
		return classifyRequestError(err)
	}

	if err := sonic.Unmarshal(raw, target); err != nil {
		return livescore.Malformed(fmt.Errorf("decode provider payload: %w", err))
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if c.budget != nil {
			if err := c.budget.Acquire(); err != nil {
				return nil, err
			}
		}
		if err := c.pace(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")
		req.Header.Set("user-agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = crerr.Mark(fmt.Errorf("send request: %w", err), errFotMobTransient)
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = crerr.Mark(fmt.Errorf("read response body: %w", readErr), errFotMobTransient)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case resp.StatusCode == http.StatusTooManyRequests:
				wait := parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
				lastErr = &statusError{
					code:       resp.StatusCode,
					body:       abbreviateBody(raw),
					retryAfter: wait,
					cause:      errFotMobRateLimited,
				}
				if wait > 0 {
					return nil, lastErr
				}
			case isRetryableStatus(resp.StatusCode):
				lastErr = &statusError{code: resp.StatusCode, body: abbreviateBody(raw), cause: errFotMobTransient}
			default:
				return nil, &statusError{code: resp.StatusCode, body: abbreviateBody(raw)}
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := c.retryBackoff << attempt
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("provider request failed")
	}
	c.logger.WarnContext(ctx, "fotmob request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

// pace keeps at least minInterval between consecutive request starts.
func (c *Client) pace(ctx context.Context) error {
	if c.minInterval <= 0 {
		return nil
	}

	c.paceMu.Lock()
	now := c.now()
	wait := c.lastRequest.Add(c.minInterval).Sub(now)
	if wait < 0 {
		wait = 0
	}
	c.lastRequest = now.Add(wait)
	c.paceMu.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type statusError struct {
	code       int
	body       string
	retryAfter time.Duration
	cause      error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider status=%d body=%s", e.code, e.body)
}

func (e *statusError) Unwrap() error { return e.cause }

func classifyRequestError(err error) error {
	var limitErr *ratelimit.LimitError
	if crerr.As(err, &limitErr) {
		return livescore.RateLimited(err, limitErr.RetryAfter)
	}

	var status *statusError
	if crerr.As(err, &status) && status.code == http.StatusTooManyRequests {
		return livescore.RateLimited(err, status.retryAfter)
	}
	return livescore.Unavailable(err)
}

func isFotMobCircuitFailure(err error) bool {
	if err == nil {
		return false
	}
	return crerr.Is(err, errFotMobTransient)
}

func isRetryableStatus(code int) bool {
	return code >= http.StatusInternalServerError
}

func parseRetryAfter(raw string, now time.Time) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		return max(time.Duration(seconds)*time.Second, 0)
	}
	if at, err := http.ParseTime(raw); err == nil {
		return max(at.Sub(now), 0)
	}
	return 0
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
