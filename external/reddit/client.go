package reddit

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/matchthread-live/internal/platform/logging"
	"github.com/riskibarqy/matchthread-live/internal/platform/resilience"
	"github.com/valyala/fasthttp"
)

const (
	defaultAuthURL   = "https://www.reddit.com/api/v1/access_token"
	defaultBaseURL   = "https://oauth.reddit.com"
	defaultUserAgent = "matchthread-live/1.0"
	tokenRefreshLead = time.Minute
	tokenFlightKey   = "token"
)

var (
	errRedditTransient    = crerr.New("reddit transient failure")
	errRedditUnauthorized = crerr.New("reddit token rejected")
)

type ClientConfig struct {
	AuthURL        string
	BaseURL        string
	ClientID       string
	ClientSecret   string
	Username       string
	Password       string
	UserAgent      string
	Timeout        time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
	OnBreakerState resilience.StateChangeFunc
	Now            func() time.Time
}

// Client talks to the Reddit OAuth API with a script-app password grant.
type Client struct {
	http           *fasthttp.Client
	authURL        string
	baseURL        string
	clientID       string
	clientSecret   string
	username       string
	password       string
	userAgent      string
	timeout        time.Duration
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	now            func() time.Time

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
	tokenFlight resilience.Group[string]
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	authURL := strings.TrimSpace(cfg.AuthURL)
	if authURL == "" {
		authURL = defaultAuthURL
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	breakerCfg := cfg.CircuitBreaker.Normalize()

	return &Client{
		http: &fasthttp.Client{
			Name:         userAgent,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		authURL:        authURL,
		baseURL:        baseURL,
		clientID:       strings.TrimSpace(cfg.ClientID),
		clientSecret:   strings.TrimSpace(cfg.ClientSecret),
		username:       strings.TrimSpace(cfg.Username),
		password:       cfg.Password,
		userAgent:      userAgent,
		timeout:        timeout,
		logger:         logger,
		breaker:        resilience.NewCircuitBreakerFromConfig("reddit", breakerCfg, cfg.OnBreakerState),
		circuitEnabled: breakerCfg.Enabled,
		now:            now,
	}
}

func (c *Client) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

// PostBody returns the current selftext of a submission.
func (c *Client) PostBody(ctx context.Context, postID string) (string, error) {
	fullname := postFullname(postID)

	var payload listingEnvelope
	err := c.withToken(ctx, func(token string) error {
		return c.doAPI(ctx, token, fasthttp.MethodGet, "/api/info", map[string]string{"id": fullname}, nil, &payload)
	})
	if err != nil {
		return "", fmt.Errorf("read post %s: %w", fullname, err)
	}

	for _, child := range payload.Data.Children {
		if child.Data.Name == fullname {
			return child.Data.Selftext, nil
		}
	}
	return "", crerr.Newf("post %s not found", fullname)
}

// EditPost replaces the selftext of a submission.
func (c *Client) EditPost(ctx context.Context, postID, body string) error {
	fullname := postFullname(postID)
	form := map[string]string{
		"api_type": "json",
		"thing_id": fullname,
		"text":     body,
	}

	var payload editEnvelope
	err := c.withToken(ctx, func(token string) error {
		return c.doAPI(ctx, token, fasthttp.MethodPost, "/api/editusertext", nil, form, &payload)
	})
	if err != nil {
		return fmt.Errorf("edit post %s: %w", fullname, err)
	}
	if len(payload.JSON.Errors) > 0 {
		return crerr.Newf("edit post %s rejected: %v", fullname, payload.JSON.Errors)
	}
	return nil
}

// withToken runs fn with a valid access token and retries once with a fresh
// token if the API rejects the cached one.
func (c *Client) withToken(ctx context.Context, fn func(token string) error) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	err = fn(token)
	if !crerr.Is(err, errRedditUnauthorized) {
		return err
	}

	c.invalidateToken(token)
	token, err = c.accessToken(ctx)
	if err != nil {
		return err
	}
	return fn(token)
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	if c.token != "" && c.now().Before(c.tokenExpiry.Add(-tokenRefreshLead)) {
		token := c.token
		c.tokenMu.Unlock()
		return token, nil
	}
	c.tokenMu.Unlock()

	token, err, _ := c.tokenFlight.Do(tokenFlightKey, func() (string, error) {
		return c.fetchToken(ctx)
	})
	return token, err
}

func (c *Client) invalidateToken(token string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token == token {
		c.token = ""
		c.tokenExpiry = time.Time{}
	}
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.authURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.clientID+":"+c.clientSecret)))
	req.SetBodyString(encodeForm(map[string]string{
		"grant_type": "password",
		"username":   c.username,
		"password":   c.password,
	}))

	if err := c.do(ctx, req, resp); err != nil {
		return "", crerr.Wrap(err, "request reddit token")
	}

	var payload tokenEnvelope
	if err := sonic.Unmarshal(resp.Body(), &payload); err != nil {
		return "", crerr.Wrap(err, "decode reddit token")
	}
	if payload.Error != "" || payload.AccessToken == "" {
		return "", crerr.Newf("reddit token grant failed: %s", firstNonEmpty(payload.Error, "empty access_token"))
	}

	expiresIn := time.Duration(payload.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}

	c.tokenMu.Lock()
	c.token = payload.AccessToken
	c.tokenExpiry = c.now().Add(expiresIn)
	c.tokenMu.Unlock()

	c.logger.InfoContext(ctx, "reddit access token refreshed", "expires_in", expiresIn.String())
	return payload.AccessToken, nil
}

func (c *Client) doAPI(ctx context.Context, token, method, path string, query, form map[string]string, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "reddit circuit breaker rejected request", "state", c.breaker.State())
			return crerr.Wrap(err, "reddit is temporarily unavailable")
		}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	for key, value := range query {
		req.URI().QueryArgs().Set(key, value)
	}
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "bearer "+token)
	if form != nil {
		req.Header.SetContentType("application/x-www-form-urlencoded")
		req.SetBodyString(encodeForm(form))
	}

	err := c.do(ctx, req, resp)
	if c.circuitEnabled {
		c.breaker.Record(err, isRedditCircuitFailure)
	}
	if err != nil {
		return err
	}

	if err := sonic.Unmarshal(resp.Body(), target); err != nil {
		return crerr.Wrapf(err, "decode reddit response %s", path)
	}
	return nil
}

func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req.Header.SetUserAgent(c.userAgent)

	deadline := c.now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return crerr.Mark(crerr.Wrap(err, "send reddit request"), errRedditTransient)
	}

	status := resp.StatusCode()
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == fasthttp.StatusUnauthorized:
		return crerr.Mark(crerr.Newf("reddit status=%d", status), errRedditUnauthorized)
	case status == fasthttp.StatusTooManyRequests || status >= 500:
		return crerr.Mark(crerr.Newf("reddit status=%d body=%s", status, abbreviateBody(resp.Body())), errRedditTransient)
	default:
		return crerr.Newf("reddit status=%d body=%s", status, abbreviateBody(resp.Body()))
	}
}

func encodeForm(values map[string]string) string {
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	for key, value := range values {
		args.Set(key, value)
	}
	return args.String()
}

func postFullname(postID string) string {
	postID = strings.TrimSpace(postID)
	if strings.HasPrefix(postID, "t3_") {
		return postID
	}
	return "t3_" + postID
}

func isRedditCircuitFailure(err error) bool {
	return err != nil && crerr.Is(err, errRedditTransient)
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

type tokenEnvelope struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

type listingEnvelope struct {
	Data struct {
		Children []struct {
			Kind string `json:"kind"`
			Data struct {
				Name     string `json:"name"`
				Selftext string `json:"selftext"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type editEnvelope struct {
	JSON struct {
		Errors [][]any `json:"errors"`
	} `json:"json"`
}
