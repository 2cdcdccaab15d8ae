package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/riskibarqy/matchthread-live/internal/platform/logging"
)

const (
	ThreadStoreFile     = "file"
	ThreadStorePostgres = "postgres"
)

// Config stores runtime configuration for the live updater.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	LogLevel       logging.Level

	MetricsEnabled bool
	MetricsAddr    string
	PprofEnabled   bool

	UptraceEnabled             bool
	UptraceDSN                 string
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration

	FotMobBaseURL               string
	FotMobTimeout               time.Duration
	FotMobMaxRetries            int
	FotMobMinInterval           time.Duration
	FotMobCircuitEnabled        bool
	FotMobCircuitFailureCount   int
	FotMobCircuitOpenTimeout    time.Duration
	FotMobCircuitHalfOpenMaxReq int

	APIDailyLimit       int
	APIPerMinuteLimit   int
	APIStatsFile        string
	APIAdaptivePolling  bool
	LiveTickInterval    time.Duration
	LivePollInterval    time.Duration
	LivePendingInterval time.Duration
	LivePreKickoffLead  time.Duration
	LiveMaxBackoff      time.Duration
	LiveFailureCount    int
	LiveRateLimitWait   time.Duration
	LiveMalformedWait   time.Duration
	LiveFetchWorkers    int
	LiveTickTimeout     time.Duration
	LiveRegistryRefresh time.Duration
	LiveTimezone        *time.Location

	ThreadStore             string
	ThreadStoreFile         string
	DBURL                   string
	DBDisablePreparedBinary bool

	RedditEnabled               bool
	RedditAuthURL               string
	RedditBaseURL               string
	RedditClientID              string
	RedditClientSecret          string
	RedditUsername              string
	RedditPassword              string
	RedditUserAgent             string
	RedditTimeout               time.Duration
	RedditCircuitEnabled        bool
	RedditCircuitFailureCount   int
	RedditCircuitOpenTimeout    time.Duration
	RedditCircuitHalfOpenMaxReq int
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:         appEnv,
		ServiceName:    getEnv("APP_SERVICE_NAME", "matchthread-live"),
		ServiceVersion: getEnv("APP_SERVICE_VERSION", "dev"),
		LogLevel:       parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
	}

	if err := loadObservability(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadFotMob(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadLive(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadThreadStore(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadReddit(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadObservability(cfg *Config) error {
	metricsEnabled, err := strconv.ParseBool(getEnv("METRICS_ENABLED", "true"))
	if err != nil {
		return fmt.Errorf("parse METRICS_ENABLED: %w", err)
	}
	metricsAddr := strings.TrimSpace(getEnv("METRICS_ADDR", ":9090"))
	if metricsEnabled && metricsAddr == "" {
		return fmt.Errorf("METRICS_ADDR is required when METRICS_ENABLED=true")
	}
	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	if pprofEnabled && !metricsEnabled {
		return fmt.Errorf("PPROF_ENABLED=true requires METRICS_ENABLED=true")
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceDSN == "" {
		uptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if uptraceEnabled && uptraceDSN == "" {
		return fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := time.ParseDuration(getEnv("PYROSCOPE_UPLOAD_RATE", "15s"))
	if err != nil {
		return fmt.Errorf("parse PYROSCOPE_UPLOAD_RATE: %w", err)
	}
	if pyroscopeUploadRate <= 0 {
		return fmt.Errorf("PYROSCOPE_UPLOAD_RATE must be > 0")
	}
	pyroscopeAppName := strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if pyroscopeEnabled && pyroscopeAppName == "" {
		return fmt.Errorf("PYROSCOPE_APP_NAME cannot be empty when PYROSCOPE_ENABLED=true")
	}

	cfg.MetricsEnabled = metricsEnabled
	cfg.MetricsAddr = metricsAddr
	cfg.PprofEnabled = pprofEnabled
	cfg.UptraceEnabled = uptraceEnabled
	cfg.UptraceDSN = uptraceDSN
	cfg.PyroscopeEnabled = pyroscopeEnabled
	cfg.PyroscopeServerAddress = pyroscopeServerAddress
	cfg.PyroscopeAppName = pyroscopeAppName
	cfg.PyroscopeAuthToken = strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", ""))
	cfg.PyroscopeBasicAuthUser = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", ""))
	cfg.PyroscopeBasicAuthPassword = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", ""))
	cfg.PyroscopeUploadRate = pyroscopeUploadRate
	return nil
}

func loadFotMob(cfg *Config) error {
	timeout, err := positiveDuration("FOTMOB_TIMEOUT", "10s")
	if err != nil {
		return err
	}
	maxRetries, err := getEnvAsInt("FOTMOB_MAX_RETRIES", 3)
	if err != nil {
		return fmt.Errorf("parse FOTMOB_MAX_RETRIES: %w", err)
	}
	if maxRetries < 0 {
		return fmt.Errorf("FOTMOB_MAX_RETRIES must be >= 0")
	}
	minInterval, err := time.ParseDuration(getEnv("FOTMOB_MIN_INTERVAL", "200ms"))
	if err != nil {
		return fmt.Errorf("parse FOTMOB_MIN_INTERVAL: %w", err)
	}
	if minInterval < 0 {
		return fmt.Errorf("FOTMOB_MIN_INTERVAL must be >= 0")
	}
	circuit, err := loadCircuit("FOTMOB", "300s")
	if err != nil {
		return err
	}
	baseURL := strings.TrimSpace(getEnv("FOTMOB_BASE_URL", "https://www.fotmob.com/api"))
	if baseURL == "" {
		return fmt.Errorf("FOTMOB_BASE_URL cannot be empty")
	}

	cfg.FotMobBaseURL = baseURL
	cfg.FotMobTimeout = timeout
	cfg.FotMobMaxRetries = maxRetries
	cfg.FotMobMinInterval = minInterval
	cfg.FotMobCircuitEnabled = circuit.enabled
	cfg.FotMobCircuitFailureCount = circuit.failureCount
	cfg.FotMobCircuitOpenTimeout = circuit.openTimeout
	cfg.FotMobCircuitHalfOpenMaxReq = circuit.halfOpenMaxReq
	return nil
}

func loadLive(cfg *Config) error {
	dailyLimit, err := getEnvAsInt("API_DAILY_LIMIT", 100)
	if err != nil {
		return fmt.Errorf("parse API_DAILY_LIMIT: %w", err)
	}
	if dailyLimit < 1 {
		return fmt.Errorf("API_DAILY_LIMIT must be >= 1")
	}
	perMinuteLimit, err := getEnvAsInt("API_PER_MINUTE_LIMIT", 10)
	if err != nil {
		return fmt.Errorf("parse API_PER_MINUTE_LIMIT: %w", err)
	}
	if perMinuteLimit < 1 {
		return fmt.Errorf("API_PER_MINUTE_LIMIT must be >= 1")
	}
	adaptivePolling, err := strconv.ParseBool(getEnv("API_ADAPTIVE_POLLING", "true"))
	if err != nil {
		return fmt.Errorf("parse API_ADAPTIVE_POLLING: %w", err)
	}

	durations := []struct {
		key      string
		fallback string
		target   *time.Duration
	}{
		{key: "LIVE_TICK_INTERVAL", fallback: "30s", target: &cfg.LiveTickInterval},
		{key: "LIVE_POLL_INTERVAL", fallback: "1m", target: &cfg.LivePollInterval},
		{key: "LIVE_PENDING_INTERVAL", fallback: "10m", target: &cfg.LivePendingInterval},
		{key: "LIVE_PRE_KICKOFF_LEAD", fallback: "15m", target: &cfg.LivePreKickoffLead},
		{key: "LIVE_MAX_BACKOFF", fallback: "30m", target: &cfg.LiveMaxBackoff},
		{key: "LIVE_RATE_LIMIT_COOLDOWN", fallback: "2m", target: &cfg.LiveRateLimitWait},
		{key: "LIVE_MALFORMED_COOLDOWN", fallback: "5m", target: &cfg.LiveMalformedWait},
		{key: "LIVE_TICK_TIMEOUT", fallback: "45s", target: &cfg.LiveTickTimeout},
		{key: "LIVE_REGISTRY_REFRESH", fallback: "5m", target: &cfg.LiveRegistryRefresh},
	}
	for _, item := range durations {
		value, err := positiveDuration(item.key, item.fallback)
		if err != nil {
			return err
		}
		*item.target = value
	}
	if cfg.LiveMaxBackoff < cfg.LivePollInterval {
		return fmt.Errorf("LIVE_MAX_BACKOFF must be >= LIVE_POLL_INTERVAL")
	}

	failureCount, err := getEnvAsInt("LIVE_FAILURE_THRESHOLD", 3)
	if err != nil {
		return fmt.Errorf("parse LIVE_FAILURE_THRESHOLD: %w", err)
	}
	if failureCount < 1 {
		return fmt.Errorf("LIVE_FAILURE_THRESHOLD must be >= 1")
	}
	fetchWorkers, err := getEnvAsInt("LIVE_FETCH_WORKERS", 4)
	if err != nil {
		return fmt.Errorf("parse LIVE_FETCH_WORKERS: %w", err)
	}
	if fetchWorkers < 1 {
		return fmt.Errorf("LIVE_FETCH_WORKERS must be >= 1")
	}

	timezone := strings.TrimSpace(getEnv("LIVE_TIMEZONE", "Europe/Dublin"))
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("parse LIVE_TIMEZONE: %w", err)
	}

	cfg.APIDailyLimit = dailyLimit
	cfg.APIPerMinuteLimit = perMinuteLimit
	cfg.APIStatsFile = strings.TrimSpace(getEnv("API_STATS_FILE", "api_stats.json"))
	cfg.APIAdaptivePolling = adaptivePolling
	cfg.LiveFailureCount = failureCount
	cfg.LiveFetchWorkers = fetchWorkers
	cfg.LiveTimezone = location
	return nil
}

func loadThreadStore(cfg *Config) error {
	store := strings.ToLower(strings.TrimSpace(getEnv("THREAD_STORE", ThreadStoreFile)))
	switch store {
	case ThreadStoreFile, ThreadStorePostgres:
	default:
		return fmt.Errorf("invalid THREAD_STORE %q: valid values are %s, %s", store, ThreadStoreFile, ThreadStorePostgres)
	}

	storeFile := strings.TrimSpace(getEnv("THREAD_STORE_FILE", "match_cache.json"))
	if store == ThreadStoreFile && storeFile == "" {
		return fmt.Errorf("THREAD_STORE_FILE is required when THREAD_STORE=file")
	}
	dbURL := strings.TrimSpace(getEnv("DB_URL", ""))
	if store == ThreadStorePostgres && dbURL == "" {
		return fmt.Errorf("DB_URL is required when THREAD_STORE=postgres")
	}
	dbDisablePreparedBinary, err := strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "true"))
	if err != nil {
		return fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY_RESULT: %w", err)
	}

	cfg.ThreadStore = store
	cfg.ThreadStoreFile = storeFile
	cfg.DBURL = dbURL
	cfg.DBDisablePreparedBinary = dbDisablePreparedBinary
	return nil
}

func loadReddit(cfg *Config) error {
	enabled, err := strconv.ParseBool(getEnv("REDDIT_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse REDDIT_ENABLED: %w", err)
	}
	timeout, err := positiveDuration("REDDIT_TIMEOUT", "10s")
	if err != nil {
		return err
	}
	circuit, err := loadCircuit("REDDIT", "60s")
	if err != nil {
		return err
	}

	cfg.RedditEnabled = enabled
	cfg.RedditAuthURL = strings.TrimSpace(getEnv("REDDIT_AUTH_URL", "https://www.reddit.com/api/v1/access_token"))
	cfg.RedditBaseURL = strings.TrimSpace(getEnv("REDDIT_BASE_URL", "https://oauth.reddit.com"))
	cfg.RedditClientID = strings.TrimSpace(getEnv("REDDIT_CLIENT_ID", ""))
	cfg.RedditClientSecret = strings.TrimSpace(getEnv("REDDIT_CLIENT_SECRET", ""))
	cfg.RedditUsername = strings.TrimSpace(getEnv("REDDIT_USERNAME", ""))
	cfg.RedditPassword = getEnv("REDDIT_PASSWORD", "")
	cfg.RedditUserAgent = strings.TrimSpace(getEnv("REDDIT_USER_AGENT", "matchthread-live/"+cfg.ServiceVersion))
	cfg.RedditTimeout = timeout
	cfg.RedditCircuitEnabled = circuit.enabled
	cfg.RedditCircuitFailureCount = circuit.failureCount
	cfg.RedditCircuitOpenTimeout = circuit.openTimeout
	cfg.RedditCircuitHalfOpenMaxReq = circuit.halfOpenMaxReq

	if enabled {
		required := map[string]string{
			"REDDIT_CLIENT_ID":     cfg.RedditClientID,
			"REDDIT_CLIENT_SECRET": cfg.RedditClientSecret,
			"REDDIT_USERNAME":      cfg.RedditUsername,
			"REDDIT_PASSWORD":      cfg.RedditPassword,
		}
		for _, key := range []string{"REDDIT_CLIENT_ID", "REDDIT_CLIENT_SECRET", "REDDIT_USERNAME", "REDDIT_PASSWORD"} {
			if strings.TrimSpace(required[key]) == "" {
				return fmt.Errorf("%s is required when REDDIT_ENABLED=true", key)
			}
		}
	}
	return nil
}

type circuitSettings struct {
	enabled        bool
	failureCount   int
	openTimeout    time.Duration
	halfOpenMaxReq int
}

func loadCircuit(prefix, openTimeoutFallback string) (circuitSettings, error) {
	enabled, err := strconv.ParseBool(getEnv(prefix+"_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return circuitSettings{}, fmt.Errorf("parse %s_CIRCUIT_ENABLED: %w", prefix, err)
	}
	failureCount, err := getEnvAsInt(prefix+"_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return circuitSettings{}, fmt.Errorf("parse %s_CIRCUIT_FAILURE_COUNT: %w", prefix, err)
	}
	if failureCount < 1 {
		return circuitSettings{}, fmt.Errorf("%s_CIRCUIT_FAILURE_COUNT must be >= 1", prefix)
	}
	openTimeout, err := positiveDuration(prefix+"_CIRCUIT_OPEN_TIMEOUT", openTimeoutFallback)
	if err != nil {
		return circuitSettings{}, err
	}
	halfOpenMaxReq, err := getEnvAsInt(prefix+"_CIRCUIT_HALF_OPEN_MAX_REQ", 1)
	if err != nil {
		return circuitSettings{}, fmt.Errorf("parse %s_CIRCUIT_HALF_OPEN_MAX_REQ: %w", prefix, err)
	}
	if halfOpenMaxReq < 1 {
		return circuitSettings{}, fmt.Errorf("%s_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1", prefix)
	}
	return circuitSettings{
		enabled:        enabled,
		failureCount:   failureCount,
		openTimeout:    openTimeout,
		halfOpenMaxReq: halfOpenMaxReq,
	}, nil
}

func positiveDuration(key, fallback string) (time.Duration, error) {
	value, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return value, nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
