package resilience

import "time"

const (
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 5 * time.Minute
)

// CircuitBreakerConfig configures one upstream breaker. Zero numeric fields
// fall back to five consecutive failures, a five minute open window and a
// single half-open probe. A disabled breaker is still built so its state can
// be reported, but callers skip Allow/Record.
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenMaxReq   int
}

func (c CircuitBreakerConfig) Normalize() CircuitBreakerConfig {
	if c.FailureThreshold < 1 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = defaultOpenTimeout
	}
	c.HalfOpenMaxReq = max(c.HalfOpenMaxReq, 1)
	return c
}
