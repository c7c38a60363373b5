package resilience

import (
	"math"
	"strings"
	"time"
)

// Policy bounds the retries of one operation family.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// Backoff is the wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	wait := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt-1))
	if wait >= float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(wait)
}

func (p Policy) normalize(def Policy) Policy {
	out := p
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = def.InitialBackoff
	}
	if out.MaxBackoff <= 0 {
		out.MaxBackoff = def.MaxBackoff
	}
	if out.MaxBackoff < out.InitialBackoff {
		out.MaxBackoff = out.InitialBackoff
	}
	if out.Multiplier < 1.0 {
		out.Multiplier = def.Multiplier
	}
	return out
}

type BreakerConfig struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

// Config is the executor setup. Operations are named "<family>.<call>", for
// example "extract.reader" or "openai.speech"; Families overrides Retry for a
// family and unset fields fall back to Retry.
type Config struct {
	Retry    Policy
	Families map[string]Policy
	Breaker  BreakerConfig
}

func DefaultConfig() Config {
	return Config{
		Retry: Policy{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     400 * time.Millisecond,
			Multiplier:     2.0,
		},
		Families: map[string]Policy{
			// Image and speech calls are slow and billed per request.
			"openai": {MaxAttempts: 2, InitialBackoff: 500 * time.Millisecond, MaxBackoff: 2 * time.Second},
			// Reader proxies and transcript services throttle in bursts.
			"extract": {InitialBackoff: 250 * time.Millisecond, MaxBackoff: time.Second},
		},
		Breaker: BreakerConfig{
			Enabled:          true,
			MinRequests:      10,
			FailureRatio:     0.5,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	out := Config{
		Retry:    c.Retry.normalize(def.Retry),
		Families: make(map[string]Policy, len(c.Families)),
		Breaker:  c.Breaker,
	}
	for family, p := range c.Families {
		out.Families[strings.TrimSpace(family)] = p.normalize(out.Retry)
	}

	if out.Breaker.MinRequests == 0 {
		out.Breaker.MinRequests = def.Breaker.MinRequests
	}
	if out.Breaker.FailureRatio <= 0 || out.Breaker.FailureRatio > 1 {
		out.Breaker.FailureRatio = def.Breaker.FailureRatio
	}
	if out.Breaker.OpenTimeout <= 0 {
		out.Breaker.OpenTimeout = def.Breaker.OpenTimeout
	}
	if out.Breaker.HalfOpenMaxCalls == 0 {
		out.Breaker.HalfOpenMaxCalls = def.Breaker.HalfOpenMaxCalls
	}
	return out
}

// policyFor returns the family policy for operation, or the default one.
func (c Config) policyFor(operation string) Policy {
	family, _, _ := strings.Cut(operation, ".")
	if p, ok := c.Families[family]; ok {
		return p
	}
	return c.Retry
}
