package resilience

import (
	"time"

	"github.com/sells-group/leadgen/internal/config"
)

// FromRetryConfig builds a RetryConfig from the retry section, falling back
// to defaults for unset values.
func FromRetryConfig(c config.RetryConfig) RetryConfig {
	cfg := DefaultRetryConfig()
	if c.MaxAttempts > 0 {
		cfg.MaxAttempts = c.MaxAttempts
	}
	if c.InitialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(c.InitialBackoffMs) * time.Millisecond
	}
	if c.MaxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(c.MaxBackoffMs) * time.Millisecond
	}
	return cfg
}

// FromEnrichmentConfig builds the breaker guarding the enrichment endpoint.
// Only transient failures count toward opening it; a 404 for one place says
// nothing about the endpoint's health.
func FromEnrichmentConfig(c config.EnrichmentConfig) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if c.BreakerFailures > 0 {
		cfg.FailureThreshold = c.BreakerFailures
	}
	if c.BreakerResetSecs > 0 {
		cfg.ResetTimeout = time.Duration(c.BreakerResetSecs) * time.Second
	}
	cfg.ShouldTrip = IsTransient
	return cfg
}
