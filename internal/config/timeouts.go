package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	Ping              time.Duration // Liveness probe timeout
	Collect           time.Duration // Per-provider template listing timeout, 0 disables
	Tracker           time.Duration // Per-request tracker API timeout
	RetryMaxAttempts  int           // Tracker retries on transient errors
	RetryInitialDelay time.Duration // Initial delay between tracker retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - TRACKSYNC_TIMEOUT_PING (default: 2s)
//   - TRACKSYNC_TIMEOUT_COLLECT (default: 10m)
//   - TRACKSYNC_TIMEOUT_TRACKER (default: 30s)
//   - TRACKSYNC_RETRY_MAX_ATTEMPTS (default: 2)
//   - TRACKSYNC_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Ping:              parseDuration("TRACKSYNC_TIMEOUT_PING", 2*time.Second),
		Collect:           parseDuration("TRACKSYNC_TIMEOUT_COLLECT", 10*time.Minute),
		Tracker:           parseDuration("TRACKSYNC_TIMEOUT_TRACKER", 30*time.Second),
		RetryMaxAttempts:  parseInt("TRACKSYNC_RETRY_MAX_ATTEMPTS", 2),
		RetryInitialDelay: parseDuration("TRACKSYNC_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return defaultVal
	}

	return d
}

// parseInt parses a non-negative integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}

	return i
}
