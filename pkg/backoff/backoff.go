// Package backoff provides exponential backoff calculation for retry loops.
package backoff

import (
	"math"
	"time"
)

// Config for exponential backoff. Zero values use defaults.
type Config struct {
	Initial time.Duration // default: 100ms
	Max     time.Duration // default: 5s
}

// Exponential returns the wait before the given retry attempt.
// Attempt 1 waits Initial, attempt 2 waits Initial*2, doubling up to Max.
func Exponential(attempt int, cfg *Config) time.Duration {
	initial := 100 * time.Millisecond
	maxWait := 5 * time.Second
	if cfg != nil {
		if cfg.Initial > 0 {
			initial = cfg.Initial
		}
		if cfg.Max > 0 {
			maxWait = cfg.Max
		}
	}

	if attempt < 1 {
		return initial
	}
	wait := float64(initial) * math.Pow(2.0, float64(attempt-1))
	if wait > float64(maxWait) {
		wait = float64(maxWait)
	}
	return time.Duration(wait)
}
