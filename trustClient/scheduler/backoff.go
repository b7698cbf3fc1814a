package scheduler

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffConfig delays retries of failing sources exponentially. Disabled by
// default, in which case a failed source is retried on the next scan.
type BackoffConfig struct {
	Enabled bool
	Initial time.Duration
	Max     time.Duration
}

type backoffPolicy struct {
	initial time.Duration
	max     time.Duration
}

func newBackoffPolicy(cfg BackoffConfig, refresh time.Duration) *backoffPolicy {
	if !cfg.Enabled {
		return nil
	}
	p := &backoffPolicy{initial: cfg.Initial, max: cfg.Max}
	if p.max <= 0 || p.max > refresh {
		p.max = refresh
	}
	if p.initial <= 0 || p.initial > p.max {
		p.initial = p.max
	}
	return p
}

// delay returns the wait before the next attempt after failures consecutive
// failures. A nil policy never delays.
func (p *backoffPolicy) delay(failures int) time.Duration {
	if p == nil || failures <= 0 {
		return 0
	}
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.initial),
		backoff.WithMaxInterval(p.max),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
	var d time.Duration
	for i := 0; i < failures; i++ {
		d = b.NextBackOff()
		if d >= p.max {
			return p.max
		}
	}
	return d
}
