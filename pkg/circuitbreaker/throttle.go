package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pollum-io/sysweb3-sub000/pkg/stats"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxRequests is the number of requests admitted per window once
	// the throttle is recovering from a server error.
	DefaultMaxRequests = 10
	// DefaultCooldown is the length of the throttle window.
	DefaultCooldown = 85 * time.Second
	// DefaultMaxRetries is the number of times a retriable request is sent
	// again after a server error.
	DefaultMaxRetries = 1
)

// ThrottleOpts is the struct given to NewThrottle.
type ThrottleOpts struct {
	Name        string
	MaxRequests int
	Cooldown    time.Duration
	// MaxRetries bounds the retries of a retriable request, each one
	// preceded by a cooldown. Zero means DefaultMaxRetries, a negative
	// value disables retries.
	MaxRetries int
	// IsServerError tells which errors must open the throttle. Any other
	// error is returned to the caller without affecting the throttle.
	IsServerError func(error) bool
}

// Throttle admits requests to a rate limited remote. Once a server error is
// observed it refuses new requests until the cooldown elapses, then admits
// at most MaxRequests per cooldown window until the remote recovers. Callers
// refused by the breaker wait for the backoff, while a remote that keeps
// failing is given up on after MaxRetries cooldowns.
type Throttle struct {
	name          string
	cooldown      time.Duration
	maxRetries    int
	maxRefusals   int
	isServerError func(error) bool
	breaker       *gobreaker.CircuitBreaker
	limiter       *rate.Limiter

	lock          sync.RWMutex
	cooldownUntil time.Time
}

// NewThrottle returns a throttle, filling zero options with defaults.
func NewThrottle(opts ThrottleOpts) *Throttle {
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = DefaultMaxRequests
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.IsServerError == nil {
		opts.IsServerError = IsServerError
	}
	if opts.Name == "" {
		opts.Name = "throttle"
	}

	t := &Throttle{
		name:          opts.Name,
		cooldown:      opts.Cooldown,
		maxRetries:    opts.MaxRetries,
		maxRefusals:   opts.MaxRequests * (opts.MaxRetries + 1),
		isServerError: opts.IsServerError,
		limiter: rate.NewLimiter(
			rate.Every(opts.Cooldown/time.Duration(opts.MaxRequests)),
			opts.MaxRequests,
		),
	}
	t.breaker = NewCircuitBreaker(
		opts.Name, opts.MaxRequests, opts.Cooldown, t.onStateChange,
	)
	return t
}

// Do runs fn once admitted. When retry is true, server errors are retried
// after the cooldown at most MaxRetries times. Writes must pass retry=false
// so they are sent at most once.
func (t *Throttle) Do(
	ctx context.Context, retry bool, fn func(ctx context.Context) error,
) error {
	retries, refusals := 0, 0
	for {
		if err := t.waitCooldown(ctx); err != nil {
			return err
		}

		var callErr error
		_, err := t.breaker.Execute(func() (interface{}, error) {
			callErr = fn(ctx)
			if callErr != nil && t.isServerError(callErr) {
				return nil, callErr
			}
			return nil, nil
		})

		switch {
		case errors.Is(err, gobreaker.ErrOpenState),
			errors.Is(err, gobreaker.ErrTooManyRequests):
			stats.ThrottleEvents.WithLabelValues(t.name, "refused").Inc()
			if refusals >= t.maxRefusals {
				return err
			}
			refusals++
			if err := t.limiter.Wait(ctx); err != nil {
				return err
			}
			continue
		case err != nil:
			stats.ThrottleEvents.WithLabelValues(t.name, "server_error").Inc()
			if !retry || retries >= t.maxRetries {
				return err
			}
			retries++
			log.WithError(err).Debugf("%s: retrying after cooldown (%d/%d)", t.name, retries, t.maxRetries)
			continue
		}

		stats.ThrottleEvents.WithLabelValues(t.name, "admitted").Inc()
		return callErr
	}
}

// CooldownRemaining returns how long the throttle will keep refusing
// requests.
func (t *Throttle) CooldownRemaining() time.Duration {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if remaining := time.Until(t.cooldownUntil); remaining > 0 {
		return remaining
	}
	return 0
}

func (t *Throttle) waitCooldown(ctx context.Context) error {
	remaining := t.CooldownRemaining()
	if remaining <= 0 {
		return nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *Throttle) onStateChange(name string, from, to gobreaker.State) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if to == gobreaker.StateOpen {
		t.cooldownUntil = time.Now().Add(t.cooldown)
		log.Warnf("%s: remote returned a server error, cooling down for %s", name, t.cooldown)
	}
	stats.ThrottleEvents.WithLabelValues(name, to.String()).Inc()
}
