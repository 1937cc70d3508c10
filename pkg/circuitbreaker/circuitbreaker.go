package circuitbreaker

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// StatusError is returned by remotes that answered with a non 2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return http.StatusText(e.StatusCode) + ": " + e.Body
}

// IsServerError returns whether err carries a 5xx or 429 status, meaning
// that the remote itself is struggling rather than rejecting the request.
func IsServerError(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode >= http.StatusInternalServerError ||
		statusErr.StatusCode == http.StatusTooManyRequests
}

// NewCircuitBreaker is a factory function returning a *gobreaker.CircuitBreaker
// that trips on the first failure, stays open for cooldown, then lets through
// at most maxRequests probes before closing again.
func NewCircuitBreaker(
	name string, maxRequests int, cooldown time.Duration,
	onStateChange func(name string, from, to gobreaker.State),
) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(maxRequests),
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
		OnStateChange: onStateChange,
	})
}
