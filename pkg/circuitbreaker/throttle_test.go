package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testCooldown = 50 * time.Millisecond

var errServer = &StatusError{StatusCode: http.StatusBadGateway, Body: "bad gateway"}

func newTestThrottle() *Throttle {
	return NewThrottle(ThrottleOpts{
		Name:        "test",
		MaxRequests: 2,
		Cooldown:    testCooldown,
	})
}

func TestIsServerError(t *testing.T) {
	require.True(t, IsServerError(errServer))
	require.True(t, IsServerError(&StatusError{StatusCode: http.StatusTooManyRequests}))
	require.False(t, IsServerError(&StatusError{StatusCode: http.StatusBadRequest}))
	require.False(t, IsServerError(errors.New("boom")))
	require.False(t, IsServerError(nil))
}

func TestThrottle(t *testing.T) {
	t.Run("passes through results", testThrottlePassThrough())
	t.Run("server error starts cooldown", testThrottleCooldown())
	t.Run("retries after cooldown", testThrottleRetry())
	t.Run("gives up after max retries", testThrottleGiveUp())
	t.Run("context cancelled while cooling down", testThrottleCancel())
}

func testThrottlePassThrough() func(t *testing.T) {
	return func(t *testing.T) {
		throttle := newTestThrottle()

		calls := 0
		err := throttle.Do(context.Background(), true, func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 1, calls)

		clientErr := &StatusError{StatusCode: http.StatusNotFound}
		err = throttle.Do(context.Background(), true, func(context.Context) error {
			calls++
			return clientErr
		})
		require.ErrorIs(t, err, clientErr)
		require.Equal(t, 2, calls)
		require.Zero(t, throttle.CooldownRemaining())
	}
}

func testThrottleCooldown() func(t *testing.T) {
	return func(t *testing.T) {
		throttle := newTestThrottle()

		calls := 0
		err := throttle.Do(context.Background(), false, func(context.Context) error {
			calls++
			return errServer
		})
		require.ErrorIs(t, err, errServer)
		require.Equal(t, 1, calls)
		require.Greater(t, throttle.CooldownRemaining(), time.Duration(0))

		start := time.Now()
		err = throttle.Do(context.Background(), false, func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 2, calls)
		require.GreaterOrEqual(t, time.Since(start), testCooldown/2)
	}
}

func testThrottleRetry() func(t *testing.T) {
	return func(t *testing.T) {
		throttle := newTestThrottle()

		calls := 0
		start := time.Now()
		err := throttle.Do(context.Background(), true, func(context.Context) error {
			calls++
			if calls == 1 {
				return errServer
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 2, calls)
		require.GreaterOrEqual(t, time.Since(start), testCooldown/2)
	}
}

func testThrottleCancel() func(t *testing.T) {
	return func(t *testing.T) {
		throttle := NewThrottle(ThrottleOpts{Cooldown: time.Minute})

		err := throttle.Do(context.Background(), false, func(context.Context) error {
			return errServer
		})
		require.Error(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		calls := 0
		err = throttle.Do(ctx, true, func(context.Context) error {
			calls++
			return nil
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Zero(t, calls)
	}
}

func testThrottleGiveUp() func(t *testing.T) {
	return func(t *testing.T) {
		throttle := newTestThrottle()

		calls := 0
		err := throttle.Do(context.Background(), true, func(context.Context) error {
			calls++
			return errServer
		})
		require.ErrorIs(t, err, errServer)
		require.Equal(t, 1+DefaultMaxRetries, calls)

		noRetries := NewThrottle(ThrottleOpts{
			MaxRequests: 2,
			Cooldown:    testCooldown,
			MaxRetries:  -1,
		})
		calls = 0
		err = noRetries.Do(context.Background(), true, func(context.Context) error {
			calls++
			return errServer
		})
		require.ErrorIs(t, err, errServer)
		require.Equal(t, 1, calls)
	}
}
