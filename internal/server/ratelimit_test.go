package server

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is advanced by tests.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newLimiterWithClock(perMinute, perHour int, bytesPerDay int64) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(perMinute, perHour, bytesPerDay)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_NoLimits(t *testing.T) {
	rl := NewRateLimiter(0, 0, 0)

	for range 100 {
		require.NoError(t, rl.Allow("client", 1<<20))
	}
	usage := rl.Usage("client")
	assert.Equal(t, 100, usage.RequestsThisMinute)
	assert.Equal(t, int64(100<<20), usage.BytesToday)
}

func TestRateLimiter_PerMinute(t *testing.T) {
	rl, clock := newLimiterWithClock(2, 0, 0)

	require.NoError(t, rl.Allow("client", 0))
	clock.advance(10 * time.Second)
	require.NoError(t, rl.Allow("client", 0))

	err := rl.Allow("client", 0)
	var limitErr *RateLimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, "minute", limitErr.Type)
	assert.Equal(t, int64(2), limitErr.Limit)
	assert.Equal(t, 50*time.Second, limitErr.RetryAfter)

	// Rejected requests are not counted.
	assert.Equal(t, 2, rl.Usage("client").RequestsThisMinute)

	clock.advance(50 * time.Second)
	assert.NoError(t, rl.Allow("client", 0))
}

func TestRateLimiter_PerHour(t *testing.T) {
	rl, clock := newLimiterWithClock(0, 3, 0)

	for range 3 {
		require.NoError(t, rl.Allow("client", 0))
		clock.advance(5 * time.Minute)
	}

	err := rl.Allow("client", 0)
	var limitErr *RateLimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, "hour", limitErr.Type)
	assert.Equal(t, 45*time.Minute, limitErr.RetryAfter)

	clock.advance(45 * time.Minute)
	assert.NoError(t, rl.Allow("client", 0))
}

func TestRateLimiter_DataPerDay(t *testing.T) {
	rl, clock := newLimiterWithClock(0, 0, 1000)

	require.NoError(t, rl.Allow("client", 600))
	err := rl.Allow("client", 500)
	var limitErr *RateLimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, "data", limitErr.Type)
	assert.Equal(t, int64(1000), limitErr.Limit)
	assert.Equal(t, 14*time.Hour, limitErr.RetryAfter)

	// A smaller upload still fits.
	require.NoError(t, rl.Allow("client", 400))

	clock.advance(14 * time.Hour)
	require.NoError(t, rl.Allow("client", 900))
	assert.Equal(t, int64(900), rl.Usage("client").BytesToday)
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl, _ := newLimiterWithClock(1, 0, 0)

	require.NoError(t, rl.Allow("a", 0))
	require.Error(t, rl.Allow("a", 0))
	require.NoError(t, rl.Allow("b", 0))
	assert.Equal(t, Usage{}, rl.Usage("unknown"))
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(50, 0, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("client", 0) == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestRateLimitError_Error(t *testing.T) {
	err := &RateLimitError{Type: "minute", Limit: 10, RetryAfter: 1500 * time.Millisecond}
	assert.Equal(t, "rate limit exceeded for minute (limit: 10, retry after: 2s)", err.Error())
}
