package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter() (*Limiter, *time.Time) {
	clock := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	return New(WithClock(func() time.Time { return clock })), &clock
}

func fail(l *Limiter, userID string, n int) {
	for i := 0; i < n; i++ {
		l.RecordFailedAttempt(userID)
	}
}

func TestCheck(t *testing.T) {
	t.Run("First attempt allowed", func(t *testing.T) {
		l, _ := newTestLimiter()
		assert.Equal(t, Result{Allowed: true}, l.Check("user-1"))
	})

	t.Run("Two failures still allowed", func(t *testing.T) {
		l, _ := newTestLimiter()
		fail(l, "user-1", 2)
		assert.True(t, l.Check("user-1").Allowed)
		assert.False(t, l.IsRateLimited("user-1"))
	})

	t.Run("Blocked after three", func(t *testing.T) {
		l, _ := newTestLimiter()
		fail(l, "user-1", 3)
		assert.Equal(t, Result{Allowed: false, WaitSeconds: 30}, l.Check("user-1"))
		assert.True(t, l.IsRateLimited("user-1"))
	})

	t.Run("Wait rounds up", func(t *testing.T) {
		l, clock := newTestLimiter()
		fail(l, "user-1", 3)
		*clock = clock.Add(10*time.Second + 500*time.Millisecond)
		assert.Equal(t, 20, l.Check("user-1").WaitSeconds)
	})

	t.Run("Cooldown resets the counter", func(t *testing.T) {
		l, clock := newTestLimiter()
		fail(l, "user-1", 3)
		*clock = clock.Add(Cooldown)
		assert.True(t, l.Check("user-1").Allowed)
		assert.Zero(t, l.AttemptCount("user-1"))
	})

	t.Run("Users are isolated", func(t *testing.T) {
		l, _ := newTestLimiter()
		fail(l, "user-1", 3)
		assert.True(t, l.Check("user-2").Allowed)
		assert.False(t, l.Check("user-1").Allowed)
	})
}

func TestResetAndCounts(t *testing.T) {
	l, _ := newTestLimiter()
	assert.Zero(t, l.AttemptCount("user-1"))

	fail(l, "user-1", 3)
	assert.Equal(t, 3, l.AttemptCount("user-1"))

	l.Reset("user-1")
	l.Reset("non-existent")
	assert.True(t, l.Check("user-1").Allowed)
	assert.Zero(t, l.AttemptCount("user-1"))

	fail(l, "user-1", 1)
	fail(l, "user-2", 1)
	l.ClearAll()
	assert.Zero(t, l.AttemptCount("user-1"))
	assert.Zero(t, l.AttemptCount("user-2"))
}

func TestCleanupExpired(t *testing.T) {
	l, clock := newTestLimiter()
	fail(l, "old", 1)
	*clock = clock.Add(20 * time.Second)
	fail(l, "recent", 1)
	*clock = clock.Add(15 * time.Second)

	assert.Equal(t, 1, l.CleanupExpired())
	assert.Zero(t, l.AttemptCount("old"))
	assert.Equal(t, 1, l.AttemptCount("recent"))
}

func TestConcurrentFailures(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.RecordFailedAttempt("user-1")
			l.Check("user-1")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, l.AttemptCount("user-1"))
}
