package ratelimit

import (
	"math"
	"sync"
	"time"
)

const (
	MaxAttempts = 3
	Cooldown    = 30 * time.Second
)

// Result of a Check. WaitSeconds is set only when the caller is blocked.
type Result struct {
	Allowed     bool `json:"allowed"`
	WaitSeconds int  `json:"waitSeconds,omitempty"`
}

// entry holds a user's failed attempts and the time of the last one.
type entry struct {
	attempts    int
	lastAttempt time.Time
}

// Limiter counts failed PIN attempts per user in memory. Counters are lost
// on restart.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(opts ...Option) *Limiter {
	l := &Limiter{entries: make(map[string]*entry), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check reports whether userID may try again. A block ends, and the counter
// resets, once Cooldown has passed since the last failure.
func (l *Limiter) Check(userID string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[userID]
	if !ok || e.attempts < MaxAttempts {
		return Result{Allowed: true}
	}

	elapsed := l.now().Sub(e.lastAttempt)
	if elapsed >= Cooldown {
		delete(l.entries, userID)
		return Result{Allowed: true}
	}
	remaining := Cooldown - elapsed
	return Result{Allowed: false, WaitSeconds: int(math.Ceil(remaining.Seconds()))}
}

func (l *Limiter) RecordFailedAttempt(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[userID]
	if !ok {
		e = &entry{}
		l.entries[userID] = e
	}
	e.attempts++
	e.lastAttempt = l.now()
}

func (l *Limiter) Reset(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, userID)
}

func (l *Limiter) AttemptCount(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[userID]; ok {
		return e.attempts
	}
	return 0
}

func (l *Limiter) IsRateLimited(userID string) bool {
	return !l.Check(userID).Allowed
}

func (l *Limiter) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*entry)
}

// CleanupExpired drops entries whose last failure is older than Cooldown and
// returns how many were removed.
func (l *Limiter) CleanupExpired() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, e := range l.entries {
		if now.Sub(e.lastAttempt) >= Cooldown {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}
