// Package ratelimit provides the per-user admission gate in front of the AI
// dispatcher. It is a UX throttle, not a security control: state is held in
// process memory and is lost on restart.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultLimit is the number of chat turns a user may start per rolling
// minute.
const DefaultLimit = 10

const window = time.Minute

// A Limiter admits up to limit requests per user within a rolling window.
// Each admission expires independently one window after it was granted, so
// capacity is restored gradually rather than at fixed window boundaries.
type Limiter struct {
	limit int
	now   func() time.Time

	mu       sync.Mutex
	admitted map[string][]time.Time
}

// New returns a Limiter admitting up to limit requests per user per minute.
// A limit of zero or less falls back to DefaultLimit.
func New(limit int) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Limiter{
		limit:    limit,
		now:      time.Now,
		admitted: make(map[string][]time.Time),
	}
}

// Allow reports whether the user may start another request now, and records
// the admission when it does. Rejected calls record nothing.
func (l *Limiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.admitted[userID][:0]
	for _, t := range l.admitted[userID] {
		if now.Sub(t) < window {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.admitted[userID] = recent
		return false
	}

	l.admitted[userID] = append(recent, now)
	return true
}
