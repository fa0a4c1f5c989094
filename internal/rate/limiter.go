package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ClientLimiter keeps one token bucket per client key. Buckets idle for longer than
// idleTTL are dropped on the next call after a cleanup interval.
type ClientLimiter struct {
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	idleTTL     time.Duration
	now         func() time.Time
	items       map[string]*clientEntry
	lastCleanup time.Time
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewPerMinute allows perMinute requests per key, with bursts up to the same amount.
func NewPerMinute(perMinute int) *ClientLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &ClientLimiter{
		limit:       rate.Every(time.Minute / time.Duration(perMinute)),
		burst:       perMinute,
		idleTTL:     10 * time.Minute,
		now:         time.Now,
		items:       make(map[string]*clientEntry),
		lastCleanup: time.Now(),
	}
}

// Allow reports whether key may proceed now. A nil limiter allows everything.
func (l *ClientLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeCleanup(now)

	entry, ok := l.items[key]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.items[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

func (l *ClientLimiter) maybeCleanup(now time.Time) {
	if l.idleTTL <= 0 || now.Sub(l.lastCleanup) < l.idleTTL {
		return
	}
	for key, entry := range l.items {
		if now.Sub(entry.lastSeen) >= l.idleTTL {
			delete(l.items, key)
		}
	}
	l.lastCleanup = now
}
