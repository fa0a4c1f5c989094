package donation

import (
	"strings"
	"sync"
	"time"

	"donato/backend/internal/models"
)

// PendingStore keeps the order a browser session started until the gateway sends the
// donor back. It lives in process memory; entries expire after ttl.
type PendingStore struct {
	mu              sync.Mutex
	ttl             time.Duration
	now             func() time.Time
	items           map[string]pendingEntry
	lastCleanup     time.Time
	cleanupInterval time.Duration
}

type pendingEntry struct {
	order     models.PendingOrder
	expiresAt time.Time
}

// NewPendingStore creates a store whose entries expire after ttl.
func NewPendingStore(ttl time.Duration) *PendingStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &PendingStore{
		ttl:             ttl,
		now:             time.Now,
		items:           make(map[string]pendingEntry),
		lastCleanup:     time.Now(),
		cleanupInterval: ttl,
	}
}

// Put replaces whatever order the session had pending.
func (s *PendingStore) Put(sessionID string, order models.PendingOrder) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeCleanup(now)
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	s.items[sessionID] = pendingEntry{order: order, expiresAt: now.Add(s.ttl)}
}

// Get reads the pending order without clearing it.
func (s *PendingStore) Get(sessionID string) (models.PendingOrder, bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[strings.TrimSpace(sessionID)]
	if !ok || !now.Before(entry.expiresAt) {
		return models.PendingOrder{}, false
	}
	return entry.order, true
}

// Consume returns the pending order and clears it; a second call reports nothing.
func (s *PendingStore) Consume(sessionID string) (models.PendingOrder, bool) {
	sessionID = strings.TrimSpace(sessionID)
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[sessionID]
	if !ok {
		return models.PendingOrder{}, false
	}
	delete(s.items, sessionID)
	if !now.Before(entry.expiresAt) {
		return models.PendingOrder{}, false
	}
	return entry.order, true
}

// Len returns the number of stored orders, expired ones included until cleanup.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *PendingStore) maybeCleanup(now time.Time) {
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}
	for key, entry := range s.items {
		if !now.Before(entry.expiresAt) {
			delete(s.items, key)
		}
	}
	s.lastCleanup = now
}
