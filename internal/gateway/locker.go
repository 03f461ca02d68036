package gateway

import (
	"context"
	"sync"
	"time"
)

// Locker is the short-lived dedup lock keyed by symbol+side+time-bucket.
// TryAcquire returns true exactly once per key within the TTL, so two
// concurrent evaluations can never both submit the same logical order.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryLocker is the in-process Locker used when no Redis is
// configured (single-operator deployments and tests).
type MemoryLocker struct {
	mu    sync.Mutex
	taken map[string]time.Time
	now   func() time.Time
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{taken: make(map[string]time.Time), now: time.Now}
}

func (l *MemoryLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if expiry, ok := l.taken[key]; ok && l.now().Before(expiry) {
		return false, nil
	}
	l.taken[key] = l.now().Add(ttl)
	// Opportunistic sweep so long sessions do not accumulate dead keys.
	for k, exp := range l.taken {
		if l.now().After(exp) {
			delete(l.taken, k)
		}
	}
	return true, nil
}
