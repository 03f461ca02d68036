package pipeline

import (
	"sync"
	"time"
)

// coolDownTracker counts consecutive signal-unavailable pipeline runs
// per symbol. After the configured streak the symbol enters a cool-down
// window during which candidates short-circuit without touching the
// downstream gates.
type coolDownTracker struct {
	mu       sync.Mutex
	streak   map[string]int
	until    map[string]time.Time
	abstains int
	window   time.Duration
	now      func() time.Time
}

func newCoolDownTracker(abstains int, window time.Duration) *coolDownTracker {
	return &coolDownTracker{
		streak:   make(map[string]int),
		until:    make(map[string]time.Time),
		abstains: abstains,
		window:   window,
		now:      time.Now,
	}
}

// inCoolDown reports whether the symbol is currently short-circuited.
func (t *coolDownTracker) inCoolDown(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	deadline, ok := t.until[symbol]
	if !ok {
		return false
	}
	if t.now().After(deadline) {
		delete(t.until, symbol)
		delete(t.streak, symbol)
		return false
	}
	return true
}

// noteUnavailable records one signal-unavailable run and returns true
// when the streak just tripped the cool-down.
func (t *coolDownTracker) noteUnavailable(symbol string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streak[symbol]++
	if t.streak[symbol] >= t.abstains {
		t.until[symbol] = t.now().Add(t.window)
		return true
	}
	return false
}

// noteHealthy resets the streak after a run with signals present.
func (t *coolDownTracker) noteHealthy(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.streak, symbol)
}

// active returns the number of symbols currently cooling down.
func (t *coolDownTracker) active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, deadline := range t.until {
		if t.now().Before(deadline) {
			n++
		}
	}
	return n
}
