package ai

import (
	"sync"
	"time"
)

// CooldownPolicy converts a provider's rate-limit hint into a cooldown span.
type CooldownPolicy struct {
	// Default applies when the provider gave no retry hint.
	Default time.Duration
	// Buffer is added on top of a provider hint.
	Buffer time.Duration
	// Max caps the resulting cooldown.
	Max time.Duration
}

// Duration resolves the cooldown for a rate-limit hit.
func (p CooldownPolicy) Duration(suggested time.Duration) time.Duration {
	if suggested <= 0 {
		return p.Default
	}
	d := suggested + p.Buffer
	if d > p.Max {
		d = p.Max
	}
	return d
}

// cooldownTracker remembers until when each provider/model pair is benched.
// Expired entries are dropped on read.
type cooldownTracker struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func newCooldownTracker() *cooldownTracker {
	return &cooldownTracker{until: make(map[string]time.Time), now: time.Now}
}

func cooldownKey(provider, model string) string { return provider + "/" + model }

// active returns the remaining cooldown for a model, if any.
func (t *cooldownTracker) active(provider, model string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := cooldownKey(provider, model)
	deadline, ok := t.until[key]
	if !ok {
		return 0, false
	}
	remaining := deadline.Sub(t.now())
	if remaining <= 0 {
		delete(t.until, key)
		return 0, false
	}
	return remaining, true
}

// set benches a model for d from now.
func (t *cooldownTracker) set(provider, model string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.until[cooldownKey(provider, model)] = t.now().Add(d)
}
