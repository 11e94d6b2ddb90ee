package services

import (
	"sync"
	"time"
)

// Cooldown tracks the last time a side-effecting action ran per key and
// enforces a minimum interval between runs. State is process-local; a
// restart resets all cooldowns.
type Cooldown struct {
	mu       sync.Mutex
	interval time.Duration
	lastSent map[string]time.Time
	now      func() time.Time
}

// NewCooldown constructs a Cooldown with the given minimum interval.
func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{
		interval: interval,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Reserve records an attempt for key. When the key is outside its window
// it returns (0, true) and starts a new window; otherwise it returns the
// remaining wait and false.
func (c *Cooldown) Reserve(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.lastSent[key]; ok {
		if elapsed := now.Sub(last); elapsed < c.interval {
			return c.interval - elapsed, false
		}
	}
	c.lastSent[key] = now
	return 0, true
}
