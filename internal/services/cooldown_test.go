package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldownReserve(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	current := base

	c := NewCooldown(60 * time.Second)
	c.now = func() time.Time { return current }

	remaining, ok := c.Reserve("a@x.com")
	assert.True(t, ok)
	assert.Zero(t, remaining)

	// Same key inside the window is refused with the time left.
	current = base.Add(20 * time.Second)
	remaining, ok = c.Reserve("a@x.com")
	assert.False(t, ok)
	assert.Equal(t, 40*time.Second, remaining)

	// A refused attempt does not extend the window.
	current = base.Add(59 * time.Second)
	_, ok = c.Reserve("a@x.com")
	assert.False(t, ok)

	current = base.Add(60 * time.Second)
	remaining, ok = c.Reserve("a@x.com")
	assert.True(t, ok)
	assert.Zero(t, remaining)

	// A successful reserve starts a fresh window.
	current = base.Add(90 * time.Second)
	_, ok = c.Reserve("a@x.com")
	assert.False(t, ok)
}

func TestCooldownKeysIndependent(t *testing.T) {
	c := NewCooldown(time.Minute)

	_, ok := c.Reserve("a@x.com")
	assert.True(t, ok)

	_, ok = c.Reserve("b@x.com")
	assert.True(t, ok)

	_, ok = c.Reserve("a@x.com")
	assert.False(t, ok)
}
