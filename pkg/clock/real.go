package clock

import (
	"sync"
	"time"
)

// Real is a Clock backed by the standard library. It clamps against clock
// regression per spec: Now never returns a value earlier than one it has
// already returned, so a reading perturbed by an NTP step or a VM pause
// cannot make a deadline that was already reached look like it is still in
// the future.
type Real struct {
	mu  sync.Mutex
	max time.Time
}

// NewReal returns a ready-to-use Real clock.
func NewReal() *Real {
	return &Real{}
}

// Now implements Clock.
func (c *Real) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.Before(c.max) {
		return c.max
	}
	c.max = now
	return now
}

// AfterFunc implements Clock.
func (c *Real) AfterFunc(d time.Duration, fn func()) Timer {
	return realTimer{time.AfterFunc(d, fn)}
}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) Stop() bool {
	return r.t.Stop()
}
