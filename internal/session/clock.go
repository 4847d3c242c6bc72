package session

import "time"

// gameClock maps wall time onto pause-adjusted game time. Wall time is
// always passed in so tests and simulations can drive it directly.
type gameClock struct {
	origin      time.Time
	paused      bool
	pausedAt    time.Time
	totalPaused time.Duration
}

func (c *gameClock) start(now time.Time) {
	*c = gameClock{origin: now}
}

// at returns game time for wall time now. While paused it is frozen at the
// pause point.
func (c *gameClock) at(now time.Time) time.Duration {
	if c.paused {
		now = c.pausedAt
	}
	return now.Sub(c.origin) - c.totalPaused
}

func (c *gameClock) pause(now time.Time) {
	if c.paused {
		return
	}
	c.paused = true
	c.pausedAt = now
}

func (c *gameClock) resume(now time.Time) {
	if !c.paused {
		return
	}
	if d := now.Sub(c.pausedAt); d > 0 {
		c.totalPaused += d
	}
	c.paused = false
	c.pausedAt = time.Time{}
}

// pausedFor returns the accumulated pause time, including a running pause.
func (c *gameClock) pausedFor(now time.Time) time.Duration {
	total := c.totalPaused
	if c.paused && now.After(c.pausedAt) {
		total += now.Sub(c.pausedAt)
	}
	return total
}
