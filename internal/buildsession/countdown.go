package buildsession

import "time"

// Countdown tracks a download link's validity window. The time arithmetic
// lives here, separate from the ticking loop, so it can be tested without
// timers. Correctness after a restart depends only on the deadline, never
// on tick continuity.
type Countdown struct {
	deadline time.Time
}

// NewCountdown starts a window of the given length at now.
func NewCountdown(now time.Time, seconds int) *Countdown {
	return &Countdown{deadline: now.Add(time.Duration(seconds) * time.Second)}
}

// Remaining returns the whole seconds left at now, rounded up, never
// negative.
func (c *Countdown) Remaining(now time.Time) int {
	left := c.deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

// Deadline returns the instant the window closes.
func (c *Countdown) Deadline() time.Time {
	return c.deadline
}
