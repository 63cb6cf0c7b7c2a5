package schedule

import (
	"fmt"
	"sync"
	"time"
)

// TickInterval is how often a running countdown decrements.
const TickInterval = time.Second

// Countdown tracks the time left in an active window. It decrements by one
// second per tick, never goes below zero and closes Expired exactly once
// when it reaches zero. A stopped countdown neither ticks nor signals.
type Countdown struct {
	mu        sync.Mutex
	remaining time.Duration
	started   bool
	stopped   bool

	expired    chan struct{}
	expireOnce sync.Once
	done       chan struct{}
	stopOnce   sync.Once
}

// NewCountdown creates a countdown to end as seen at now. If end is not
// after now the countdown starts at zero and is already expired.
func NewCountdown(end, now time.Time) *Countdown {
	c := &Countdown{
		remaining: end.Sub(now),
		expired:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	if c.remaining <= 0 {
		c.remaining = 0
		c.expire()
	}
	return c
}

// Start begins ticking once per TickInterval in a background goroutine.
// Calling Start more than once, or after Stop, has no effect.
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.started || c.stopped || c.remaining == 0 {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.run()
}

func (c *Countdown) run() {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.Tick() == 0 {
				return
			}
		}
	}
}

// Tick advances the countdown by one second and returns what is left.
func (c *Countdown) Tick() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return c.remaining
	}

	c.remaining -= time.Second
	if c.remaining <= 0 {
		c.remaining = 0
		c.expire()
	}
	return c.remaining
}

// expire must be called with c.mu held or before c is shared.
func (c *Countdown) expire() {
	c.expireOnce.Do(func() { close(c.expired) })
}

// Remaining returns the time left, never negative.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Expired is closed once the countdown reaches zero.
func (c *Countdown) Expired() <-chan struct{} {
	return c.expired
}

// Done is closed when the countdown is stopped.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

// Stop cancels the countdown. It is safe to call more than once.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.stopOnce.Do(func() { close(c.done) })
}

// String renders the remaining time as HH:MM:SS.
func (c *Countdown) String() string {
	return FormatRemaining(c.Remaining())
}

// FormatRemaining renders d as zero-padded HH:MM:SS. Hours grow past two
// digits only when d exceeds 99:59:59. Negative values render as zero.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
