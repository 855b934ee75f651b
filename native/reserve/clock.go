package reserve

import (
	"sync"
	"time"
)

// Clock supplies the timestamp used for cooldown checks. Implementations must
// never go backwards.
type Clock interface {
	Now() uint64
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() uint64

func (f ClockFunc) Now() uint64 { return f() }

// MonotonicClock clamps a source so readings never decrease, even when the
// wall clock is stepped backwards.
type MonotonicClock struct {
	mu     sync.Mutex
	source func() uint64
	last   uint64
}

// NewMonotonicClock wraps source. A nil source reads Unix seconds.
func NewMonotonicClock(source func() uint64) *MonotonicClock {
	if source == nil {
		source = func() uint64 { return uint64(time.Now().Unix()) }
	}
	return &MonotonicClock{source: source}
}

func (c *MonotonicClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now := c.source(); now > c.last {
		c.last = now
	}
	return c.last
}
