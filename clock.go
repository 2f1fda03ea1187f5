package distlimiter

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// Clock exposes the current wall-clock second as a single integer, cached
// and refreshed by a background tick. Every algorithm in this package is
// keyed on integer seconds read from Clock.Now; no other time primitive is
// used on the admission path, which avoids a syscall per request and makes
// the whole package deterministic under test via an injected clock.Clock
// (e.g. clock.NewMock()).
type Clock struct {
	underlying clock.Clock
	second     atomic.Int64
	stop       context.CancelFunc
	done       chan struct{}
}

// NewClock constructs a Clock backed by underlying, primes the cached
// second, and starts the background refresh goroutine. Call Stop when the
// process shuts down.
func NewClock(underlying clock.Clock) *Clock {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Clock{
		underlying: underlying,
		stop:       cancel,
		done:       make(chan struct{}),
	}
	c.second.Store(underlying.Now().Unix())
	go c.run(ctx)
	return c
}

// NewSystemClock returns a Clock driven by the real wall clock.
func NewSystemClock() *Clock {
	return NewClock(clock.New())
}

func (c *Clock) run(ctx context.Context) {
	defer close(c.done)
	ticker := c.underlying.Ticker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.second.Store(now.Unix())
		}
	}
}

// Now returns the cached current wall-clock second.
func (c *Clock) Now() int64 {
	return c.second.Load()
}

// Underlying returns the clock.Clock this Clock wraps, primarily so a
// Syncer can derive its own ticker from the same time source (and so tests
// can Advance a mock clock and have both Clock and Syncer observe it).
func (c *Clock) Underlying() clock.Clock {
	return c.underlying
}

// Stop halts the background refresh goroutine and waits for it to exit.
func (c *Clock) Stop() {
	c.stop()
	<-c.done
}
