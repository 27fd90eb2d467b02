package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds admission limits. Zero values disable the corresponding limit.
type Config struct {
	// MaxConcurrentQueries caps the number of queries scoring at once.
	MaxConcurrentQueries int64

	// QueriesPerSecond is the sustained query admission rate.
	QueriesPerSecond float64

	// QueryBurst is the token bucket size for QueriesPerSecond.
	// If 0, defaults to 1.
	QueryBurst int

	// IOLimitBytesPerSec throttles snapshot reads and writes.
	IOLimitBytesPerSec int64
}

// Enabled reports whether any limit is configured.
func (c Config) Enabled() bool {
	return c.MaxConcurrentQueries > 0 || c.QueriesPerSecond > 0 || c.IOLimitBytesPerSec > 0
}

// Controller applies query admission and IO limits.
type Controller struct {
	cfg Config

	querySem     *semaphore.Weighted // nil if unlimited
	queryLimiter *rate.Limiter       // nil if unlimited
	inFlight     atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MaxConcurrentQueries > 0 {
		c.querySem = semaphore.NewWeighted(cfg.MaxConcurrentQueries)
	}

	if cfg.QueriesPerSecond > 0 {
		burst := cfg.QueryBurst
		if burst <= 0 {
			burst = 1
		}
		c.queryLimiter = rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), burst)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireQuery waits for a rate token and a concurrency slot.
// On success the caller must call ReleaseQuery.
func (c *Controller) AcquireQuery(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.queryLimiter != nil {
		if err := c.queryLimiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.querySem != nil {
		if err := c.querySem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	c.inFlight.Add(1)
	return nil
}

// TryAcquireQuery is the non-blocking form of AcquireQuery.
func (c *Controller) TryAcquireQuery() bool {
	if c == nil {
		return true
	}
	if c.querySem != nil && !c.querySem.TryAcquire(1) {
		return false
	}
	if c.queryLimiter != nil && !c.queryLimiter.Allow() {
		if c.querySem != nil {
			c.querySem.Release(1)
		}
		return false
	}
	c.inFlight.Add(1)
	return true
}

// ReleaseQuery releases a slot taken by AcquireQuery or TryAcquireQuery.
func (c *Controller) ReleaseQuery() {
	if c == nil {
		return
	}
	if c.querySem != nil {
		c.querySem.Release(1)
	}
	c.inFlight.Add(-1)
}

// InFlight returns the number of admitted queries not yet released.
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	// WaitN rejects requests above the burst; split them.
	burst := c.ioLimiter.Burst()
	for bytes > burst {
		if err := c.ioLimiter.WaitN(ctx, burst); err != nil {
			return err
		}
		bytes -= burst
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}
