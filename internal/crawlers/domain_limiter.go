package crawlers

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DomainLimiter bounds in-flight requests per host and enforces the
// configured inter-request delay, so a single slow host cannot absorb the
// whole concurrency budget of a tier.
type DomainLimiter struct {
	perDomain int
	delay     time.Duration

	mu       sync.Mutex
	slots    map[string]chan struct{}
	limiters map[string]*rate.Limiter
}

// NewDomainLimiter creates a limiter allowing perDomain concurrent requests
// per host, with delay between consecutive requests to the same host.
func NewDomainLimiter(perDomain int, delay time.Duration) *DomainLimiter {
	if perDomain < 1 {
		perDomain = 1
	}
	return &DomainLimiter{
		perDomain: perDomain,
		delay:     delay,
		slots:     make(map[string]chan struct{}),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Acquire blocks until a slot for host is free and the inter-request delay
// has elapsed, or the context is cancelled. Every successful Acquire must be
// paired with a Release.
func (d *DomainLimiter) Acquire(ctx context.Context, host string) error {
	host = strings.ToLower(host)

	d.mu.Lock()
	slot, ok := d.slots[host]
	if !ok {
		slot = make(chan struct{}, d.perDomain)
		d.slots[host] = slot
	}
	var limiter *rate.Limiter
	if d.delay > 0 {
		limiter, ok = d.limiters[host]
		if !ok {
			limiter = rate.NewLimiter(rate.Every(d.delay), 1)
			d.limiters[host] = limiter
		}
	}
	d.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			<-slot
			return err
		}
	}
	return nil
}

// Release frees the slot held for host.
func (d *DomainLimiter) Release(host string) {
	host = strings.ToLower(host)
	d.mu.Lock()
	slot := d.slots[host]
	d.mu.Unlock()
	if slot == nil {
		return
	}
	select {
	case <-slot:
	default:
	}
}

// InFlight reports the number of slots currently held for host.
func (d *DomainLimiter) InFlight(host string) int {
	host = strings.ToLower(host)
	d.mu.Lock()
	defer d.mu.Unlock()
	if slot, ok := d.slots[host]; ok {
		return len(slot)
	}
	return 0
}
