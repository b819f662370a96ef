package crawl

import (
	"context"
	"sync"
	"time"

	"github.com/fwojciec/webcrawl"
	"golang.org/x/time/rate"
)

var _ webcrawl.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter spaces requests to each host by a minimum interval using
// token buckets with a burst of 1. Requests to different hosts proceed
// independently.
type DomainLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	delay    time.Duration
}

// NewDomainLimiter creates a DomainLimiter with the given default interval
// between requests to one host. Zero disables limiting.
func NewDomainLimiter(delay time.Duration) *DomainLimiter {
	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		delay:    delay,
	}
}

// Wait blocks until a request to host is allowed.
// Returns an error if the context is canceled before the wait completes.
func (d *DomainLimiter) Wait(ctx context.Context, host string) error {
	return d.limiter(host).Wait(ctx)
}

// SetDelay raises the interval for host to delay when it exceeds the
// current one. Intervals never shrink below the default.
func (d *DomainLimiter) SetDelay(host string, delay time.Duration) {
	if delay <= 0 {
		return
	}
	l := d.limiter(host)
	if limit := rate.Every(delay); limit < l.Limit() {
		l.SetLimit(limit)
	}
}

func (d *DomainLimiter) limiter(host string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.limiters[host]
	if !ok {
		l = rate.NewLimiter(every(d.delay), 1)
		d.limiters[host] = l
	}
	return l
}

func every(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}
