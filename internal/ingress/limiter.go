// Package ingress guards the façade's public mutation entry points
// against event floods — a stuck button, a chattering touch driver, or a
// misbehaving UI client retrying faster than the tick loop can settle.
// Grounded on control_plane/scheduler/limiter.go's TokenBucketLimiter from
// the teacher; this is a pure resilience shim around the core and never
// changes scheduling semantics, only whether a call is let through now or
// delayed to the caller as a rejection.
package ingress

import (
	"sync"

	"github.com/ChrisCOJ/Trace/internal/telemetry"
	"golang.org/x/time/rate"
)

// Limiter rate-limits calls per entry-point name.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

// New returns a Limiter allowing r events/sec with burst b per entry
// point. A typical ~2Hz tick loop is comfortably served by a handful of
// events per second with a small burst for double-taps.
func New(r float64, b int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(r),
		b:        b,
	}
}

// Allow reports whether a call through entryPoint should proceed. Callers
// that get false should drop the event rather than block — the core has
// no queue for suspended calls.
func (l *Limiter) Allow(entryPoint string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[entryPoint]
	if !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.limiters[entryPoint] = lim
	}
	l.mu.Unlock()

	allowed := lim.Allow()
	if !allowed {
		telemetry.IngressRejections.WithLabelValues(entryPoint).Inc()
	}
	return allowed
}
