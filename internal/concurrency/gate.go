package concurrency

import (
	"context"
	"sync"
	"time"
)

// Gate admits up to a Limiter's current ceiling at once. The ceiling can
// change between admissions (the limiter grows or shrinks it), so Gate
// polls rather than using a fixed-size semaphore.
type Gate struct {
	limiter *Limiter
	inUse   chan struct{}
	mu      sync.Mutex
}

// NewGate builds a Gate bounded by limiter's Max, the most admissions that
// could ever be in flight at once.
func NewGate(limiter *Limiter) *Gate {
	return &Gate{
		limiter: limiter,
		inUse:   make(chan struct{}, int(limiter.max)+1),
	}
}

// Acquire blocks until admission is available under the limiter's current
// ceiling, or ctx is done. The returned release func must be called exactly
// once to free the slot.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	for {
		g.mu.Lock()
		if len(g.inUse) < g.limiter.Limit() {
			select {
			case g.inUse <- struct{}{}:
				g.mu.Unlock()
				return func() { <-g.inUse }, nil
			default:
			}
		}
		g.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
