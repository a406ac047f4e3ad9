package schedule

import (
	"context"
	"sync"
)

// limiter caps how many netboxes run a job concurrently ("intensity").
// Acquire blocks in FIFO order until a slot frees; a zero max means
// unlimited.
type limiter struct {
	max int

	mu      sync.Mutex
	active  int
	waiters []chan struct{}
}

func newLimiter(max int) *limiter {
	return &limiter{max: max}
}

// acquire takes a slot, waiting behind earlier waiters when the limit is
// reached. Returns false when ctx is cancelled before a slot frees.
func (l *limiter) acquire(ctx context.Context) bool {
	if l.max <= 0 {
		return true
	}
	l.mu.Lock()
	if l.active < l.max {
		l.active++
		l.mu.Unlock()
		return true
	}
	ch := make(chan struct{})
	l.waiters = append(l.waiters, ch)
	l.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-ctx.Done():
		l.mu.Lock()
		for i, w := range l.waiters {
			if w == ch {
				l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
				l.mu.Unlock()
				return false
			}
		}
		l.mu.Unlock()
		// release already handed the slot to us; give it back.
		l.release()
		return false
	}
}

// release frees a slot, handing it directly to the oldest waiter if any.
func (l *limiter) release() {
	if l.max <= 0 {
		return
	}
	l.mu.Lock()
	if len(l.waiters) > 0 {
		ch := l.waiters[0]
		l.waiters = l.waiters[1:]
		l.mu.Unlock()
		close(ch)
		return
	}
	l.active--
	l.mu.Unlock()
}

// inUse returns the number of held slots, for the active-job log.
func (l *limiter) inUse() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}
