package probe

import (
	"context"
	"sync"
	"time"

	"github.com/anstrom/tellix/internal/errors"
)

// Limiter caps the number of binary processes running at once. Slots are
// keyed by invocation ID so the active set can be reported.
type Limiter struct {
	capacity  int
	semaphore chan struct{}
	active    map[string]time.Time
	mutex     sync.RWMutex
	closed    bool
}

// LimiterStats is a point-in-time view of a Limiter.
type LimiterStats struct {
	Capacity  int           `json:"capacity"`
	Active    int           `json:"active"`
	Available int           `json:"available"`
	Oldest    time.Duration `json:"oldest_ns"`
	Closed    bool          `json:"closed"`
}

// NewLimiter creates a limiter with the given number of slots, at least one.
func NewLimiter(capacity int) *Limiter {
	if capacity <= 0 {
		capacity = 1
	}

	return &Limiter{
		capacity:  capacity,
		semaphore: make(chan struct{}, capacity),
		active:    make(map[string]time.Time),
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context, id string) error {
	l.mutex.RLock()
	closed := l.closed
	l.mutex.RUnlock()
	if closed {
		return errors.NewProbeError(errors.CodeCanceled, "prober is shutting down")
	}

	select {
	case l.semaphore <- struct{}{}:
		l.mutex.Lock()
		l.active[id] = time.Now()
		l.mutex.Unlock()
		return nil
	case <-ctx.Done():
		return errors.WrapProbeError(errors.CodeCanceled, "gave up waiting for a free probe slot", ctx.Err())
	}
}

// Release frees the slot held by id. Unknown IDs are ignored.
func (l *Limiter) Release(id string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, exists := l.active[id]; !exists {
		return
	}
	delete(l.active, id)

	select {
	case <-l.semaphore:
	default:
	}
}

// Stats returns the current slot usage.
func (l *Limiter) Stats() LimiterStats {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	var oldest time.Duration
	now := time.Now()
	for _, started := range l.active {
		if age := now.Sub(started); age > oldest {
			oldest = age
		}
	}

	return LimiterStats{
		Capacity:  l.capacity,
		Active:    len(l.active),
		Available: l.capacity - len(l.active),
		Oldest:    oldest,
		Closed:    l.closed,
	}
}

// Close refuses new acquisitions. Running invocations keep their slots
// until they release them.
func (l *Limiter) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.closed = true
	return nil
}
