package core

// limiter.go bounds how many imports may be admitted at once.
//
// The writer queue already serializes transactions; the limiter caps how
// much parsed-but-unwritten work can pile up behind it. When all slots are
// taken, a new import waits up to maxWait before failing with
// ErrTooManyImports so callers get a prompt, typed rejection instead of an
// unbounded queue.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyImports is returned when all import slots are occupied and the
// wait timeout expires. Callers should retry after a short delay.
var ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

// DefaultMaxConcurrentImports is the default limit for admitted imports.
const DefaultMaxConcurrentImports = 4

// DefaultImportWaitTime is how long to wait for a slot before rejecting.
const DefaultImportWaitTime = 30 * time.Second

// ImportLimiter controls import admission using a semaphore pattern.
type ImportLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewImportLimiter creates a limiter allowing at most maxConcurrent
// admitted imports, with requests waiting up to maxWait for a slot.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultImportWaitTime
	}
	return &ImportLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire claims an import slot, waiting up to the configured timeout.
// The caller must Release exactly once per successful Acquire.
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyImports
	}
}

// Release frees a previously acquired slot.
func (l *ImportLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.semaphore
}

// Active returns the number of imports currently holding a slot.
func (l *ImportLimiter) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no imports hold a slot or ctx expires. Used
// during shutdown so in-flight transactions finish cleanly.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.Active() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
