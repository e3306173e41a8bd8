package pipeline

// limiter.go bounds the number of pipeline runs processed in parallel.
// A full batch is held in memory while it runs, so the cap is what keeps
// a burst of large uploads from exhausting the process.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyRuns is returned when all run slots are occupied.
// Clients should retry after a short delay.
var ErrTooManyRuns = errors.New("too many concurrent runs, please try again later")

const defaultMaxConcurrentRuns = 4

// runLimiter is a semaphore over active pipeline runs.
type runLimiter struct {
	semaphore chan struct{}

	mu     sync.RWMutex
	active int
}

func newRunLimiter(maxConcurrent int) *runLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentRuns
	}
	return &runLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
	}
}

// tryAcquire takes a run slot without blocking. Each successful acquire
// must be paired with exactly one release.
func (l *runLimiter) tryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

func (l *runLimiter) release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.semaphore
}

func (l *runLimiter) activeCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// waitForDrain blocks until no runs are active or ctx is done. Used for
// graceful shutdown so in-flight runs finish before termination.
func (l *runLimiter) waitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.activeCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
