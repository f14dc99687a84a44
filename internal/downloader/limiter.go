package downloader

import (
	"context"
	"strconv"
	"sync"

	"github.com/italolelis/channel_downloader/internal/media"
	"golang.org/x/sync/semaphore"
)

// Limiter is the admission gate shared by all workers of a session. At most
// Capacity workers hold a token at any time.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int

	mu    sync.Mutex
	inUse int
	peak  int
}

// NewLimiter creates a limiter admitting capacity concurrent workers.
func NewLimiter(capacity int) (*Limiter, error) {
	if capacity <= 0 {
		return nil, &media.ConfigurationError{
			Field:  "download_at_same_time_size",
			Reason: "must be positive, got " + strconv.Itoa(capacity),
		}
	}

	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}, nil
}

// Acquire blocks until a token is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	l.mu.Lock()
	l.inUse++
	l.peak = max(l.peak, l.inUse)
	l.mu.Unlock()

	return nil
}

// Release returns a token acquired with Acquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.inUse--
	l.mu.Unlock()

	l.sem.Release(1)
}

// Capacity returns the number of tokens.
func (l *Limiter) Capacity() int {
	return l.capacity
}

// Peak returns the highest number of tokens held at once.
func (l *Limiter) Peak() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.peak
}
