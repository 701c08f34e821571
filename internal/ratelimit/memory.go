package ratelimit

import (
	"context"
	"sync"
	"time"

	"learning-tracker/internal/common/logger"
)

type window struct {
	start time.Time
	count int
}

// MemoryLimiter is an in-process fixed-window counter. Expired windows are
// reset lazily on access and swept periodically so idle identifiers do not
// accumulate.
type MemoryLimiter struct {
	windowSize time.Duration
	maxCount   int
	now        func() time.Time
	log        logger.Logger

	mu      sync.Mutex
	windows map[string]*window

	stopOnce sync.Once
	stop     chan struct{}
}

func NewMemoryLimiter(windowSize time.Duration, maxCount int, log logger.Logger) *MemoryLimiter {
	l := &MemoryLimiter{
		windowSize: windowSize,
		maxCount:   maxCount,
		now:        time.Now,
		log:        log,
		windows:    make(map[string]*window),
		stop:       make(chan struct{}),
	}
	go l.sweep()
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, identifier string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identifier]
	if !ok || now.Sub(w.start) >= l.windowSize {
		l.windows[identifier] = &window{start: now, count: 1}
		return true, nil
	}

	if w.count >= l.maxCount {
		return false, nil
	}
	w.count++
	return true, nil
}

func (l *MemoryLimiter) Close() error {
	l.stopOnce.Do(func() { close(l.stop) })
	return nil
}

func (l *MemoryLimiter) sweep() {
	ticker := time.NewTicker(l.windowSize)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			now := l.now()
			l.mu.Lock()
			for id, w := range l.windows {
				if now.Sub(w.start) >= l.windowSize {
					delete(l.windows, id)
				}
			}
			l.mu.Unlock()
		}
	}
}
