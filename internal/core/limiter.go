package core

// limiter.go bounds how many workbook loads run at once.
//
// Parsing a large workbook holds the whole sheet in memory, so loads take a
// slot from a semaphore first. When all slots are busy a load waits up to
// maxWait and then fails with ErrTooManyLoads. WaitForDrain lets shutdown
// finish in-flight loads.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyLoads is returned when all load slots stay occupied for the
// whole wait. Clients should retry after a short delay.
var ErrTooManyLoads = errors.New("too many concurrent loads, please try again later")

// DefaultMaxConcurrentLoads is the default limit for parallel loads.
const DefaultMaxConcurrentLoads = 5

// DefaultMaxLoadWait is how long to wait for a slot before rejecting.
const DefaultMaxLoadWait = 30 * time.Second

// LoadLimiter is a counting semaphore for workbook loads.
type LoadLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewLoadLimiter creates a limiter allowing maxConcurrent loads at once.
// Non-positive arguments select the defaults.
func NewLoadLimiter(maxConcurrent int, maxWait time.Duration) *LoadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentLoads
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxLoadWait
	}
	return &LoadLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most the limiter's max wait.
// The caller must Release the slot when the load finishes.
func (l *LoadLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyLoads
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *LoadLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *LoadLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// LimiterStatus is a snapshot of a LoadLimiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current slot usage.
func (l *LoadLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        int(l.active.Load()),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}

// WaitForDrain blocks until no load holds a slot or ctx ends.
func (l *LoadLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.active.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
