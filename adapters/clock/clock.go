// Package clock provides Clock and Sleeper implementations.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/monoclient/ports"
)

// Clock tells time and waits between retries.
type Clock interface {
	ports.Clock
	ports.Sleeper
}

var (
	_ Clock = Real{}
	_ Clock = (*Fake)(nil)
)

// Real uses the system clock.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// Sleep waits for d or until ctx is done.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fake provides a controllable clock for testing. Sleep returns at once
// and advances the fake time instead of blocking.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
	slept   []time.Duration
}

// NewFake creates a fake clock set to the given time.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Set sets the fake current time.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the fake time forward by duration d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Sleep records d and advances the fake time by it.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slept = append(f.slept, d)
	f.current = f.current.Add(d)
	return nil
}

// Slept returns every duration passed to Sleep.
func (f *Fake) Slept() []time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]time.Duration, len(f.slept))
	copy(out, f.slept)
	return out
}
