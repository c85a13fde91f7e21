// Package clock supplies the single authoritative time source for the
// registry. All protocol windows (commitment min/max age, lease expiry,
// grace) are evaluated against one injected clock so they stay deterministic
// and testable; nothing in the core reads time.Now directly.
package clock

import (
	"sync"
	"time"
)

// Clock is the injected time capability.
type Clock interface {
	Now() time.Time
}

// System reads the process wall clock.
type System struct{}

func NewSystem() System { return System{} }

func (System) Now() time.Time { return time.Now() }

// Fake is a manually advanced clock for tests. It never moves backwards.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake starts a fake clock at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d > 0 {
		f.now = f.now.Add(d)
	}
}

// Set jumps the clock to t if t is not earlier than the current instant.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.After(f.now) {
		f.now = t
	}
}
