// Package clock provides the millisecond time source used by the controller.
//
// All timing inside the control core is expressed as int64 milliseconds on a
// monotonic scale that starts near zero. Production code injects Real; tests
// inject Fake and move time explicitly with Advance.
package clock

import (
	"sync"
	"time"
)

// Clock returns monotonic milliseconds.
type Clock interface {
	// Millis returns the number of milliseconds elapsed on this clock.
	// Successive calls never go backwards.
	Millis() int64
}

// Real is a Clock backed by the process monotonic clock.
type Real struct {
	start time.Time
}

// NewReal returns a Real clock whose zero is the moment of the call.
func NewReal() *Real {
	return &Real{start: time.Now()}
}

// Millis implements Clock.
func (r *Real) Millis() int64 {
	return time.Since(r.start).Milliseconds()
}

// Fake is a manually driven Clock for deterministic tests.
//
// Fake is safe for concurrent use so that helpers running in other goroutines
// can read the time while a test advances it.
type Fake struct {
	mu sync.Mutex
	ms int64
}

// NewFake returns a Fake clock reading start.
func NewFake(start int64) *Fake {
	return &Fake{ms: start}
}

// Millis implements Clock.
func (f *Fake) Millis() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ms
}

// Advance moves the clock forward by d milliseconds. Negative values are ignored.
func (f *Fake) Advance(d int64) {
	if d <= 0 {
		return
	}
	f.mu.Lock()
	f.ms += d
	f.mu.Unlock()
}

// Set jumps the clock to ms if ms is not in the past.
func (f *Fake) Set(ms int64) {
	f.mu.Lock()
	if ms > f.ms {
		f.ms = ms
	}
	f.mu.Unlock()
}
