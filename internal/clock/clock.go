// Package clock abstracts time so timer-driven behaviour can run against a
// virtual clock in tests.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time and one-shot timers.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine after d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancel token for a scheduled task.
type Timer interface {
	// Stop prevents the task from firing. It returns false if the task
	// already fired or was stopped.
	Stop() bool
}

// Real is the wall clock.
type Real struct{}

// Now returns time.Now.
func (Real) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Every runs f every d until the returned timer is stopped. The first run is
// d after the call.
func Every(c Clock, d time.Duration, f func()) Timer {
	p := &periodic{clock: c, interval: d, fn: f}
	p.mu.Lock()
	p.timer = c.AfterFunc(d, p.fire)
	p.mu.Unlock()
	return p
}

type periodic struct {
	clock    Clock
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	timer   Timer
	stopped bool
}

func (p *periodic) fire() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.timer = p.clock.AfterFunc(p.interval, p.fire)
	p.mu.Unlock()

	p.fn()
}

func (p *periodic) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
	}
	return true
}
