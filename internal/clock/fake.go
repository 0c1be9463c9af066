package clock

import (
	"sync"
	"time"
)

type afterRequest struct {
	target time.Time
	ch     chan time.Time
}

// Fake is a manually-advanced Clock used by injector tests so that
// "duration ≥ D" assertions don't need to wait D in real time.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	pending []*afterRequest
}

// NewFake returns a Fake clock starting at t.
func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d, firing any pending After channels
// whose target time has been reached.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)

	var still []*afterRequest
	for _, r := range f.pending {
		if !f.now.Before(r.target) {
			r.ch <- r.target
		} else {
			still = append(still, r)
		}
	}
	f.pending = still
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan time.Time, 1)
	target := f.now.Add(d)
	if !target.After(f.now) {
		ch <- f.now
		return ch
	}

	f.pending = append(f.pending, &afterRequest{target: target, ch: ch})
	return ch
}
