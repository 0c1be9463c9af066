// Package clock abstracts wall-clock time so latency injection can be
// driven by a fake clock in tests instead of real sleeps.
package clock

import "time"

// Clock is the minimal time source the latency injector needs.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Real is a Clock backed by the actual system clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }
