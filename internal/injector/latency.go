package injector

import (
	"context"
	"time"

	"github.com/iofault/fi/internal/clock"
)

// Latency suspends the calling task for a configured duration on match,
// then returns nil so the underlying operation proceeds (spec.md §4.H
// "Latency Injector"). Suspension is cooperative: it parks the goroutine
// behind clk.After, never the OS thread.
type Latency struct {
	filter   Filter
	duration time.Duration
	clk      clock.Clock
}

// NewLatency builds a Latency injector. clk defaults to clock.Real{} when
// nil, so production callers don't need to thread a clock through.
func NewLatency(methods []Method, pathGlob string, duration time.Duration, percent int, clk clock.Clock) *Latency {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Latency{filter: NewFilter(methods, pathGlob, percent), duration: duration, clk: clk}
}

func (l *Latency) Inject(ctx context.Context, method Method, path string) error {
	if !l.filter.Matches(method, path) {
		return nil
	}
	select {
	case <-l.clk.After(l.duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Latency) InjectAttr(*Attr, string) {}
