package injector

import (
	"sync/atomic"
	"time"
)

// randSeed mints a distinct seed per Filter even when several are
// constructed within the same clock tick, by mixing in a monotonic
// counter.
var seedCounter int64

func randSeed() int64 {
	n := atomic.AddInt64(&seedCounter, 1)
	return time.Now().UnixNano() ^ (n * 0x9E3779B97F4A7C15)
}
