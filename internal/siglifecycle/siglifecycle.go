// Package siglifecycle implements the Signal Lifecycle (spec.md §4.J):
// waiting for SIGINT or SIGTERM to trigger orderly recovery, with SIGCHLD
// explicitly ignored.
package siglifecycle

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	once sync.Once
	ch   chan os.Signal
)

// signals lazily initializes the process-global notification channel
// exactly once. The source uses a process-global writable file descriptor
// assigned inside a signal handler (a self-pipe); os/signal's delivery
// queue is the Go runtime's own async-signal-safe self-pipe, so this
// single-initialisation cell rides that instead of hand-rolling another
// one (spec.md §9).
func signals() chan os.Signal {
	once.Do(func() {
		ch = make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		signal.Ignore(syscall.SIGCHLD)
	})
	return ch
}

// Wait blocks until SIGINT or SIGTERM arrives and returns it.
func Wait() os.Signal {
	return <-signals()
}

// Stop cancels signal delivery to this package's channel. Mainly useful
// for tests that want to send a synthetic signal through Wait without
// leaving a registration outstanding afterward.
func Stop() {
	signal.Stop(signals())
}
