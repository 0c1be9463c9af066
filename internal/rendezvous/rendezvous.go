// Package rendezvous implements the Rendezvous Latch (spec.md §4.B): a
// pair-of-latches two-way handshake between the outside process and a
// worker running inside the target's namespaces. Nothing in it is
// specific to any particular concurrency primitive — a closed channel is
// Go's idiomatic equivalent of a single-release binary semaphore.
package rendezvous

import "sync"

// Waiter blocks until its matching Guard is released.
type Waiter struct {
	ch <-chan struct{}
}

// Guard releases exactly one matching Waiter. Release is idempotent: a
// second call is a no-op rather than a panic, so a deferred Release after
// an earlier explicit one is always safe.
type Guard struct {
	ch   chan struct{}
	once sync.Once
}

// New returns a fresh Waiter/Guard pair. Exactly one Release unblocks
// exactly one Wait (or any number of Waits, should more than one
// goroutine hold a reference to the same Waiter — closing a channel
// wakes every receiver).
func New() (*Waiter, *Guard) {
	ch := make(chan struct{})
	return &Waiter{ch: ch}, &Guard{ch: ch}
}

// Wait blocks until Release has been called. If Release already ran
// before Wait began, Wait returns immediately.
func (w *Waiter) Wait() {
	<-w.ch
}

// Release unblocks the matching Waiter. Safe to call from a deferred
// statement even if an earlier call already released it.
func (g *Guard) Release() {
	g.once.Do(func() { close(g.ch) })
}

// Pair bundles the two latches a single injection phase needs for its
// "I'm ready; now you go; I'm done" handshake (spec.md §4.B): the caller
// on one side of the namespace boundary waits on In while the other side
// waits on Out, each releasing the other's guard as it reaches its own
// checkpoint.
type Pair struct {
	InWaiter  *Waiter
	InGuard   *Guard
	OutWaiter *Waiter
	OutGuard  *Guard
}

// NewPair builds a fresh two-latch handshake.
func NewPair() *Pair {
	inW, inG := New()
	outW, outG := New()
	return &Pair{InWaiter: inW, InGuard: inG, OutWaiter: outW, OutGuard: outG}
}
