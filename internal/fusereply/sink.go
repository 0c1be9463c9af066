// Package fusereply implements the Reply Sink abstraction: one typed,
// single-shot sink per FUSE reply shape. A sink's Reply method is called
// exactly once by the dispatcher/hook filesystem; on success it applies the
// typed value to the underlying jacobsa/fuse op and responds, on failure it
// responds with the errno alone. A second call is a programming error and
// panics, matching spec.md §4.E's "a second call is a programming error."
package fusereply

import "sync/atomic"

// responder is the single-shot reply primitive every jacobsa/fuse
// fuseops.Op exposes: Respond(nil) on success, Respond(err) to encode err
// as the wire errno.
type responder interface {
	Respond(err error)
}

// Sink is a typed, single-shot reply channel for value shape V.
type Sink[V any] struct {
	done  atomic.Bool
	op    responder
	apply func(V)
}

// New builds a Sink bound to op, where apply copies v's fields into op's
// output fields. apply is never called on the error path.
func New[V any](op responder, apply func(V)) *Sink[V] {
	return &Sink[V]{op: op, apply: apply}
}

// Reply fulfils the sink. Exactly one of v (err == nil) or err is
// meaningful. Calling Reply a second time panics.
func (s *Sink[V]) Reply(v V, err error) {
	if !s.done.CompareAndSwap(false, true) {
		panic("fusereply: sink already replied")
	}
	if err == nil {
		s.apply(v)
	}
	s.op.Respond(err)
}

// Ok is a convenience for the common success path.
func (s *Sink[V]) Ok(v V) { s.Reply(v, nil) }

// Err is a convenience for the common failure path.
func (s *Sink[V]) Err(err error) {
	var zero V
	s.Reply(zero, err)
}
