// Package injector implements the declarative fault/latency/attribute
// override chain the hook filesystem consults around every operation.
package injector

import (
	"context"
	"os"
	"time"
)

// Attr is the subset of inode attribute fields an AttrOverride rule can
// replace. It is a superset of jacobsa/fuse's fuseops.InodeAttributes,
// carrying the rdev/flags/blocks fields the override schema exposes that
// the base FUSE attribute struct does not.
type Attr struct {
	Ino    uint64
	Size   uint64
	Nlink  uint32
	Mode   os.FileMode
	Uid    uint32
	Gid    uint32
	Rdev   uint32
	Flags  uint32
	Blocks uint64
	Atime  time.Time
	Mtime  time.Time
	Ctime  time.Time
	Crtime time.Time
}

// Injector is the shared shape of Fault, Latency, and AttrOverride.
//
// Inject runs before the underlying operation; an error short-circuits it
// and becomes the reply. InjectAttr runs whenever a file-attribute reply is
// about to be emitted, mutating it in place.
type Injector interface {
	Inject(ctx context.Context, method Method, path string) error
	InjectAttr(attr *Attr, path string)
}

// Chain is an ordered MultiInjector: inject walks the list and stops at
// the first error; InjectAttr invokes every element, mutations
// accumulating in encounter order. A slice of interface values is the Go
// idiom for what the source represents with boxed trait objects.
type Chain struct {
	injectors []Injector
}

// NewChain builds a Chain from already-constructed injectors, in order.
func NewChain(injectors ...Injector) *Chain {
	return &Chain{injectors: injectors}
}

func (c *Chain) Inject(ctx context.Context, method Method, path string) error {
	if c == nil {
		return nil
	}
	for _, inj := range c.injectors {
		if err := inj.Inject(ctx, method, path); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chain) InjectAttr(attr *Attr, path string) {
	if c == nil {
		return
	}
	for _, inj := range c.injectors {
		inj.InjectAttr(attr, path)
	}
}
