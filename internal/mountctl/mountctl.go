// Package mountctl implements the Mount Orchestrator (spec.md §4.I): it
// drives the Namespace Gate, Tracer, and Descriptor Replacer through the
// rename+bind-mount dance that swaps a live directory for a FUSE mount
// without the target process noticing, and the reverse dance on recovery.
package mountctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/jacobsa/fuse"
	"golang.org/x/sys/unix"

	"github.com/iofault/fi/internal/dispatcher"
	"github.com/iofault/fi/internal/fusedev"
	"github.com/iofault/fi/internal/hookfs"
	"github.com/iofault/fi/internal/injector"
	"github.com/iofault/fi/internal/logger"
	"github.com/iofault/fi/internal/nsenter"
	"github.com/iofault/fi/internal/pathenc"
	"github.com/iofault/fi/internal/rendezvous"
	"github.com/iofault/fi/internal/replacer"
)

// State names one point in the Mount Guard's lifecycle (spec.md §4.I).
type State int

const (
	Unmounted State = iota
	Preparing
	MountedDisabled
	MountedEnabled
	Recovering
)

func (s State) String() string {
	switch s {
	case Unmounted:
		return "unmounted"
	case Preparing:
		return "preparing"
	case MountedDisabled:
		return "mounted(disabled)"
	case MountedEnabled:
		return "mounted(enabled)"
	case Recovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// [OQ-b]: unmount-on-EBUSY retry policy (SPEC_FULL.md §3), exponential
// backoff from 10ms doubling to a 500ms cap, 20 attempts total.
const (
	unmountMaxAttempts = 20
	unmountBaseBackoff = 10 * time.Millisecond
	unmountMaxBackoff  = 500 * time.Millisecond
)

// Guard owns the FUSE session, the Hook Filesystem, and the enabled flag
// gating the injector chain (spec.md §3 "Mount Guard"). Recover tears the
// session down and restores original_path to its pre-inject state.
type Guard struct {
	targetPID    int
	originalPath string
	backingPath  string
	workers      int

	state State

	enabled atomic.Bool
	fs      *hookfs.FileSystem
	mfs     *fuse.MountedFileSystem
}

// State reports the guard's current lifecycle state.
func (g *Guard) State() State { return g.state }

// Dir returns the path injection is active on (original_path).
func (g *Guard) Dir() string { return g.originalPath }

// Inject performs the full Unmounted -> Mounted(enabled) dance described
// in spec.md §4.I: namespace entry, thread stop, descriptor snapshot,
// rename+bind-mount outside the namespace, descriptor rewrite back inside
// it, then enabling the injector chain.
func Inject(targetPID int, originalPath string, chain *injector.Chain, workers int) (*Guard, error) {
	g := &Guard{targetPID: targetPID, originalPath: originalPath, workers: workers, state: Preparing}

	major, minor, err := fusedev.HostDeviceNumbers()
	if err != nil {
		return nil, fmt.Errorf("mountctl: inject: %w", err)
	}

	pair := rendezvous.NewPair()
	var (
		rep     *replacer.Replacer
		prepErr error
	)

	logger.Infof("mountctl: entering namespaces of pid %d", targetPID)
	handle, err := nsenter.Enter(targetPID, func() error {
		if err := fusedev.Ensure(major, minor); err != nil {
			prepErr = err
			pair.InGuard.Release()
			return err
		}

		r, err := replacer.Prepare(targetPID, originalPath)
		if err != nil {
			prepErr = err
			pair.InGuard.Release()
			return err
		}
		rep = r

		pair.InGuard.Release()  // "I'm ready": outside may rename + mount.
		pair.OutWaiter.Wait()   // "now you go": the mount is live.

		for _, e := range rep.Run(originalPath) {
			logger.Warnf("mountctl: descriptor rewrite: %v", e)
		}
		rep.Detach()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mountctl: enter namespace: %w", err)
	}

	pair.InWaiter.Wait()
	if prepErr != nil {
		_ = handle.Join()
		return nil, fmt.Errorf("mountctl: prepare: %w", prepErr)
	}

	backingPath := pathenc.Sibling(originalPath)
	if _, err := os.Lstat(backingPath); err == nil {
		pair.OutGuard.Release()
		_ = handle.Join()
		return nil, fmt.Errorf("mountctl: encoded sibling %s already exists, refusing to overwrite", backingPath)
	} else if !os.IsNotExist(err) {
		pair.OutGuard.Release()
		_ = handle.Join()
		return nil, fmt.Errorf("mountctl: stat %s: %w", backingPath, err)
	}

	if err := os.Rename(originalPath, backingPath); err != nil {
		pair.OutGuard.Release()
		_ = handle.Join()
		return nil, fmt.Errorf("mountctl: rename %s -> %s: %w", originalPath, backingPath, err)
	}
	if err := os.Mkdir(originalPath, 0o755); err != nil {
		_ = os.Rename(backingPath, originalPath)
		pair.OutGuard.Release()
		_ = handle.Join()
		return nil, fmt.Errorf("mountctl: recreate mountpoint %s: %w", originalPath, err)
	}

	g.enabled.Store(false)
	fs := hookfs.New(backingPath, chain, &g.enabled)
	d := dispatcher.New(fs, workers)

	mfs, err := fuse.Mount(originalPath, d, &fuse.MountConfig{})
	if err != nil {
		_ = os.Remove(originalPath)
		_ = os.Rename(backingPath, originalPath)
		pair.OutGuard.Release()
		_ = handle.Join()
		return nil, fmt.Errorf("mountctl: fuse mount: %w", err)
	}

	g.backingPath = backingPath
	g.fs = fs
	g.mfs = mfs
	g.state = MountedDisabled
	logger.Infof("mountctl: %s bound over %s (backing %s)", "fuse session", originalPath, backingPath)

	pair.OutGuard.Release()
	if err := handle.Join(); err != nil {
		logger.Warnf("mountctl: descriptor rewrite pass: %v", err)
	}

	g.enabled.Store(true)
	g.state = MountedEnabled
	logger.Infof("mountctl: injection enabled on %s", originalPath)
	return g, nil
}

// Recover performs the reverse dance: disable the chain, rewrite the
// target's descriptors back to the real directory, unmount (retrying on
// EBUSY up to a bounded number of attempts), and rename the encoded
// sibling back to original_path.
func (g *Guard) Recover() error {
	g.enabled.Store(false)
	g.state = Recovering

	pair := rendezvous.NewPair()
	var (
		rep     *replacer.Replacer
		prepErr error
	)

	handle, err := nsenter.Enter(g.targetPID, func() error {
		r, err := replacer.Prepare(g.targetPID, g.originalPath)
		if err != nil {
			prepErr = err
			pair.InGuard.Release()
			return err
		}
		rep = r

		pair.InGuard.Release()
		pair.OutWaiter.Wait()

		for _, e := range rep.Run(g.backingPath) {
			logger.Warnf("mountctl: recovery descriptor rewrite: %v", e)
		}
		rep.Detach()
		return nil
	})
	if err != nil {
		return fmt.Errorf("mountctl: recover: enter namespace: %w", err)
	}

	pair.InWaiter.Wait()
	if prepErr != nil {
		// Recovery errors are best-effort (spec.md §7 kind 5): log and
		// keep going rather than leaving the target stuck mid-mount.
		logger.Warnf("mountctl: recover: prepare: %v (continuing best-effort)", prepErr)
	}

	if err := unmountWithRetry(g.originalPath); err != nil {
		pair.OutGuard.Release()
		_ = handle.Join()
		return fmt.Errorf("mountctl: recover: unmount: %w", err)
	}

	if g.mfs != nil {
		if err := g.mfs.Join(context.Background()); err != nil {
			logger.Warnf("mountctl: recover: session join: %v", err)
		}
	}

	if err := os.Remove(g.originalPath); err != nil {
		logger.Warnf("mountctl: recover: remove mountpoint dir %s: %v", g.originalPath, err)
	}
	if err := os.Rename(g.backingPath, g.originalPath); err != nil {
		pair.OutGuard.Release()
		_ = handle.Join()
		return fmt.Errorf("mountctl: recover: rename %s -> %s: %w", g.backingPath, g.originalPath, err)
	}

	pair.OutGuard.Release()
	if err := handle.Join(); err != nil {
		logger.Warnf("mountctl: recover: descriptor rewrite pass: %v", err)
	}

	g.state = Unmounted
	logger.Infof("mountctl: recovered %s", g.originalPath)
	return nil
}

// unmountWithRetry retries unmount(2) on EBUSY with exponential backoff,
// giving up after unmountMaxAttempts (spec.md §7 kind 5, [OQ-b]).
func unmountWithRetry(path string) error {
	backoff := unmountBaseBackoff
	var lastErr error
	for attempt := 0; attempt < unmountMaxAttempts; attempt++ {
		err := unix.Unmount(path, 0)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.Is(err, unix.EBUSY) {
			return fmt.Errorf("unmount %s: %w", path, err)
		}
		logger.Debugf("mountctl: unmount %s busy, retrying in %s (attempt %d/%d)", path, backoff, attempt+1, unmountMaxAttempts)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > unmountMaxBackoff {
			backoff = unmountMaxBackoff
		}
	}
	return fmt.Errorf("unmount %s: exhausted %d attempts: %w", path, unmountMaxAttempts, lastErr)
}
